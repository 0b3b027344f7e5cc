package alertdb

import (
	"github.com/BurntSushi/migration"
	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
)

func Migrations(log logs.Log) []migration.Migrator {
	migs := []migration.Migrator{}
	idx := 0

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		CREATE TABLE alert(
			id INTEGER PRIMARY KEY,
			alert_id TEXT NOT NULL,
			time INT NOT NULL,
			alert_type TEXT NOT NULL,
			feed_id INT NOT NULL,
			area TEXT NOT NULL,
			area_name TEXT NOT NULL,
			person_name TEXT NOT NULL,
			person_role TEXT NOT NULL,
			message TEXT NOT NULL,
			acknowledged INT NOT NULL DEFAULT 0
		);
		CREATE UNIQUE INDEX idx_alert_alert_id ON alert(alert_id);
		CREATE INDEX idx_alert_time ON alert(time);
	`))

	return migs
}

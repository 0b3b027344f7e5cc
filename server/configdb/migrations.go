package configdb

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
		CREATE TABLE camera_zone(
			id TEXT PRIMARY KEY,
			created_at INT NOT NULL,
			feed_id INT NOT NULL,
			name TEXT NOT NULL,
			zone_type TEXT NOT NULL,
			points TEXT NOT NULL,
			authorized_roles TEXT NOT NULL,
			color TEXT,
			active INT NOT NULL
		);
		CREATE INDEX idx_camera_zone_feed_id ON camera_zone (feed_id);

		CREATE TABLE door_area(
			id TEXT PRIMARY KEY,
			position INT NOT NULL,
			name TEXT NOT NULL,
			face_feed_id INT NOT NULL,
			door_feed_id INT NOT NULL,
			allowed_roles TEXT NOT NULL
		);

		CREATE TABLE plan_door(
			id TEXT PRIMARY KEY,
			created_at INT NOT NULL,
			name TEXT NOT NULL,
			point TEXT NOT NULL,
			feed_id INT,
			allowed_roles TEXT NOT NULL,
			restriction_level TEXT
		);
	`))

	return migs
}

package main

import (
	"fmt"
	"os"

	"github.com/akamensky/argparse"
	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/perimeter/server"
	"github.com/cyclopcam/perimeter/server/config"
)

func main() {
	parser := argparse.NewParser("perimeter", "Multi-camera tracking and violation detection")
	configFile := parser.String("c", "config", &argparse.Options{Help: "JSON configuration file (default " + config.DefaultFilename + " if it exists)", Default: ""})
	listen := parser.String("", "listen", &argparse.Options{Help: "HTTP listen address, eg :8080. Overrides the config file.", Default: ""})
	dataDir := parser.String("", "data", &argparse.Options{Help: "Directory for the configuration and alert databases. Overrides the config file.", Default: ""})
	verbose := parser.Flag("", "verbose", &argparse.Options{Help: "Log track and identity lifecycle events", Default: false})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, err := logs.NewLog()
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *verbose {
		cfg.Verbose = true
	}
	logger.Infof("Data directory is %v", cfg.DataDir)

	srv, err := server.NewServer(logger, cfg)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	srv.ListenForKillSignals()

	// Tell systemd that we're alive
	daemon.SdNotify(false, daemon.SdNotifyReady)

	if err := srv.ListenHTTP(cfg.Listen); err != nil {
		logger.Errorf("ListenHTTP returned: %v", err)
		srv.Shutdown()
		os.Exit(1)
	}
	<-srv.ShutdownComplete
	logger.Close()
}

// Package server wires the engine, the feed workers and the stores together, and exposes them over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/perimeter/server/alertdb"
	"github.com/cyclopcam/perimeter/server/config"
	"github.com/cyclopcam/perimeter/server/configdb"
	"github.com/cyclopcam/perimeter/server/engine"
	"github.com/cyclopcam/perimeter/server/monitor"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

// Maximum size of a frame submission, including an optional base64 JPEG
const maxFrameBytes = 16 * 1024 * 1024

type Server struct {
	Log      logs.Log
	Config   *config.Config
	ConfigDB *configdb.ConfigDB
	AlertDB  *alertdb.AlertDB
	Engine   *engine.Engine
	Monitor  *monitor.Monitor

	ShutdownComplete chan error // Receives a value once Shutdown() is finished

	signalIn   chan os.Signal
	httpServer *http.Server
	httpRouter *httprouter.Router
	wsUpgrader websocket.Upgrader
	startedAt  time.Time
}

// Create a new server. cfg must already have its defaults applied.
func NewServer(logger logs.Log, cfg *config.Config) (*Server, error) {
	if err := os.MkdirAll(cfg.DataDir, 0770); err != nil {
		return nil, fmt.Errorf("Failed to create data directory '%v': %w", cfg.DataDir, err)
	}
	configDB, err := configdb.NewConfigDB(logs.NewPrefixLogger(logger, "ConfigDB:"), filepath.Join(cfg.DataDir, "config.sqlite"))
	if err != nil {
		return nil, err
	}
	alertDB, err := alertdb.NewAlertDB(logs.NewPrefixLogger(logger, "AlertDB:"), filepath.Join(cfg.DataDir, "alerts.sqlite"), cfg.MaxAlerts)
	if err != nil {
		return nil, err
	}

	eng := engine.NewEngine(logs.NewPrefixLogger(logger, "Engine:"), engine.Params{
		Track:           cfg.TrackParams(),
		Door:            cfg.DoorParams(),
		ZoneFaceOverlap: cfg.ZoneFaceOverlap,
		AlertCooldown:   cfg.AlertCooldown(),
		OverrideRoles:   cfg.OverrideRoles,
	})
	eng.SetVerbose(cfg.Verbose)

	s := &Server{
		Log:       logger,
		Config:    cfg,
		ConfigDB:  configDB,
		AlertDB:   alertDB,
		Engine:    eng,
		Monitor:   monitor.NewMonitor(logs.NewPrefixLogger(logger, "Monitor:"), eng, configDB, alertDB, cfg.FrameInterval()),
		startedAt: time.Now(),

		ShutdownComplete: make(chan error, 1),
	}
	s.setupHttpRoutes()
	return s, nil
}

// port example: ":8080"
func (s *Server) ListenHTTP(port string) error {
	s.Log.Infof("Listening on %v", port)
	s.httpServer = &http.Server{
		Addr:    port,
		Handler: s.httpRouter,
	}
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) ListenForKillSignals() {
	s.signalIn = make(chan os.Signal, 1)
	signal.Notify(s.signalIn, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig, ok := <-s.signalIn
		if ok {
			s.Log.Infof("Received OS signal '%v'. Shutting down", sig.String())
			s.Shutdown()
		}
	}()
}

// Shutdown stops the HTTP server and the feed workers
func (s *Server) Shutdown() {
	s.Log.Infof("Shutdown")
	if s.signalIn != nil {
		signal.Stop(s.signalIn)
	}
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.Log.Warnf("HTTP server shutdown error: %v", err)
		}
	}
	s.Monitor.Close()
	s.Log.Infof("Shutdown complete")
	s.ShutdownComplete <- nil
}

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/wfunc/chessrelay/config"
	"github.com/wfunc/chessrelay/logger"
	"github.com/wfunc/chessrelay/persistence"
	"github.com/wfunc/chessrelay/server"
)

func main() {
	logger.Init()
	defer logger.Sync()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// The archive is optional; the relay never needs a database for live
	// games.
	var db persistence.Database
	if cfg.Database.Enabled {
		db, err = openDatabase(cfg)
		if err != nil {
			logger.Log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		logger.Log.Info("Database connection successful.")
	}

	gameServer := server.NewGameServer(cfg, db)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-stop
		logger.Log.Infof("Received %s, shutting down", sig)
		gameServer.Shutdown()
	}()

	logger.Log.Infof("Starting chess relay on %s", cfg.Server.HTTPAddress)
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}

func openDatabase(cfg *config.Config) (persistence.Database, error) {
	pg := cfg.Database.Postgres
	if cfg.Database.Driver == "postgres" {
		return persistence.NewPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	}
	return persistence.NewGormPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
}

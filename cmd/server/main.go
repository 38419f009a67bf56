package main

import (
	"flag"

	"study-sms-server/internal/config"
	"study-sms-server/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to a JSON config file (defaults plus env overrides when empty)")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadConfig(*configPath)
		if err != nil {
			panic(err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Path, cfg.Logging.Level); err != nil {
		panic(err)
	}
	defer logger.Info("Server shutting down")

	// Setup and start server
	srv, err := SetupServer(cfg)
	if err != nil {
		logger.Fatal("Failed to setup server", zap.Error(err))
	}
	defer srv.Close()

	if err := srv.Start(); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}

package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/keydozer/internal/cli"
	"github.com/dmitrijs2005/keydozer/internal/config"
	"github.com/dmitrijs2005/keydozer/internal/logging"
)

func main() {
	ctx := context.Background()

	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error(ctx, "shutdown", "error", err)
		os.Exit(1)
	}
}

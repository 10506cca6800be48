package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/chiefhq/chief/adapter/cli"
	"github.com/chiefhq/chief/internal/app"
	"github.com/chiefhq/chief/pkg/config"
	"github.com/chiefhq/chief/pkg/observability"
)

func main() {
	logger := observability.LoggerFromEnv()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cli.SetLogger(logger)

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}
	defer container.Close()

	cli.SetApp(&cli.App{
		Config:    cfg,
		Logger:    logger,
		Tasks:     container.Tasks,
		Decisions: container.Decisions,
		Calendar:  container.Calendar,
		Replanner: container.Replanner,
		States:    container.States,
		Extractor: container.Extractor,
		SessionID: container.SessionID,
	})

	cli.Execute()
}

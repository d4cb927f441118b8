package main

import (
	"context"
	"os"

	"github.com/cloud-sandbox/notebook-agent/internal/app"
	"github.com/cloud-sandbox/notebook-agent/internal/config"
	"github.com/cloud-sandbox/notebook-agent/internal/health"
	"github.com/cloud-sandbox/notebook-agent/internal/logging"
	"github.com/cloud-sandbox/notebook-agent/internal/shutdown"
)

func main() {
	lookup := config.FromEnv()
	level, _ := lookup(config.EnvLogLevel)
	_ = logging.Set(logging.Level(level))

	log := logging.New("main")
	log.Info("Starting notebook agent...")

	// Subscribe before anything else so an early SIGTERM is not lost.
	signals, stop := shutdown.Notify()

	code := app.Run(context.Background(), app.Deps{
		State:   health.NewState(),
		Lookup:  lookup,
		Signals: signals,
		Logger:  log,
	})

	log.WithField("exit_code", code).Info("Notebook agent stopped")
	stop()
	os.Exit(code)
}

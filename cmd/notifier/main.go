package main

import (
	"context"
	"log"
	"os"

	"github.com/spf13/pflag"

	"github.com/swiftlogistics/platform/internal/events"
	"github.com/swiftlogistics/platform/internal/notify"
	"github.com/swiftlogistics/platform/internal/worker"
	"github.com/swiftlogistics/platform/pkg/envx"
)

const version = "v0.1.0"

func main() {
	flags := pflag.NewFlagSet("notifier", pflag.ExitOnError)
	envFile := flags.String("env-file", ".env", "load environment variables from this file if it exists")
	_ = flags.Parse(os.Args[1:])

	if err := envx.Load(*envFile); err != nil {
		log.Fatalf("failed to load %s: %v", *envFile, err)
	}

	cfg := worker.LoadConfig()

	proc, err := worker.Open(context.Background(), "notification-service", version, cfg)
	if err != nil {
		log.Fatalf("failed to initialize worker: %v", err)
	}

	notifier := &notify.Notifier{
		Notifications: proc.Store.Notifications(),
		Audit:         proc.Logger.With("stream", "audit"),
		Logger:        proc.Logger,
	}

	if err := proc.Run(events.NotifierTopology(), notifier.Consumers(cfg.ConsumeOptions())); err != nil {
		log.Fatalf("worker error: %v", err)
	}
}

package main

import (
	"context"
	"log"
	"os"

	"github.com/spf13/pflag"

	"github.com/swiftlogistics/platform/internal/auth/service"
	"github.com/swiftlogistics/platform/internal/events"
	"github.com/swiftlogistics/platform/internal/orders"
	"github.com/swiftlogistics/platform/internal/worker"
	"github.com/swiftlogistics/platform/pkg/envx"
)

const version = "v0.1.0"

func main() {
	flags := pflag.NewFlagSet("order-worker", pflag.ExitOnError)
	envFile := flags.String("env-file", ".env", "load environment variables from this file if it exists")
	_ = flags.Parse(os.Args[1:])

	if err := envx.Load(*envFile); err != nil {
		log.Fatalf("failed to load %s: %v", *envFile, err)
	}

	cfg := worker.LoadConfig()

	proc, err := worker.Open(context.Background(), "order-service", version, cfg)
	if err != nil {
		log.Fatalf("failed to initialize worker: %v", err)
	}

	processor := &orders.Processor{
		Orders:   &service.OrderService{Store: proc.Store, Events: proc.Events},
		Accounts: proc.Store.Accounts(),
		Events:   proc.Events,
		Logger:   proc.Logger,
	}

	if err := proc.Run(events.OrderWorkerTopology(), processor.Consumers(cfg.ConsumeOptions())); err != nil {
		log.Fatalf("worker error: %v", err)
	}
}

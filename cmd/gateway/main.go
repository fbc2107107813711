package main

import (
	"log"
	"os"

	"github.com/spf13/pflag"

	"github.com/swiftlogistics/platform/internal/gateway/app"
	"github.com/swiftlogistics/platform/pkg/envx"
)

func main() {
	flags := pflag.NewFlagSet("gateway", pflag.ExitOnError)
	envFile := flags.String("env-file", ".env", "load environment variables from this file if it exists")
	_ = flags.Parse(os.Args[1:])

	if err := envx.Load(*envFile); err != nil {
		log.Fatalf("failed to load %s: %v", *envFile, err)
	}

	cfg := app.LoadConfig()

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}

package main

import (
	"context"
	"os"

	"github.com/workflowguard/workflowguard/internal/app"
	"github.com/workflowguard/workflowguard/internal/cli"
	"github.com/workflowguard/workflowguard/internal/config"
)

func openBackend(ctx context.Context) (*cli.Backend, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	container, err := app.New(ctx, cfg, app.NewLogger(cfg, "workflowguard-cli"))
	if err != nil {
		return nil, err
	}

	return &cli.Backend{
		Versions:   container.Versions,
		Compliance: container.Compliance,
		Close:      container.Close,
	}, nil
}

func main() {
	os.Exit(cli.Execute(openBackend))
}

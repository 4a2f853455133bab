package main

import (
	"os"

	"github.com/fjod/storefront/internal/config"
	"github.com/fjod/storefront/internal/logger"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "storefront",
		Usage: "storefront cart, session and checkout API",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API and the gRPC health server",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply database migrations for the sqlite and postgres backends",
				Action: migrate,
			},
			{
				Name:  "env",
				Usage: "list the recognised environment variables",
				Action: func(*cli.Context) error {
					return config.Usage()
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("storefront failed")
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := logger.Setup(cfg.LogLevel, os.Stdout); err != nil {
		return nil, err
	}
	return cfg, nil
}

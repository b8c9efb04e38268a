package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	configFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "path to a TOML config file",
			Sources: cli.EnvVars("CVGEN_CONFIG"),
		},
		&cli.StringFlag{
			Name:  "env",
			Usage: "path to an optional .env file",
			Value: ".env",
		},
	}

	app := &cli.Command{
		Name:  "cv-generator",
		Usage: "CV generation service",
		Flags: configFlags,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API, the in-process dispatcher and the janitor",
				Action: serveAction,
			},
			{
				Name:   "worker",
				Usage:  "consume generation tasks from RabbitMQ",
				Action: workerAction,
			},
			{
				Name:   "migrate",
				Usage:  "apply database migrations and exit",
				Action: migrateAction,
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"github.com/varunjain2021/guido-1-sub002/pkg/api"
	"github.com/varunjain2021/guido-1-sub002/pkg/dbwatch"
	"github.com/varunjain2021/guido-1-sub002/pkg/journeysink"
	"github.com/varunjain2021/guido-1-sub002/pkg/routingengine"

	_ "time/tzdata"
)

func main() {
	if os.Getenv("GUIDO_LOG_FORMAT") != "JSON" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	if os.Getenv("GUIDO_DEBUG") == "YES" {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	app := &cli.App{
		Name:        "navigator",
		Description: "Navigation session coordinator and journey telemetry sync",

		Commands: []*cli.Command{
			api.RegisterCLI(),
			routingengine.RegisterCLI(),
			journeysink.RegisterCLI(),
			dbwatch.RegisterCLI(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal().Err(err).Send()
	}
}

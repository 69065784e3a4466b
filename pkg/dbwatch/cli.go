package dbwatch

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"github.com/varunjain2021/guido-1-sub002/pkg/database"
	"github.com/varunjain2021/guido-1-sub002/pkg/redis_client"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "dbwatch",
		Usage: "Watches the journeys collection and raises journey events",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run the journeys watcher",
				Action: func(c *cli.Context) error {
					if err := database.Connect(); err != nil {
						return err
					}
					if err := redis_client.Connect(); err != nil {
						return err
					}

					eventQueue, err := redis_client.QueueConnection.OpenQueue(JourneyEventsQueueName)
					if err != nil {
						return err
					}

					log.Info().Msg("Starting dbwatch server")

					ctx, cancel := context.WithCancel(context.Background())
					defer cancel()

					watch := NewJourneysWatch(database.GetCollection(database.JourneysCollection), eventQueue)
					go watch.Run(ctx)

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
					defer signal.Stop(signals)

					<-signals // wait for signal
					go func() {
						<-signals // hard exit on second signal (in case shutdown gets stuck)
						os.Exit(1)
					}()

					return nil
				},
			},
		},
	}
}

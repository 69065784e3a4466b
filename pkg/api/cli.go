package api

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"github.com/varunjain2021/guido-1-sub002/pkg/api/stats"
	"github.com/varunjain2021/guido-1-sub002/pkg/archiver"
	"github.com/varunjain2021/guido-1-sub002/pkg/consumer"
	"github.com/varunjain2021/guido-1-sub002/pkg/elastic_client"
	"github.com/varunjain2021/guido-1-sub002/pkg/journeysink"
	"github.com/varunjain2021/guido-1-sub002/pkg/navcache"
	"github.com/varunjain2021/guido-1-sub002/pkg/navigation"
	"github.com/varunjain2021/guido-1-sub002/pkg/redis_client"
	"github.com/varunjain2021/guido-1-sub002/pkg/routingengine"
	"github.com/varunjain2021/guido-1-sub002/pkg/util"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Provides the navigation HTTP API",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run the navigation api server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Value: ":8080",
						Usage: "listen target for the web server",
					},
					&cli.StringFlag{
						Name:  "trace",
						Usage: "serve sessions from a recorded trace instead of a live routing engine",
					},
					&cli.StringFlag{
						Name:  "trace-name",
						Usage: "trace to use from the trace file, defaults to the first",
					},
					&cli.Float64Flag{
						Name:  "speed",
						Value: 1,
						Usage: "trace playback speed",
					},
				},
				Action: func(c *cli.Context) error {
					sink, err := journeysink.NewFromEnvironment()
					if err != nil {
						return err
					}

					options := []navigation.Option{navigation.WithConfig(navigation.GetConfig())}

					var engine navigation.RoutingEngine
					if path := c.String("trace"); path != "" {
						trace, err := routingengine.FindTrace(path, c.String("trace-name"))
						if err != nil {
							return err
						}

						replay := routingengine.NewReplayEngine(trace, c.Float64("speed"))
						engine = replay
						options = append(options, navigation.WithClock(replay.Clock()))

						log.Info().Str("trace", trace.Name).Msg("Serving navigation from a recorded trace")
					} else {
						log.Warn().Msg("No routing engine configured, navigation start requests will fail")
					}

					coordinator := navigation.NewCoordinator(engine, sink, options...)

					collector := stats.NewCollector()
					collected, _ := coordinator.Events().Subscribe(256)
					go collector.Run(collected)

					if err := elastic_client.Connect(false); err != nil {
						return err
					}
					archiveDone := make(chan struct{})
					if elastic_client.Enabled() {
						archived, _ := coordinator.Events().Subscribe(256)
						go func() {
							defer close(archiveDone)
							archiver.New().Run(archived)
						}()
					} else {
						close(archiveDone)
					}

					ctx, cancel := context.WithCancel(context.Background())
					defer cancel()

					server := &Server{
						Navigator: coordinator,
						Sink:      sink,
						Stats:     collector,
					}

					var locations *consumer.RedisConsumer
					publishDone := make(chan struct{})
					if util.GetEnvironmentVariables()["GUIDO_REDIS_ADDRESS"] != "" {
						if err := redis_client.Connect(); err != nil {
							return err
						}

						server.Snapshots = navcache.NewSnapshotCache(redis_client.Client, 0)
						publisher := navcache.NewPublisher(coordinator, server.Snapshots, navcache.DefaultPublishInterval)
						go func() {
							defer close(publishDone)
							publisher.Run(ctx)
						}()

						locations = &consumer.RedisConsumer{
							QueueName:       navigation.LocationQueueName,
							NumberConsumers: 1,
							BatchSize:       50,
							Timeout:         time.Second,
							StatsAddress:    util.GetEnvironmentVariables()["GUIDO_QUEUE_STATS_LISTEN"],
							Consumer:        navigation.NewLocationQueueConsumer(coordinator),
						}
						if err := locations.Setup(); err != nil {
							return err
						}
					} else {
						close(publishDone)
					}

					if server.Auth, err = AuthFromEnvironment(); err != nil {
						return err
					}

					app := server.App()

					listenErr := make(chan error, 1)
					go func() {
						log.Info().Str("listen", c.String("listen")).Msg("Navigation API listening")
						listenErr <- app.Listen(c.String("listen"))
					}()

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
					defer signal.Stop(signals)

					select {
					case err := <-listenErr:
						if err != nil {
							return err
						}
					case <-signals:
						go func() {
							<-signals // hard exit on second signal (in case shutdown gets stuck)
							os.Exit(1)
						}()
					}

					shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Minute)
					defer shutdownCancel()

					if err := app.ShutdownWithContext(shutdownCtx); err != nil {
						log.Error().Err(err).Msg("Failed to shut down web server")
					}
					if locations != nil {
						locations.Stop()
					}

					// closes the event streams
					coordinator.Shutdown(shutdownCtx)
					cancel()

					<-publishDone
					<-archiveDone
					elastic_client.WaitUntilQueueEmpty()

					return nil
				},
			},
		},
	}
}

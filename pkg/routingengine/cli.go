package routingengine

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kr/pretty"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"github.com/varunjain2021/guido-1-sub002/pkg/archiver"
	"github.com/varunjain2021/guido-1-sub002/pkg/elastic_client"
	"github.com/varunjain2021/guido-1-sub002/pkg/journeysink"
	"github.com/varunjain2021/guido-1-sub002/pkg/navcache"
	"github.com/varunjain2021/guido-1-sub002/pkg/navigation"
	"github.com/varunjain2021/guido-1-sub002/pkg/redis_client"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "navigation",
		Usage: "Headless navigation sessions driven by recorded traces",
		Subcommands: []*cli.Command{
			{
				Name:  "replay",
				Usage: "replay a recorded trace through the navigation coordinator",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "trace",
						Usage:    "YAML file with one or more traces",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "trace to replay, defaults to the first in the file",
					},
					&cli.Float64Flag{
						Name:  "speed",
						Value: 0,
						Usage: "playback speed relative to the recording, 0 replays without waiting",
					},
					&cli.BoolFlag{
						Name:  "persist",
						Usage: "write the journey to the sink configured by GUIDO_SINK instead of memory",
					},
					&cli.BoolFlag{
						Name:  "archive",
						Usage: "archive navigation events to Elasticsearch",
					},
					&cli.BoolFlag{
						Name:  "publish-state",
						Usage: "publish navigation snapshots to redis",
					},
				},
				Action: func(c *cli.Context) error {
					trace, err := FindTrace(c.String("trace"), c.String("name"))
					if err != nil {
						return err
					}

					var sink journeysink.Sink = journeysink.NewMemorySink()
					if c.Bool("persist") {
						if sink, err = journeysink.NewFromEnvironment(); err != nil {
							return err
						}
					}

					engine := NewReplayEngine(trace, c.Float64("speed"))
					coordinator := navigation.NewCoordinator(engine, sink,
						navigation.WithConfig(navigation.GetConfig()),
						navigation.WithClock(engine.Clock()),
					)

					events, _ := coordinator.Events().Subscribe(256)
					printed := make(chan struct{})
					go func() {
						defer close(printed)
						printEvents(events)
					}()

					var archiveDone chan struct{}
					if c.Bool("archive") {
						if err := elastic_client.Connect(true); err != nil {
							return err
						}
						defer elastic_client.WaitUntilQueueEmpty()

						archived, _ := coordinator.Events().Subscribe(256)
						archiveDone = make(chan struct{})
						go func() {
							defer close(archiveDone)
							archiver.New(archiver.WithClock(engine.Clock().Now)).Run(archived)
						}()
					}

					ctx, cancel := context.WithCancel(context.Background())
					defer cancel()

					if c.Bool("publish-state") {
						if err := redis_client.Connect(); err != nil {
							return err
						}

						publisher := navcache.NewPublisher(coordinator, navcache.NewSnapshotCache(redis_client.Client, 0), navcache.DefaultPublishInterval)
						published := make(chan struct{})
						go func() {
							defer close(published)
							publisher.Run(ctx)
						}()
						defer func() {
							cancel()
							<-published
						}()
					}

					started, err := coordinator.Start(ctx, trace.StartRequest())
					if err != nil {
						coordinator.Shutdown(ctx)
						<-printed
						return fmt.Errorf("trace %q: %w", trace.Name, err)
					}

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
					defer signal.Stop(signals)

					select {
					case <-engine.Done():
					case <-signals:
						log.Info().Msg("Interrupted, cancelling navigation")
					}

					stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Minute)
					defer stopCancel()

					if final := coordinator.Stop(stopCtx, true); final != nil {
						log.Warn().Str("journey", final.ID).Msg("Trace ended before arrival, journey cancelled")
					}
					// closes the event streams
					coordinator.Shutdown(stopCtx)

					<-printed
					if archiveDone != nil {
						<-archiveDone
					}

					stored, err := sink.FetchJourney(stopCtx, started.ID)
					if err != nil {
						return err
					}

					pretty.Println(stored)

					return nil
				},
			},
		},
	}
}

func printEvents(events <-chan navigation.Event) {
	for event := range events {
		entry := log.Info().Str("event", string(event.Kind()))

		if spoken := event.SpokenText(); spoken != "" {
			entry.Msg(spoken)
		} else {
			entry.Msgf("%# v", pretty.Formatter(event))
		}
	}
}

package journeysink

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/kr/pretty"
	"github.com/urfave/cli/v2"
	"github.com/varunjain2021/guido-1-sub002/pkg/journey"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "journeys",
		Usage: "Inspect and export stored navigation journeys",
		Subcommands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "print a stored journey",
				ArgsUsage: "<journey id>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("exactly one journey id is required", 1)
					}

					sink, err := NewFromEnvironment()
					if err != nil {
						return err
					}

					ctx, cancel := context.WithTimeout(c.Context, time.Minute)
					defer cancel()

					found, err := sink.FetchJourney(ctx, c.Args().First())
					if err != nil {
						return err
					}

					pretty.Println(found)

					return nil
				},
			},
			{
				Name:      "export",
				Usage:     "export breadcrumbs, checkpoints or whole journeys",
				ArgsUsage: "<journey id>...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "format",
						Value: "breadcrumbs",
						Usage: "breadcrumbs (csv), checkpoints (csv) or json",
					},
					&cli.StringFlag{
						Name:  "output",
						Usage: "file to write, defaults to stdout",
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Value: defaultFetchConcurrency,
						Usage: "journeys fetched in parallel",
					},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return cli.Exit("at least one journey id is required", 1)
					}

					write, err := exportWriter(c.String("format"))
					if err != nil {
						return err
					}

					sink, err := NewFromEnvironment()
					if err != nil {
						return err
					}

					ctx, cancel := context.WithTimeout(c.Context, 5*time.Minute)
					defer cancel()

					journeys, err := FetchJourneys(ctx, sink, c.Args().Slice(), c.Int("concurrency"))
					if err != nil {
						return err
					}

					var output io.Writer = os.Stdout
					if path := c.String("output"); path != "" {
						file, err := os.Create(path)
						if err != nil {
							return err
						}
						defer file.Close()

						output = file
					}

					return write(output, journeys)
				},
			},
		},
	}
}

func exportWriter(format string) (func(io.Writer, []*journey.Journey) error, error) {
	switch format {
	case "breadcrumbs":
		return WriteBreadcrumbsCSV, nil
	case "checkpoints":
		return WriteCheckpointsCSV, nil
	case "json":
		return WriteJSON, nil
	}

	return nil, fmt.Errorf("unknown export format %q", format)
}

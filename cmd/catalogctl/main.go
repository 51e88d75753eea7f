package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/timmy/dropcart/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Logs go to stderr so command output on stdout stays machine readable
	logger.SetDefaultLogger(logger.New(&logger.Config{
		Level:       "warn",
		Format:      "text",
		Output:      os.Stderr,
		ServiceName: "catalogctl",
	}))
	defer logger.Sync()

	if err := newRootCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "catalogctl",
		Usage: "drive catalog jobs, price quotes and variant matching from the shell",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to the config file",
				Sources: cli.EnvVars("CONFIG_PATH"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "job",
				Usage: "catalog job commands",
				Commands: []*cli.Command{
					{
						Name:  "create",
						Usage: "create a finder or scanner job",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "kind",
								Usage: "catalog-finder or catalog-scanner",
								Value: "catalog-finder",
							},
							&cli.StringSliceFlag{
								Name:  "keyword",
								Usage: "search keyword (repeatable)",
							},
							&cli.StringSliceFlag{
								Name:  "category",
								Usage: "category to scan (repeatable)",
							},
							&cli.IntFlag{
								Name:  "page-size",
								Usage: "listings per page (0 uses the configured default)",
							},
							&cli.IntFlag{
								Name:  "max-pages",
								Usage: "pages fetched per keyword or category (0 uses the configured default)",
							},
							&cli.IntFlag{
								Name:  "target",
								Usage: "stop after this many items (0 means no target)",
							},
							&cli.IntFlag{
								Name:  "min-stock",
								Usage: "skip products whose summed variant stock is lower",
							},
						},
						Action: jobCreateAction,
					},
					{
						Name:   "step",
						Usage:  "run one bounded step",
						Flags:  []cli.Flag{jobIDFlag()},
						Action: jobStepAction,
					},
					{
						Name:  "run",
						Usage: "step a job until it finishes or the step budget runs out",
						Flags: []cli.Flag{
							jobIDFlag(),
							&cli.IntFlag{
								Name:  "max-steps",
								Usage: "step budget (0 uses the configured default)",
							},
						},
						Action: jobRunAction,
					},
					{
						Name:   "status",
						Usage:  "show a job",
						Flags:  []cli.Flag{jobIDFlag()},
						Action: jobStatusAction,
					},
					{
						Name:   "cancel",
						Usage:  "cancel a job that has not finished",
						Flags:  []cli.Flag{jobIDFlag()},
						Action: jobCancelAction,
					},
					{
						Name:  "list",
						Usage: "list jobs, newest first",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "kind", Usage: "filter by kind"},
							&cli.StringFlag{Name: "status", Usage: "filter by status"},
							&cli.IntFlag{Name: "limit", Usage: "page size", Value: 20},
						},
						Action: jobListAction,
					},
				},
			},
			{
				Name:  "price",
				Usage: "pricing commands",
				Commands: []*cli.Command{
					{
						Name:  "quote",
						Usage: "compute the retail price for a supplier cost",
						Flags: []cli.Flag{
							&cli.FloatFlag{
								Name:     "cost",
								Usage:    "supplier cost in supplier currency",
								Required: true,
							},
							&cli.FloatFlag{
								Name:  "shipping",
								Usage: "supplier shipping price; omitted uses the default",
							},
							&cli.StringFlag{
								Name:  "category",
								Usage: "category used to pick the pricing rule",
							},
						},
						Action: priceQuoteAction,
					},
				},
			},
			{
				Name:  "variant",
				Usage: "variant matching commands",
				Commands: []*cli.Command{
					{
						Name:  "match",
						Usage: "match a storefront label against variants given as id=key",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "label",
								Usage:    "storefront variant label, e.g. Black-XL",
								Required: true,
							},
							&cli.StringSliceFlag{
								Name:     "variant",
								Usage:    "supplier variant as id=key (repeatable)",
								Required: true,
							},
						},
						Action: variantMatchAction,
					},
					{
						Name:  "resolve",
						Usage: "resolve a label against the live supplier product",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "product",
								Usage:    "supplier product id",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "label",
								Usage: "storefront variant label",
							},
						},
						Action: variantResolveAction,
					},
				},
			},
		},
	}
}

func jobIDFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "id",
		Usage:    "job id",
		Required: true,
	}
}

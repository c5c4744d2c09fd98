package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/logger"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "lawctl:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "lawctl",
		Usage: "Prepare, import and query law corpora",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the service config file",
				Value:   "configs/development.yaml",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
		},
		Before: func(c *cli.Context) error {
			slog.SetDefault(logger.New(c.App.ErrWriter, c.String("log-level"), "text"))
			slog.Debug("lawctl starting", "config", c.String("config"))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "prepare",
				Usage:  "Split law acts into one record per article and write JSON Lines",
				Action: prepareCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "in", Aliases: []string{"i"}, Usage: "Input corpus (JSON array or JSONL)", Required: true},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output JSONL file, - for stdout", Value: "-"},
					&cli.BoolFlag{Name: "no-split", Usage: "Only normalise records, do not split articles"},
				},
			},
			{
				Name:   "import",
				Usage:  "Load a corpus file into the configured SQL database",
				Action: importCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "in", Aliases: []string{"i"}, Usage: "Input corpus (JSON array or JSONL)", Required: true},
					&cli.StringFlag{Name: "to", Usage: "Target database: sqlite or postgres", Value: "sqlite"},
				},
			},
			{
				Name:   "search",
				Usage:  "Run a query against the configured corpus",
				Action: searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "top-k", Aliases: []string{"k"}, Usage: "Maximum results", Value: 5},
					&cli.Float64Flag{Name: "min-score", Usage: "Drop results scoring below this"},
					&cli.BoolFlag{Name: "json", Usage: "Print the raw response as JSON"},
					&cli.BoolFlag{Name: "context", Usage: "Print the rendered prompt context block"},
				},
			},
			{
				Name:  "admin-key",
				Usage: "Manage admin keys stored in the SQL corpus backend",
				Subcommands: []*cli.Command{
					{
						Name:   "create",
						Usage:  "Issue a new key and print it once",
						Action: adminKeyCreate,
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "name", Usage: "Who the key is for", Required: true},
							&cli.DurationFlag{Name: "ttl", Usage: "Expire the key after this long, 0 for never"},
						},
					},
					{
						Name:      "revoke",
						Usage:     "Deactivate a key by id",
						ArgsUsage: "<id>",
						Action:    adminKeyRevoke,
					},
					{
						Name:   "list",
						Usage:  "List active keys",
						Action: adminKeyList,
					},
				},
			},
			{
				Name:   "stats",
				Usage:  "Print corpus statistics and the most common terms",
				Action: statsCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "top", Usage: "Number of terms to list", Value: 20},
				},
			},
		},
	}
}

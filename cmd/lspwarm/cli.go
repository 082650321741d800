package main

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/lspwarm/internal/daemon"
	"github.com/hpungsan/lspwarm/internal/errors"
	"github.com/hpungsan/lspwarm/internal/mcp"
	"github.com/hpungsan/lspwarm/internal/metrics"
	"github.com/hpungsan/lspwarm/internal/ops"
)

// startServer launches language servers for `run`. nil spawns processes.
var startServer daemon.Starter

// newCLIApp creates the CLI application with all commands.
func newCLIApp(db *sql.DB, e *env) *cli.App {
	app := &cli.App{
		Name:    "lspwarm",
		Usage:   "Incremental workspace warm-up for language servers",
		Version: Version,
		Commands: []*cli.Command{
			runCmd(db, e),
			scanCmd(e),
			summaryCmd(db, e),
			historyCmd(db),
			showCmd(db),
			purgeCmd(db),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// runCmd creates the run command.
func runCmd(db *sql.DB, e *env) *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Start language servers for files and warm up their directories",
		ArgsUsage: "<file>...",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "mcp", Usage: "Serve MCP tools on stdio while running"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("at least one file is required"))
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			d, err := daemon.New(daemon.Options{
				Config:  e.cfg,
				Version: Version,
				DB:      db,
				Logger:  e.logger,
				Metrics: metrics.New(),
				Starter: startServer,
			})
			if err != nil {
				return outputError(err)
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return d.Run(gctx) })

			for _, path := range c.Args().Slice() {
				if err := d.Open(gctx, path); err != nil {
					cancel()
					_ = g.Wait()
					return outputError(err)
				}
				e.logger.Info("opened", "path", path)
			}

			serveMCP := c.Bool("mcp")
			if serveMCP {
				g.Go(func() error {
					// stdin closing ends the whole run
					defer cancel()
					opts := mcp.Options{Version: Version, Flusher: d, Logger: e.logger}
					if err := mcp.Serve(gctx, db, e.cfg, opts, os.Stdin, os.Stdout); err != nil && gctx.Err() == nil {
						return err
					}
					return nil
				})
			}

			if err := g.Wait(); err != nil {
				return outputError(err)
			}
			if serveMCP {
				return nil
			}
			return outputJSON(d.Runs())
		},
	}
}

// scanCmd creates the scan command.
func scanCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "scan",
		Usage:     "Preview the files a run from a directory would open",
		ArgsUsage: "[dir]",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultScanLimit, Usage: "Maximum files to list"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Files to skip"},
		},
		Action: func(c *cli.Context) error {
			root := c.Args().First()
			if root == "" {
				root = "."
			}

			output, err := ops.Scan(c.Context, e.cfg, ops.ScanInput{
				Root:   root,
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			}, e.logger)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// summaryCmd creates the summary command.
func summaryCmd(db *sql.DB, e *env) *cli.Command {
	return &cli.Command{
		Name:  "summary",
		Usage: "Show the current diagnostics summary",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "from-journal", Usage: "Read the latest journaled flush instead of the output file"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Summary(db, e.cfg, ops.SummaryInput{FromJournal: c.Bool("from-journal")})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// historyCmd creates the history command.
func historyCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List journaled flushes, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Items to skip"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.History(db, ops.HistoryInput{
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// showCmd creates the show command.
func showCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show one journaled flush with its entries",
		ArgsUsage: "<flush-id>",
		Action: func(c *cli.Context) error {
			output, err := ops.Show(db, ops.ShowInput{ID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// purgeCmd creates the purge command.
func purgeCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "purge",
		Usage: "Permanently delete journaled flushes",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "older-than", Usage: "Only purge flushes written more than N days ago (e.g., 7d)"},
		},
		Action: func(c *cli.Context) error {
			input := ops.PurgeInput{}

			if olderThan := c.String("older-than"); olderThan != "" {
				days, err := parseDuration(olderThan)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				input.OlderThan = time.Duration(days) * 24 * time.Hour
			}

			output, err := ops.Purge(c.Context, db, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var wErr *errors.WarmError
	if stderrors.As(err, &wErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", wErr.Code, wErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// parseDuration parses "7d" format to days.
func parseDuration(s string) (int, error) {
	if numStr, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(numStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		if days < 0 {
			return 0, fmt.Errorf("duration must be non-negative")
		}
		return days, nil
	}
	return 0, fmt.Errorf("duration must end with 'd' (days), e.g., 7d")
}

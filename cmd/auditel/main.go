// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/auditel"
	"github.com/poiesic/auditel/config"
	"github.com/poiesic/auditel/httpapi"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "auditel",
		Usage: "Regulatory compliance answers from audit records and official gazettes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to a YAML configuration file",
			},
			&cli.StringFlag{
				Name:  "data-dir",
				Usage: "Directory holding the category record files",
			},
			&cli.StringFlag{
				Name:  "cache-dir",
				Usage: "Directory for the file and badger cache backends",
			},
			&cli.StringFlag{
				Name:  "cache-backend",
				Usage: "Cache backend (file, badger, redis)",
			},
			&cli.StringFlag{
				Name:  "redis-addr",
				Usage: "Redis address for the redis cache backend",
			},
			&cli.StringFlag{
				Name:  "web-scorer",
				Usage: "Relevance scorer for scraped results (coverage, tfidf)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (defaults to the configured one)",
					},
				},
			},
			{
				Name:   "ask",
				Usage:  "Answer a question from the local records and the gazettes",
				Action: askCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "question",
						Aliases:  []string{"q"},
						Usage:    "Question to answer",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "category",
						Aliases:  []string{"c"},
						Usage:    "Audit category, e.g. \"Obra Pública\"",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "entity",
						Usage: "Audited entity type",
					},
					&cli.BoolFlag{
						Name:  "no-web",
						Usage: "Search only the local records",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the raw result as JSON",
					},
				},
			},
			{
				Name:   "scrape",
				Usage:  "Search the gazettes directly",
				Action: scrapeCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "query",
						Usage: "Search terms (defaults to the category keywords)",
					},
					&cli.StringFlag{
						Name:  "source",
						Usage: "Source name or \"all\"",
						Value: "all",
					},
					&cli.StringFlag{
						Name:  "category",
						Usage: "Category whose keywords are used when no query is given",
					},
					&cli.IntFlag{
						Name:  "max",
						Usage: "Maximum results per source (defaults to the configured cap)",
					},
				},
			},
			{
				Name:   "detail",
				Usage:  "Download the full text of a gazette document",
				Action: detailCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "source",
						Usage:    "Source name",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "url",
						Usage:    "Document URL",
						Required: true,
					},
				},
			},
			{
				Name:   "health",
				Usage:  "Print the service state",
				Action: healthCommand,
			},
			{
				Name:  "cache",
				Usage: "Inspect and maintain the search cache",
				Subcommands: []*cli.Command{
					{
						Name:   "stats",
						Usage:  "Print cache statistics",
						Action: cacheStatsCommand,
					},
					{
						Name:   "clear",
						Usage:  "Remove every cache entry",
						Action: cacheClearCommand,
					},
					{
						Name:   "purge",
						Usage:  "Remove expired cache entries",
						Action: cachePurgeCommand,
					},
				},
			},
		},
	}
}

// loadConfig builds the configuration from the optional file and the global flags.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var opts []config.Option
	if c.IsSet("data-dir") {
		opts = append(opts, config.WithDataDir(c.String("data-dir")))
	}
	if c.IsSet("cache-dir") {
		opts = append(opts, config.WithCacheDir(c.String("cache-dir")))
	}
	if c.IsSet("cache-backend") {
		opts = append(opts, config.WithCacheBackend(c.String("cache-backend")))
	}
	if c.IsSet("redis-addr") {
		opts = append(opts, config.WithRedisAddr(c.String("redis-addr")))
	}
	if c.IsSet("web-scorer") {
		opts = append(opts, config.WithWebScorer(c.String("web-scorer")))
	}

	if path := c.String("config"); path != "" {
		return config.Load(path, opts...)
	}
	cfg := config.NewConfig(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openService(c *cli.Context) (*auditel.Service, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	svc, err := auditel.NewService(auditel.WithConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to start service: %w", err)
	}
	return svc, nil
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func serveCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	srv, err := httpapi.NewServer(svc)
	if err != nil {
		return err
	}

	addr := c.String("addr")
	if addr == "" {
		addr = svc.Config().ListenAddr
	}
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.ListenAndServe(ctx, addr)
}

func askCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	useWeb := !c.Bool("no-web")
	answer, err := svc.HybridSearch(c.Context, auditel.Question{
		Text:     c.String("question"),
		Category: c.String("category"),
		Entity:   c.String("entity"),
		UseWeb:   &useWeb,
	})
	if err != nil {
		return err
	}
	if c.Bool("json") {
		return printJSON(c, answer.Result)
	}
	fmt.Fprintln(c.App.Writer, answer.Text)
	return nil
}

func scrapeCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx := c.Context
	if source := c.String("source"); source != "all" {
		query := svc.ScrapeQuery(c.String("query"), c.String("category"))
		results, err := svc.ScrapeSource(ctx, source, query, c.Int("max"))
		if err != nil {
			return err
		}
		return printJSON(c, results)
	}
	bundle, err := svc.Scrape(ctx, c.String("query"), c.String("category"), c.Int("max"))
	if err != nil {
		return err
	}
	return printJSON(c, bundle)
}

func detailCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	n, err := svc.FetchDetail(c.Context, c.String("source"), c.String("url"))
	if err != nil {
		return err
	}
	return printJSON(c, n)
}

func healthCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()
	return printJSON(c, svc.Health())
}

func cacheStatsCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()
	return printJSON(c, svc.CacheStats())
}

func cacheClearCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()
	if err := svc.ClearCache(); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "cache cleared")
	return nil
}

func cachePurgeCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()
	removed, err := svc.PurgeCache()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "removed %d expired entries\n", removed)
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

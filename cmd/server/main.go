package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docsearch/internal/config"
	"github.com/dgallion1/docsearch/internal/docs"
	"github.com/dgallion1/docsearch/internal/query"
	"github.com/dgallion1/docsearch/internal/searchstore"
	"github.com/dgallion1/docsearch/internal/searchstore/blevestore"
	"github.com/dgallion1/docsearch/internal/searchstore/elastic"
	"github.com/dgallion1/docsearch/internal/stats"
)

// configPath is the --config flag shared by every command.
var configPath string

var rootCmd = &cobra.Command{
	Use:           "docsearch",
	Short:         "Role-aware document search service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (default $DOCSEARCH_CONFIG)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig reads and validates the configuration.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
}

// openStore connects the configured backend.
func openStore(cfg config.Config) (searchstore.Store, error) {
	switch cfg.Backend {
	case config.BackendBleve:
		s, err := blevestore.New(cfg.BlevePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return elastic.NewClient(elastic.Config{
			URL:      cfg.ElasticURL,
			Index:    cfg.ElasticIndex,
			Username: cfg.ElasticUsername,
			Password: cfg.ElasticPassword,
			Timeout:  cfg.ElasticTimeout,
			Refresh:  cfg.ElasticRefresh,
			Language: cfg.AnalyzerLanguage,
		}), nil
	}
}

// newService wires the instrumented store into the document service.
func newService(cfg config.Config, store searchstore.Store, reg *stats.Registry, log *slog.Logger) *docs.Service {
	q := query.DefaultOptions()
	q.MaxResults = cfg.MaxResults
	return docs.NewService(stats.Instrument(store, reg), log, docs.Options{
		Threshold:         cfg.ChunkThreshold,
		MaxConcurrentPuts: cfg.MaxConcurrentPuts,
		Query:             q,
		ReindexTimeout:    cfg.ReindexTimeout,
		ReindexRate:       cfg.ReindexRate,
	})
}

// statsWindow is how long backend latency samples are kept.
const statsWindow = 15 * time.Minute

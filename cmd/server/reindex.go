package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docsearch/internal/stats"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Drop and rebuild the search index from its current contents",
	Long: `Reads every document from the index, recreates the index with the current
mappings and writes every document back. Documents that fail to index are
reported and skipped.`,
	Args: cobra.NoArgs,
	RunE: runReindex,
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	svc := newService(cfg, store, stats.NewRegistry(statsWindow), log)
	if err := svc.EnsureIndex(ctx); err != nil {
		return err
	}

	report, err := svc.Reindex(ctx, func(indexed, failed, total int) {
		if done := indexed + failed; done%100 == 0 || done == total {
			log.Info("reindex progress", "indexed", indexed, "failed", failed, "total", total)
		}
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

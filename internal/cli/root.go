// Package cli implements the skillsync CLI commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/skillsync/skillsync/internal/config"
	"github.com/skillsync/skillsync/internal/db"
	"github.com/skillsync/skillsync/internal/embedding"
	"github.com/skillsync/skillsync/internal/store"
	"github.com/skillsync/skillsync/internal/vectorstore"
)

var (
	dbPath     string
	formatFlag string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "skillsync",
	Short: "Local-first skill registry client",
	Long:  "Syncs a remote skill registry into a local SQLite cache and serves semantic skill discovery over MCP. Single binary, works offline.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $SKILLSYNC_DB or ~/.skillsync/skills.db)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
}

// app bundles everything a command needs once the database is open.
type app struct {
	cfg      *config.Config
	db       *db.DB
	skills   *store.SkillRepository
	syncCfg  *store.SyncConfigRepository
	history  *store.SyncHistoryRepository
	vectors  *vectorstore.Store
	embedder embedding.Embedder
}

// openApp opens the database, runs migrations, and wires the
// repositories. With withVectors the embedding store (and its index)
// is loaded too; metadata-only commands skip that cost.
func openApp(ctx context.Context, withVectors bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}

	d, err := db.Open(cfg.DatabasePath())
	if errors.Is(err, db.ErrLocked) {
		return nil, fmt.Errorf("database %s is locked by another skillsync process", cfg.DatabasePath())
	}
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(d); err != nil {
		d.Close()
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		db:       d,
		skills:   store.NewSkillRepository(d),
		syncCfg:  store.NewSyncConfigRepository(d),
		history:  store.NewSyncHistoryRepository(d),
		embedder: embedding.NewFromEnv(),
	}

	if withVectors {
		a.vectors, err = vectorstore.Open(ctx, d, vectorOptions(cfg, a.embedder))
		if err != nil {
			d.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) close() {
	if a.vectors != nil {
		if err := a.vectors.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: save index snapshot: %v\n", err)
		}
	}
	a.db.Close()
}

// vectorOptions merges the config file over defaults. Dimensions fall
// back to whatever the configured embedder produces.
func vectorOptions(cfg *config.Config, emb embedding.Embedder) vectorstore.Options {
	opts := vectorstore.DefaultOptions()
	if cfg.HNSW.Dimensions > 0 {
		opts.Dimensions = cfg.HNSW.Dimensions
	} else if emb != nil {
		opts.Dimensions = emb.Dims()
	}
	if cfg.HNSW.M > 0 {
		opts.M = cfg.HNSW.M
	}
	if cfg.HNSW.EfConstruction > 0 {
		opts.EfConstruction = cfg.HNSW.EfConstruction
	}
	if cfg.HNSW.EfSearch > 0 {
		opts.EfSearch = cfg.HNSW.EfSearch
	}
	if cfg.HNSW.MaxElements > 0 {
		opts.MaxElements = cfg.HNSW.MaxElements
	}
	opts.UseHNSW = !cfg.HNSW.Disabled
	opts.SnapshotPath = cfg.IndexSnapshotPath()
	return opts
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dealradar/internal/cachestore"
	"dealradar/internal/config"
	"dealradar/internal/expiry"
	"dealradar/internal/listing"
	"dealradar/internal/pool"
	"dealradar/internal/qualify"
	"dealradar/internal/source"
	"dealradar/internal/terms"
	"dealradar/internal/tui"
)

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger(cfg.LogLevel)

	store, err := cachestore.Open(config.CachePath())
	if err != nil {
		return fmt.Errorf("opening cache: %w", err)
	}
	defer store.Close()

	// Auto-prune stale pool entries on startup
	store.Prune(cfg.RetentionDuration())

	src, err := source.New(source.Config{
		BaseURL:      cfg.Marketplace.BaseURL,
		ClientID:     cfg.MarketClientID(),
		ClientSecret: cfg.MarketClientSecret(),
		Timeout:      cfg.TimeoutDuration(),
		PageSize:     cfg.Marketplace.PageSize,
	}, logger)
	if err != nil {
		return fmt.Errorf("marketplace client: %w", err)
	}

	var qualifier qualify.Qualifier
	if cfg.AIEnabled() {
		qualifier, err = qualify.New(qualify.Config{
			Provider: cfg.AI.Provider,
			Model:    cfg.AI.Model,
		}, cfg.AIKey(), logger)
		if err != nil {
			logger.Warn("AI disabled", "err", err)
			qualifier = nil
		}
	}

	sampler := terms.NewSampler(time.Now().UnixNano(), trendingTerms(cfg, logger)...)

	builder := pool.NewBuilder(src, qualifier, store, sampler, pool.Config{
		MinPoolSize:      cfg.Pool.MinPoolSize,
		MinQualified:     cfg.Pool.MinQualified,
		DesiredSize:      cfg.Pool.DesiredSize,
		BatchSize:        cfg.Pool.BatchSize,
		MaxKeywords:      cfg.Pool.MaxKeywords,
		PageSize:         cfg.Marketplace.PageSize,
		OverfetchFactor:  cfg.Pool.OverfetchFactor,
		RawOnEmptyAI:     cfg.Pool.RawOnEmptyAI,
		CuratedTTL:       cfg.CuratedTTLDuration(),
		SearchedTTL:      cfg.SearchedTTLDuration(),
		SoftRefreshAfter: cfg.SoftRefreshDuration(),
	}, logger)

	itemType := listing.TypeDeal
	if flagAuctions {
		itemType = listing.TypeAuction
	}
	query := strings.TrimSpace(flagQuery)

	if flagRefresh {
		key := cachestore.CuratedKey(itemType)
		if query != "" {
			key = cachestore.SearchedKey(itemType, query)
		}
		store.Delete(key)
	}

	return tui.Run(tui.RunOpts{
		Cfg:        cfg,
		Builder:    builder,
		Store:      store,
		Reconciler: expiry.New(),
		ItemType:   itemType,
		Query:      query,
		Version:    version,
	})
}

// trendingTerms fetches extra keywords from the configured feed. Failure
// just means the built-in vocabulary runs alone.
func trendingTerms(cfg *config.Config, logger *slog.Logger) []string {
	if cfg.TrendingFeed == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	extra, err := terms.Trending(ctx, cfg.TrendingFeed)
	if err != nil {
		logger.Warn("trending feed unavailable", "err", err)
		return nil
	}
	return extra
}

// newLogger writes structured logs next to the cache database. The TUI
// owns the terminal, so stderr is not an option while it runs.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	logPath := filepath.Join(filepath.Dir(config.CachePath()), "dealradar.log")
	var w io.Writer = io.Discard
	if f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
		w = f
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

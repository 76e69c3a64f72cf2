package server

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/marketintel/mia/config"
	"github.com/marketintel/mia/internal/llm"
	"github.com/marketintel/mia/internal/publish"
	"github.com/marketintel/mia/internal/scrape"
	"github.com/marketintel/mia/internal/search"
	"github.com/marketintel/mia/internal/store"
	"github.com/marketintel/mia/internal/telemetry"
)

// RunMission executes a single mission from the command line and prints the
// report to stdout.
func RunMission(ctx context.Context, cfg *config.Config, mission string) error {
	dsn, err := cfg.Storage.Postgres.DSN()
	if err != nil {
		return err
	}
	st, err := store.Open(ctx, dsn)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	var rdb *redis.Client
	if addr := cfg.Storage.Redis.Addr(); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Storage.Redis.Password})
	}

	client, err := llm.New(cfg.LLM)
	if err != nil {
		return err
	}
	var searcher search.Client = search.NewDuckDuckGo(cfg.Tools.HTTPTimeout)
	searcher = search.NewCached(searcher, rdb, cfg.Tools.SearchCacheTTL)
	scraper := scrape.NewChromedp(cfg.Tools.ScraperTimeout, scrapeMaxChars)
	notion := publish.NewNotion(cfg.Tools.Notion.Token, cfg.Tools.Notion.PageID, cfg.Tools.HTTPTimeout)
	email := publish.NewEmail(cfg.Tools.Email.ResendAPIKey, cfg.Tools.Email.From, cfg.Tools.Email.To, cfg.Tools.HTTPTimeout)

	coordinator, _, err := buildCoordinator(cfg, client, st, scraper, searcher, notion, email, telemetry.New())
	if err != nil {
		return err
	}

	result := coordinator.Run(ctx, mission, "", nil)
	fmt.Println(result.Report)
	for _, entry := range result.Trace {
		if entry.Status != "" {
			fmt.Printf("  %s: %s\n", entry.Tool, entry.Status)
		} else {
			fmt.Printf("  %s: %s\n", entry.Tool, entry.Result)
		}
	}
	return nil
}

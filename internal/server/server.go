package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/marketintel/mia/config"
	"github.com/marketintel/mia/internal/agent"
	"github.com/marketintel/mia/internal/llm"
	"github.com/marketintel/mia/internal/memory"
	"github.com/marketintel/mia/internal/publish"
	"github.com/marketintel/mia/internal/scrape"
	"github.com/marketintel/mia/internal/search"
	"github.com/marketintel/mia/internal/store"
	"github.com/marketintel/mia/internal/telemetry"
)

const scrapeMaxChars = 10000

// Run wires every collaborator once and serves the API until the context is
// cancelled. Construction failures (missing credentials, unreachable
// database) are fatal here, before any mission starts.
func Run(ctx context.Context, cfg *config.Config) error {
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	origins := cfg.Server.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "Cookie"},
		AllowCredentials: true,
	}))

	metrics := telemetry.New()
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

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

	coordinator, engine, err := buildCoordinator(cfg, client, st, scraper, searcher, notion, email, metrics)
	if err != nil {
		return err
	}

	if cfg.Server.JWTSecret == "" {
		return fmt.Errorf("server.jwt_secret is required")
	}
	auth := &AuthHandler{Store: st, Secret: []byte(cfg.Server.JWTSecret)}

	api := e.Group("/api")
	auth.Register(api.Group("/auth"))

	handler := &AgentHandler{Runner: coordinator, Store: st}
	if engine != nil {
		handler.Memory = engine
	}
	protected := api.Group("/agent")
	protected.Use(AuthMiddleware(auth.Secret))
	handler.Register(protected)
	handler.RegisterReports(protected)

	sched := NewScheduler(cfg.Schedule, coordinator, rdb)
	sched.Start()
	defer close(sched.Stop)

	go func() {
		<-ctx.Done()
		_ = e.Shutdown(context.Background())
	}()

	baseLogger.Printf("Listening on %s", cfg.Server.Address)
	if err := e.Start(cfg.Server.Address); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// buildCoordinator assembles the mission pipeline from its collaborators.
func buildCoordinator(cfg *config.Config, client llm.Client, st *store.Store,
	scraper agent.Scraper, searcher agent.Searcher, notion, email agent.Publisher,
	metrics *telemetry.Metrics) (*agent.Coordinator, *memory.Engine, error) {

	orch := agent.NewOrchestrator(scraper, searcher, notion, email, metrics)
	planner := agent.NewPlanner(client)

	// Retrieval memory needs an embedding backend. Gemini is the only one
	// wired, so construct it independently of the chat provider when its
	// key is present; without it, missions run with the audit log only.
	var engine *memory.Engine
	var ingestor agent.Ingestor
	if cfg.LLM.Gemini.APIKey != "" {
		embedder, err := llm.NewGemini(cfg.LLM.Gemini, cfg.LLM.RequestTimeout)
		if err != nil {
			return nil, nil, fmt.Errorf("constructing embedder: %w", err)
		}
		engine, err = memory.NewEngine(st, embedder, cfg.Memory.ChunkSize, cfg.Memory.ChunkOverlap, cfg.Memory.TopK)
		if err != nil {
			return nil, nil, err
		}
		ingestor = engine
	} else {
		log.Printf("[SERVER] No Gemini key configured, retrieval memory disabled")
	}

	return agent.NewCoordinator(planner, orch, client, st, ingestor, metrics), engine, nil
}

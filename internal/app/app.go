// Package app wires the application: configuration, Genkit, the knowledge
// store, the ingestion pipeline, per-user memory, the orchestrator and the
// webhook server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/celim/oraculo/api"
	"github.com/celim/oraculo/db"
	"github.com/celim/oraculo/internal/config"
	"github.com/celim/oraculo/internal/document"
	"github.com/celim/oraculo/internal/ingest"
	"github.com/celim/oraculo/internal/ingest/notion"
	"github.com/celim/oraculo/internal/knowledge"
	"github.com/celim/oraculo/internal/memory"
	"github.com/celim/oraculo/internal/oracle"
	"github.com/celim/oraculo/internal/telegram"
)

// App is the assembled application.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	Pool     *pgxpool.Pool

	Store    *knowledge.Store
	Pipeline *ingest.Pipeline
	Memory   *memory.Store
	Oracle   *oracle.Orchestrator
	Telegram *telegram.Client

	server *api.Server
}

// New builds the full application. Construction is eager for everything
// cheap; the expensive part (ingestion) runs inside the orchestrator's
// single-flight initialization.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, err := newPool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)

	store := knowledge.NewStore(knowledge.NewPG(pool), embedder,
		logger.With("component", "knowledge"))
	indexer := knowledge.NewIndexer(store, logger.With("component", "indexer"))

	catalogHandle := knowledge.NewHandle("catalog", document.SourceTypeCatalog, store)
	pdfHandle := knowledge.NewHandle("pdf", document.SourceTypePDF, store)

	sources := []ingest.Source{
		{
			Ingestor: ingest.NewCatalogIngestor(ingest.NewPgxCatalogQuerier(pool),
				logger.With("component", "ingest.catalog")),
			Handle:   catalogHandle,
			Recreate: cfg.RecreateOnLoad,
		},
		{
			Ingestor: ingest.NewPDFIngestor(cfg.PDFDir,
				logger.With("component", "ingest.pdf")),
			Handle:   pdfHandle,
			Recreate: cfg.RecreateOnLoad,
		},
	}
	handles := []knowledge.Retriever{catalogHandle, pdfHandle}

	if cfg.NotionToken != "" && cfg.NotionDatabaseID != "" {
		notionClient, err := notion.New(cfg.NotionToken,
			logger.With("component", "notion"))
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("creating notion client: %w", err)
		}
		notionHandle := knowledge.NewHandle("notion", document.SourceTypeNotion, store)
		sources = append(sources, ingest.Source{
			Ingestor: ingest.NewNotionIngestor(notionClient, cfg.NotionDatabaseID,
				logger.With("component", "ingest.notion")),
			Handle:   notionHandle,
			Recreate: cfg.RecreateOnLoad,
		})
		handles = append(handles, notionHandle)
	} else {
		logger.Info("notion source disabled, token or database id not configured")
	}

	pipeline := ingest.NewPipeline(indexer, sources, logger.With("component", "pipeline"))
	combined := knowledge.NewCombined("oraculo", handles...)

	memStore, err := memory.New(cfg.MemoryPath, logger.With("component", "memory"))
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("opening memory store: %w", err)
	}

	tgClient, err := telegram.New(cfg.TelegramToken, logger.With("component", "telegram"))
	if err != nil {
		_ = memStore.Close()
		pool.Close()
		return nil, fmt.Errorf("creating telegram client: %w", err)
	}

	generator := oracle.NewGenkitGenerator(g, cfg.ModelName, float64(cfg.Temperature))

	orch := oracle.New(
		func(ctx context.Context) (*oracle.Resources, error) {
			// Source-level failures are isolated inside the pipeline;
			// initialization only fails when nothing could be wired.
			if _, err := pipeline.Run(ctx); err != nil {
				logger.Warn("some sources failed to ingest", "error", err)
			}
			return &oracle.Resources{
				Retriever: combined,
				Memory:    memStore,
				Generator: generator,
			}, nil
		},
		oracle.Options{
			TopK:            cfg.TopK,
			MaxHistoryTurns: cfg.MaxHistoryTurns,
		},
		logger.With("component", "oracle"),
	)

	webhook := api.NewWebhook(orch, tgClient, tgClient, logger.With("component", "webhook"))
	health := api.NewHealth([]api.NamedPinger{
		{Name: "postgres", Pinger: pool},
		{Name: "memory", Pinger: memStore},
	}, logger.With("component", "health"))

	server, err := api.NewServer(api.ServerConfig{
		Addr:    cfg.ListenAddr,
		Webhook: webhook,
		Health:  health,
		Logger:  logger.With("component", "server"),
	})
	if err != nil {
		_ = memStore.Close()
		pool.Close()
		return nil, fmt.Errorf("creating server: %w", err)
	}

	return &App{
		Config:   cfg,
		Logger:   logger,
		Genkit:   g,
		Embedder: embedder,
		Pool:     pool,
		Store:    store,
		Pipeline: pipeline,
		Memory:   memStore,
		Oracle:   orch,
		Telegram: tgClient,
		server:   server,
	}, nil
}

func newPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresDSN())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// Serve verifies Telegram connectivity, registers the webhook, runs the
// single-flight initialization and serves until ctx is canceled.
func (a *App) Serve(ctx context.Context) error {
	me, err := a.Telegram.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("telegram connectivity check: %w", err)
	}
	a.Logger.Info("telegram bot connected", "bot_id", me.ID, "username", me.Username)

	if a.Config.TelegramWebhookURL != "" {
		if err := a.Telegram.SetWebhook(ctx, a.Config.TelegramWebhookURL); err != nil {
			return fmt.Errorf("registering webhook: %w", err)
		}
	} else {
		a.Logger.Warn("telegram webhook URL not configured, skipping registration")
	}

	if err := a.Oracle.Initialize(ctx); err != nil {
		return fmt.Errorf("initializing orchestrator: %w", err)
	}

	return a.server.Run(ctx)
}

// Reindex runs one ingestion cycle. recreate overrides the configured
// reload mode for this run.
func (a *App) Reindex(ctx context.Context, recreate bool) ([]ingest.SourceResult, error) {
	if recreate {
		return a.Pipeline.RunRecreate(ctx)
	}
	return a.Pipeline.Run(ctx)
}

// Close releases the application's resources.
func (a *App) Close() error {
	var errs []error
	if err := a.Pipeline.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.Memory.Close(); err != nil {
		errs = append(errs, err)
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	return errors.Join(errs...)
}

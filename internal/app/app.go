// Package app wires the configured components into a runnable application:
// graph client, embedding provider, cache, entity service and the pipeline
// processor. Commands build an App instead of assembling the stack
// themselves.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/codegraphhq/codegraph/internal/cache"
	"github.com/codegraphhq/codegraph/internal/config"
	"github.com/codegraphhq/codegraph/internal/content"
	"github.com/codegraphhq/codegraph/internal/embed"
	"github.com/codegraphhq/codegraph/internal/entities"
	"github.com/codegraphhq/codegraph/internal/graph"
	"github.com/codegraphhq/codegraph/internal/model"
	"github.com/codegraphhq/codegraph/internal/pipeline"
	"github.com/codegraphhq/codegraph/internal/providers/embeddings"
	"github.com/codegraphhq/codegraph/internal/state"
)

// App holds the wired application components.
type App struct {
	Config    *config.Config
	Client    *graph.Neo4jClient
	States    *state.Machine
	Cache     *cache.EmbeddingCache
	Provider  embeddings.Provider
	Entities  *entities.Client
	Processor *pipeline.Processor

	logger *slog.Logger
}

// New connects to the graph, provisions the schema and vector indexes, and
// wires the processor with every configured phase. Callers must Close.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{Config: cfg, logger: logger}

	a.Client = graph.NewNeo4jClient(graph.WithConfig(graph.Config{
		URI:      cfg.Graph.URI,
		Username: cfg.Graph.Username,
		Password: cfg.Graph.ResolvePassword(),
		Database: cfg.Graph.Database,
		Timeout:  10 * time.Second,
		MaxPool:  50,
	}))
	if err := a.Client.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to graph at %s; %w", cfg.Graph.URI, err)
	}
	if err := graph.InitSchema(ctx, a.Client); err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("failed to initialize graph schema; %w", err)
	}
	a.States = state.NewMachine(a.Client)
	if err := a.States.EnsureProject(ctx, cfg.Project.ID); err != nil {
		a.close(ctx)
		return nil, err
	}

	registry := embeddings.NewRegistry(
		embeddings.WithModel(cfg.Embeddings.Model),
		embeddings.WithDimensions(cfg.Embeddings.Dimensions),
		embeddings.WithAPIKey(cfg.Embeddings.ResolveAPIKey()),
		embeddings.WithBaseURL(cfg.Embeddings.Endpoint),
	)
	provider, err := embeddings.FromRegistry(registry, cfg.Embeddings.Provider)
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	if !provider.Available() {
		// Local runtimes may come up after us; embedding calls will surface
		// the failure per batch if the provider stays down.
		logger.Warn("embedding provider not available",
			"provider", cfg.Embeddings.Provider, "registered", registry.Names())
	}
	a.Provider = provider

	if err := a.provisionVectorIndexes(ctx); err != nil {
		a.close(ctx)
		return nil, err
	}

	embedOpts := []embed.Option{embed.WithLogger(logger.With("component", "embed"))}
	if cfg.Cache.Enabled {
		a.Cache = cache.New(cache.Config{
			Addr:     cfg.Cache.Addr,
			Password: cachePassword(cfg),
			DB:       cfg.Cache.DB,
			TTL:      time.Duration(cfg.Cache.TTLDays) * 24 * time.Hour,
		})
		if err := a.Cache.Ping(ctx); err != nil {
			logger.Warn("embedding cache unreachable, continuing without it", "error", err)
			_ = a.Cache.Close()
			a.Cache = nil
		} else {
			embedOpts = append(embedOpts, embed.WithCache(a.Cache))
		}
	}
	embedSvc := embed.New(a.Client, provider, embedOpts...)

	pipeOpts := []pipeline.Option{
		pipeline.WithConfig(pipeline.Config{
			Concurrency: cfg.Pipeline.Concurrency,
			MaxRetries:  cfg.Pipeline.MaxRetries,
		}),
		pipeline.WithEmbedPhase(embedSvc),
		pipeline.WithLogger(logger.With("component", "pipeline")),
	}

	if cfg.Entities.Enabled {
		a.Entities = entities.NewClient(entities.ClientConfig{BaseURL: cfg.Entities.URL})
		coordinator := entities.NewCoordinator(a.Client, a.Entities,
			entities.WithConfig(entities.Config{
				ClassifyChars:       500,
				BatchSize:           1000,
				ConfidenceThreshold: cfg.Entities.ConfidenceThreshold,
				DisabledDomains:     cfg.Entities.DisabledDomains,
			}),
			entities.WithLogger(logger.With("component", "entities")),
		)
		pipeOpts = append(pipeOpts,
			pipeline.WithEntityPhase(coordinator),
			pipeline.WithSkipTypeSource(a.Entities),
		)
	}

	contents := content.NewHybridProvider(a.Client, cfg.Pipeline.Concurrency)
	a.Processor = pipeline.New(a.Client, contents, pipeOpts...)
	return a, nil
}

// provisionVectorIndexes ensures one cosine index per (label, view vector
// property), plus the chunk label.
func (a *App) provisionVectorIndexes(ctx context.Context) error {
	dims := a.Provider.Dimensions()
	for label, views := range embed.DefaultViewTable() {
		for _, view := range views {
			if err := a.Client.EnsureVectorIndex(ctx, label, view.VectorProp, dims); err != nil {
				return err
			}
		}
	}
	return a.Client.EnsureVectorIndex(ctx, model.LabelEmbeddingChunk, "embedding_content", dims)
}

// Close releases all connections.
func (a *App) Close(ctx context.Context) {
	a.close(ctx)
}

func (a *App) close(ctx context.Context) {
	if a.Cache != nil {
		_ = a.Cache.Close()
	}
	if a.Client != nil {
		if err := a.Client.Stop(ctx); err != nil {
			a.logger.Warn("failed to close graph connection", "error", err)
		}
	}
}

func cachePassword(cfg *config.Config) string {
	if cfg.Cache.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(cfg.Cache.PasswordEnv)
}

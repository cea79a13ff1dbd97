// Package pipeline orchestrates the ingestion phases: parse, relationship
// resolution, entity extraction and embedding. It owns every file state
// transition and the crash recovery path; the graph is the single source of
// truth for progress.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/codegraphhq/codegraph/internal/content"
	"github.com/codegraphhq/codegraph/internal/embed"
	"github.com/codegraphhq/codegraph/internal/entities"
	"github.com/codegraphhq/codegraph/internal/graph"
	"github.com/codegraphhq/codegraph/internal/parser"
	"github.com/codegraphhq/codegraph/internal/preserve"
	"github.com/codegraphhq/codegraph/internal/resolve"
	"github.com/codegraphhq/codegraph/internal/state"
)

// EntityPhase runs entity extraction for a project. *entities.Coordinator
// satisfies it.
type EntityPhase interface {
	Run(ctx context.Context, projectID string) (entities.Stats, error)
}

// EmbedPhase runs the embedding engine for a project. *embed.Service
// satisfies it.
type EmbedPhase interface {
	Run(ctx context.Context, projectID string) (embed.Stats, error)
}

// SkipTypeSource exposes the service-declared skip-embedding entity types.
// *entities.Client satisfies it.
type SkipTypeSource interface {
	SkipEmbeddingTypes(ctx context.Context) ([]string, error)
}

// Config holds the processor settings.
type Config struct {
	// Concurrency bounds the per-file worker pool.
	Concurrency int
	// MaxRetries caps automatic retries of errored files during recovery.
	MaxRetries int
}

// DefaultConfig returns the standard processor settings.
func DefaultConfig() Config {
	return Config{Concurrency: 10, MaxRetries: 3}
}

// Stats reports one pipeline pass.
type Stats struct {
	FilesProcessed      int   `json:"filesProcessed"`
	FilesSkipped        int   `json:"filesSkipped"`
	FilesErrored        int   `json:"filesErrored"`
	EntitiesCreated     int   `json:"entitiesCreated"`
	RelationsCreated    int   `json:"relationsCreated"`
	EmbeddingsGenerated int   `json:"embeddingsGenerated"`
	DurationMs          int64 `json:"durationMs"`
}

// Processor is the top-level orchestrator.
type Processor struct {
	client     graph.Client
	states     *state.Machine
	contents   content.Provider
	dispatcher *parser.Dispatcher
	resolver   *resolve.Resolver
	preserver  *preserve.Preserver

	entityPhase EntityPhase
	embedPhase  EmbedPhase
	skipTypes   SkipTypeSource

	cfg      Config
	logger   *slog.Logger
	activity func(phase string)
}

// Option configures the Processor.
type Option func(*Processor)

// WithConfig replaces the default settings.
func WithConfig(cfg Config) Option {
	return func(p *Processor) { p.cfg = cfg }
}

// WithEntityPhase wires the entity extraction coordinator. Without it the
// entity phase is skipped.
func WithEntityPhase(phase EntityPhase) Option {
	return func(p *Processor) { p.entityPhase = phase }
}

// WithEmbedPhase wires the embedding engine. Without it the embedding phase
// is skipped.
func WithEmbedPhase(phase EmbedPhase) Option {
	return func(p *Processor) { p.embedPhase = phase }
}

// WithSkipTypeSource wires the source of skip-embedding entity types.
func WithSkipTypeSource(src SkipTypeSource) Option {
	return func(p *Processor) { p.skipTypes = src }
}

// WithActivity sets the callback signalled at phase boundaries.
func WithActivity(fn func(phase string)) Option {
	return func(p *Processor) { p.activity = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) { p.logger = logger }
}

// New creates a processor over the shared graph client.
func New(client graph.Client, contents content.Provider, opts ...Option) *Processor {
	p := &Processor{
		client:     client,
		states:     state.NewMachine(client),
		contents:   contents,
		dispatcher: parser.NewDispatcher(),
		resolver:   resolve.New(client),
		preserver:  preserve.New(client),
		cfg:        DefaultConfig(),
		logger:     slog.Default().With("component", "pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.cfg.Concurrency <= 0 {
		p.cfg.Concurrency = 10
	}
	return p
}

func (p *Processor) signal(phase string) {
	if p.activity != nil {
		p.activity(phase)
	}
}

// Process runs the full pass: discovered files to linked, then linked to
// embedded.
func (p *Processor) Process(ctx context.Context, projectID string) (Stats, error) {
	started := time.Now()

	stats, err := p.ProcessDiscovered(ctx, projectID)
	if err != nil {
		return stats, err
	}

	linkedStats, err := p.ProcessLinked(ctx, projectID)
	stats.EntitiesCreated += linkedStats.EntitiesCreated
	stats.RelationsCreated += linkedStats.RelationsCreated
	stats.EmbeddingsGenerated += linkedStats.EmbeddingsGenerated
	stats.FilesErrored += linkedStats.FilesErrored
	stats.DurationMs = time.Since(started).Milliseconds()
	return stats, err
}

package pipeline

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/codegraphhq/codegraph/internal/ingest"
	"github.com/codegraphhq/codegraph/internal/model"
	"github.com/codegraphhq/codegraph/internal/parser"
	"github.com/codegraphhq/codegraph/internal/resolve"
	"github.com/codegraphhq/codegraph/internal/state"
)

// ProcessDiscovered promotes every discovered file of the project to
// linked: snapshot, read, parse, persist, restore, resolve.
func (p *Processor) ProcessDiscovered(ctx context.Context, projectID string) (Stats, error) {
	files, err := p.states.FilesInState(ctx, projectID, model.StateDiscovered)
	if err != nil {
		return Stats{}, err
	}
	if len(files) == 0 {
		return Stats{}, nil
	}
	return p.processDiscoveredFiles(ctx, projectID, files)
}

// parseOutcome carries a file's symbolic references from the parse phase to
// the resolve phase.
type parseOutcome struct {
	file *model.File
	refs []parser.Reference
}

func (p *Processor) processDiscoveredFiles(ctx context.Context, projectID string, files []*model.File) (Stats, error) {
	var stats Stats

	uuids := make([]string, len(files))
	for i, f := range files {
		uuids[i] = f.UUID
	}
	if err := p.states.TransitionBatch(ctx, uuids, model.StateParsing, nil); err != nil {
		return stats, err
	}

	batch, err := p.contents.ReadBatch(ctx, files)
	if err != nil {
		return stats, fmt.Errorf("content read failed; %w", err)
	}

	var mu sync.Mutex
	var outcomes []parseOutcome

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for _, file := range files {
		file := file
		g.Go(func() error {
			data, ok := batch.Content[file.UUID]
			if !ok {
				readErr := batch.Errors[file.UUID]
				p.failFile(gctx, file, model.ErrorTypeParse, fmt.Errorf("content unavailable; %w", readErr))
				mu.Lock()
				stats.FilesErrored++
				mu.Unlock()
				return nil
			}

			refs, skipped, err := p.parseFile(gctx, projectID, file, data)
			if err != nil {
				p.failFile(gctx, file, model.ErrorTypeParse, err)
				mu.Lock()
				stats.FilesErrored++
				mu.Unlock()
				return nil
			}

			mu.Lock()
			if skipped {
				stats.FilesSkipped++
			} else {
				stats.FilesProcessed++
			}
			outcomes = append(outcomes, parseOutcome{file: file, refs: refs})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}
	p.signal("parse")

	parsedUUIDs := make([]string, len(outcomes))
	for i, o := range outcomes {
		parsedUUIDs[i] = o.file.UUID
	}
	if len(parsedUUIDs) == 0 {
		return stats, nil
	}
	if err := p.states.TransitionBatch(ctx, parsedUUIDs, model.StateParsed, nil); err != nil {
		return stats, err
	}
	if err := p.states.TransitionBatch(ctx, parsedUUIDs, model.StateRelations, nil); err != nil {
		return stats, err
	}

	// The name map is loaded once per pass: it must already contain the
	// scopes every just-parsed file exported.
	nm, err := resolve.LoadNameMap(ctx, p.client, projectID)
	if err != nil {
		return stats, err
	}

	var linked []string
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for _, o := range outcomes {
		o := o
		g.Go(func() error {
			if err := p.resolver.CleanupFile(gctx, o.file.UUID); err != nil {
				p.failFile(gctx, o.file, model.ErrorTypeRelations, err)
				mu.Lock()
				stats.FilesErrored++
				mu.Unlock()
				return nil
			}
			if _, err := p.resolver.ResolveFile(gctx, projectID, o.file, o.refs, nm); err != nil {
				p.failFile(gctx, o.file, model.ErrorTypeRelations, err)
				mu.Lock()
				stats.FilesErrored++
				mu.Unlock()
				return nil
			}
			mu.Lock()
			linked = append(linked, o.file.UUID)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}

	if len(linked) > 0 {
		if err := p.states.TransitionBatch(ctx, linked, model.StateLinked, nil); err != nil {
			return stats, err
		}
	}

	// Imports that could not be resolved in earlier passes may resolve now
	// that more files are in the graph.
	if _, err := p.resolver.Sweep(ctx, projectID, nm); err != nil {
		return stats, err
	}
	p.signal("resolve")

	p.logger.Info("discovered files processed",
		"processed", stats.FilesProcessed, "skipped", stats.FilesSkipped,
		"errored", stats.FilesErrored)
	return stats, nil
}

// parseFile runs the per-file parse path: snapshot, parse, persist parsed
// graph, prune stale children, restore preserved metadata.
func (p *Processor) parseFile(ctx context.Context, projectID string, file *model.File, data []byte) ([]parser.Reference, bool, error) {
	peek := data
	if len(peek) > 512 {
		peek = peek[:512]
	}
	kind, _, _ := ingest.Probe(file.Path, peek)
	if mode, _ := ingest.Decide(kind, int64(len(data))); mode == ingest.ModeSkip {
		return nil, true, nil
	}

	snap, err := p.preserver.Snapshot(ctx, file.UUID)
	if err != nil {
		return nil, false, err
	}

	parsed, err := p.dispatcher.Parse(ctx, projectID, file, data)
	if err != nil {
		return nil, false, err
	}

	if err := p.persistGraph(ctx, projectID, file, parsed); err != nil {
		return nil, false, err
	}

	if _, err := p.preserver.Restore(ctx, snap); err != nil {
		return nil, false, err
	}
	return parsed.References, false, nil
}

// failFile moves one file to error with typed attribution. The transition
// itself failing is only logged: the file stays stuck and recovery resets it.
func (p *Processor) failFile(ctx context.Context, file *model.File, kind model.ErrorType, cause error) {
	p.logger.Warn("file failed", "path", file.Path, "errorType", string(kind), "error", cause)
	err := p.states.Transition(ctx, file.UUID, model.StateError, &state.TransitionOptions{
		ErrorType:    kind,
		ErrorMessage: cause.Error(),
	})
	if err != nil {
		p.logger.Error("error transition failed", "path", file.Path, "error", err)
	}
}

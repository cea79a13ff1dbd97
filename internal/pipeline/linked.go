package pipeline

import (
	"context"
	"fmt"

	"github.com/codegraphhq/codegraph/internal/model"
	"github.com/codegraphhq/codegraph/internal/state"
)

// ProcessLinked promotes every linked file of the project to embedded. The
// entity phase runs first and releases the accelerator before the embedding
// phase starts.
func (p *Processor) ProcessLinked(ctx context.Context, projectID string) (Stats, error) {
	var stats Stats

	files, err := p.states.FilesInState(ctx, projectID, model.StateLinked)
	if err != nil {
		return stats, err
	}
	if len(files) == 0 {
		return stats, nil
	}
	uuids := make([]string, len(files))
	for i, f := range files {
		uuids[i] = f.UUID
	}

	if err := p.states.TransitionBatch(ctx, uuids, model.StateEntities, nil); err != nil {
		return stats, err
	}

	if p.entityPhase != nil {
		eStats, err := p.entityPhase.Run(ctx, projectID)
		if err != nil {
			p.failFiles(ctx, uuids, model.ErrorTypeEntities, err)
			stats.FilesErrored += len(uuids)
			return stats, err
		}
		if eStats.Degraded {
			p.logger.Warn("entity phase degraded, continuing to embedding")
		}
		stats.EntitiesCreated = eStats.EntitiesCreated
		stats.RelationsCreated = eStats.RelationsCreated
	}
	p.signal("entities")

	if err := p.states.TransitionBatch(ctx, uuids, model.StateEmbedding, nil); err != nil {
		return stats, err
	}

	if err := p.advanceSkipEntities(ctx, projectID); err != nil {
		return stats, err
	}

	if p.embedPhase != nil {
		mStats, err := p.embedPhase.Run(ctx, projectID)
		if err != nil {
			p.failFiles(ctx, uuids, model.ErrorTypeEmbed, err)
			stats.FilesErrored += len(uuids)
			return stats, err
		}
		stats.EmbeddingsGenerated = mStats.VectorsGenerated
	}
	p.signal("embed")

	if err := p.states.TransitionBatch(ctx, uuids, model.StateEmbedded, nil); err != nil {
		return stats, err
	}
	stats.FilesProcessed = len(files)
	return stats, nil
}

// ProcessLinkedNodes handles nodes still in state linked under files that
// already reached embedded, without any file transition. Skip-embedding
// Entity types are pre-advanced so the phase cannot keep finding work it
// will never do.
func (p *Processor) ProcessLinkedNodes(ctx context.Context, projectID string) (int, error) {
	if err := p.advanceSkipEntities(ctx, projectID); err != nil {
		return 0, err
	}
	if p.embedPhase == nil {
		return 0, nil
	}
	mStats, err := p.embedPhase.Run(ctx, projectID)
	if err != nil {
		return 0, err
	}
	return mStats.VectorsGenerated, nil
}

func (p *Processor) advanceSkipEntities(ctx context.Context, projectID string) error {
	if p.skipTypes == nil {
		return nil
	}
	types, err := p.skipTypes.SkipEmbeddingTypes(ctx)
	if err != nil {
		// The skip set is an optimization; without it the embedding phase
		// still terminates because the view table embeds entities by name.
		p.logger.Warn("skip-embedding types unavailable", "error", err)
		return nil
	}
	moved, err := state.AdvanceSkipEmbeddingEntities(ctx, p.client, projectID, types)
	if err != nil {
		return err
	}
	if moved > 0 {
		p.logger.Debug("advanced skip-embedding entities", "count", moved)
	}
	return nil
}

// ProcessFile reprocesses a single file through the full pipeline.
func (p *Processor) ProcessFile(ctx context.Context, projectID, fileUUID string) (Stats, error) {
	file, err := p.loadFile(ctx, fileUUID)
	if err != nil {
		return Stats{}, err
	}

	if file.State != model.StateDiscovered {
		if err := p.states.Transition(ctx, fileUUID, model.StateDiscovered, nil); err != nil {
			return Stats{}, fmt.Errorf("cannot requeue %s from %s; %w", file.Path, file.State, err)
		}
		file.State = model.StateDiscovered
	}

	stats, err := p.processDiscoveredFiles(ctx, projectID, []*model.File{file})
	if err != nil {
		return stats, err
	}

	linkedStats, err := p.ProcessLinked(ctx, projectID)
	stats.EntitiesCreated += linkedStats.EntitiesCreated
	stats.RelationsCreated += linkedStats.RelationsCreated
	stats.EmbeddingsGenerated += linkedStats.EmbeddingsGenerated
	stats.FilesErrored += linkedStats.FilesErrored
	return stats, err
}

func (p *Processor) loadFile(ctx context.Context, fileUUID string) (*model.File, error) {
	rows, err := p.client.Run(ctx, `
MATCH (f:File {uuid: $uuid})
RETURN properties(f) AS props`, map[string]any{"uuid": fileUUID})
	if err != nil {
		return nil, fmt.Errorf("failed to load file; %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("file %s not found", fileUUID)
	}
	props, ok := rows[0]["props"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("file %s has malformed properties", fileUUID)
	}
	return model.FileFromProps(props), nil
}

func (p *Processor) failFiles(ctx context.Context, uuids []string, kind model.ErrorType, cause error) {
	err := p.states.TransitionBatch(ctx, uuids, model.StateError, &state.TransitionOptions{
		ErrorType:    kind,
		ErrorMessage: cause.Error(),
	})
	if err != nil {
		p.logger.Error("error transition failed", "errorType", string(kind), "error", err)
	}
}

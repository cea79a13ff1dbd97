package state

import (
	"context"
	"fmt"

	"github.com/codegraphhq/codegraph/internal/graph"
	"github.com/codegraphhq/codegraph/internal/model"
)

const filesInStateQuery = `
MATCH (f:File {projectId: $projectId, _state: $state})
RETURN properties(f) AS props
ORDER BY f.path`

// FilesInState returns every file of the project in the given state.
func (m *Machine) FilesInState(ctx context.Context, projectID string, s model.State) ([]*model.File, error) {
	rows, err := m.client.Run(ctx, filesInStateQuery, map[string]any{
		"projectId": projectID,
		"state":     string(s),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query files in state %s; %w", s, err)
	}
	return filesFromRows(rows)
}

// RetryableFiles returns errored files whose retry count is below the limit.
func (m *Machine) RetryableFiles(ctx context.Context, projectID string, maxRetries int) ([]*model.File, error) {
	rows, err := m.client.Run(ctx, `
MATCH (f:File {projectId: $projectId, _state: 'error'})
WHERE coalesce(f.retryCount, 0) < $maxRetries
RETURN properties(f) AS props
ORDER BY f.path`, map[string]any{
		"projectId":  projectID,
		"maxRetries": maxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query retryable files; %w", err)
	}
	return filesFromRows(rows)
}

// StateStats returns the file count per state for a project.
func (m *Machine) StateStats(ctx context.Context, projectID string) (map[model.State]int, error) {
	rows, err := m.client.Run(ctx, `
MATCH (f:File {projectId: $projectId})
RETURN f._state AS state, count(f) AS n`, map[string]any{"projectId": projectID})
	if err != nil {
		return nil, fmt.Errorf("failed to query state stats; %w", err)
	}

	stats := make(map[model.State]int)
	for _, row := range rows {
		stats[model.State(model.Str(row["state"]))] = model.Int(row["n"])
	}
	return stats, nil
}

// Progress summarises how far a project's ingestion has advanced.
type Progress struct {
	Processed  int
	Total      int
	Percentage float64
}

// GetProgress computes processing progress; embedded and error both count as
// processed (terminal).
func (m *Machine) GetProgress(ctx context.Context, projectID string) (Progress, error) {
	stats, err := m.StateStats(ctx, projectID)
	if err != nil {
		return Progress{}, err
	}

	var p Progress
	for s, n := range stats {
		p.Total += n
		if s == model.StateEmbedded || s == model.StateError {
			p.Processed += n
		}
	}
	if p.Total > 0 {
		p.Percentage = float64(p.Processed) / float64(p.Total) * 100
	}
	return p, nil
}

// IsFullyProcessed reports whether every file in the project is terminal.
func (m *Machine) IsFullyProcessed(ctx context.Context, projectID string) (bool, error) {
	p, err := m.GetProgress(ctx, projectID)
	if err != nil {
		return false, err
	}
	return p.Total > 0 && p.Processed == p.Total, nil
}

func filesFromRows(rows []graph.Record) ([]*model.File, error) {
	files := make([]*model.File, 0, len(rows))
	for _, row := range rows {
		props, ok := row["props"].(map[string]any)
		if !ok {
			continue
		}
		files = append(files, model.FileFromProps(props))
	}
	return files, nil
}

package state

import (
	"context"
	"fmt"

	"github.com/codegraphhq/codegraph/internal/graph"
	"github.com/codegraphhq/codegraph/internal/model"
)

// Node-level state shares the file vocabulary but is orthogonal to it: a
// file can be embedded while some of its nodes remain linked. Node state is
// driven by the entity and embedding phases, never by file transitions.

// AdvanceNodes moves every node of the label currently in the from state to
// the to state, scoped to a project. Returns the number of nodes moved.
func AdvanceNodes(ctx context.Context, client graph.Client, projectID, label string, from, to model.State) (int, error) {
	query := fmt.Sprintf(`
MATCH (n:%s {projectId: $projectId, _state: $from})
SET n._state = $to, n._stateChangedAt = timestamp()
RETURN count(n) AS n`, label)

	// The driver folds RETURN from write statements into the summary only;
	// count the candidates first, then move them.
	rows, err := client.Run(ctx, fmt.Sprintf(`
MATCH (n:%s {projectId: $projectId, _state: $from})
RETURN count(n) AS n`, label), map[string]any{
		"projectId": projectID,
		"from":      string(from),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count %s nodes; %w", label, err)
	}
	count := 0
	if len(rows) > 0 {
		count = model.Int(rows[0]["n"])
	}
	if count == 0 {
		return 0, nil
	}

	if _, err := client.Write(ctx, query, map[string]any{
		"projectId": projectID,
		"from":      string(from),
		"to":        string(to),
	}); err != nil {
		return 0, fmt.Errorf("failed to advance %s nodes %s -> %s; %w", label, from, to, err)
	}
	return count, nil
}

// AdvanceSkipEmbeddingEntities moves Entity nodes whose entityType is in the
// skip set straight from linked to ready, without generating vectors. Must
// run before the embedding phase inspects linked nodes, otherwise the phase
// keeps finding work it will never do.
func AdvanceSkipEmbeddingEntities(ctx context.Context, client graph.Client, projectID string, skipTypes []string) (int, error) {
	if len(skipTypes) == 0 {
		return 0, nil
	}

	rows, err := client.Run(ctx, `
MATCH (e:Entity {projectId: $projectId, _state: 'linked'})
WHERE toLower(e.entityType) IN $skipTypes
RETURN count(e) AS n`, map[string]any{
		"projectId": projectID,
		"skipTypes": lower(skipTypes),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count skip-embedding entities; %w", err)
	}
	count := 0
	if len(rows) > 0 {
		count = model.Int(rows[0]["n"])
	}
	if count == 0 {
		return 0, nil
	}

	if _, err := client.Write(ctx, `
MATCH (e:Entity {projectId: $projectId, _state: 'linked'})
WHERE toLower(e.entityType) IN $skipTypes
SET e._state = 'ready', e._stateChangedAt = timestamp()`, map[string]any{
		"projectId": projectID,
		"skipTypes": lower(skipTypes),
	}); err != nil {
		return 0, fmt.Errorf("failed to advance skip-embedding entities; %w", err)
	}
	return count, nil
}

func lower(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = toLowerASCII(s)
	}
	return out
}

func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 32
		}
	}
	return string(b)
}

package graph

import (
	"context"
	"strings"
	"sync"
)

// Fake is a scripted in-memory Client for tests. Reads return queued result
// sets in FIFO order (or the result registered for a query substring); writes
// are recorded for assertion.
type Fake struct {
	mu sync.Mutex

	// Reads holds canned result sets returned by Run in order.
	Reads [][]Record

	// ReadsByMatch maps a query substring to a canned result set. Checked
	// before the FIFO queue.
	ReadsByMatch map[string][]Record

	// Writes records every statement passed to Write/WriteBatch.
	Writes []Statement

	// WriteSummaries holds summaries returned by successive write calls.
	// When exhausted, an empty Summary is returned.
	WriteSummaries []Summary

	// Err, when set, is returned by every call.
	Err error

	// VectorIndexes records EnsureVectorIndex calls as "label/property".
	VectorIndexes []string
}

// NewFake returns an empty scripted client.
func NewFake() *Fake {
	return &Fake{ReadsByMatch: map[string][]Record{}}
}

func (f *Fake) Start(ctx context.Context) error { return f.Err }
func (f *Fake) Stop(ctx context.Context) error  { return f.Err }

// Run pops the next canned result set.
func (f *Fake) Run(ctx context.Context, query string, params map[string]any) ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	for substr, rows := range f.ReadsByMatch {
		if substr != "" && contains(query, substr) {
			return rows, nil
		}
	}
	if len(f.Reads) == 0 {
		return nil, nil
	}
	rows := f.Reads[0]
	f.Reads = f.Reads[1:]
	return rows, nil
}

// Write records the statement.
func (f *Fake) Write(ctx context.Context, query string, params map[string]any) (Summary, error) {
	return f.WriteBatch(ctx, []Statement{{Query: query, Params: params}})
}

// WriteBatch records every statement.
func (f *Fake) WriteBatch(ctx context.Context, stmts []Statement) (Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return Summary{}, f.Err
	}
	f.Writes = append(f.Writes, stmts...)
	if len(f.WriteSummaries) > 0 {
		sum := f.WriteSummaries[0]
		f.WriteSummaries = f.WriteSummaries[1:]
		return sum, nil
	}
	return Summary{}, nil
}

// EnsureVectorIndex records the request.
func (f *Fake) EnsureVectorIndex(ctx context.Context, label, property string, dimension int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.VectorIndexes = append(f.VectorIndexes, label+"/"+property)
	return nil
}

// WrittenQueries returns the recorded queries in order.
func (f *Fake) WrittenQueries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Writes))
	for i, stmt := range f.Writes {
		out[i] = stmt.Query
	}
	return out
}

func contains(s, substr string) bool {
	return substr != "" && strings.Contains(s, substr)
}

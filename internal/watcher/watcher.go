package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/codegraphhq/codegraph/internal/graph"
	"github.com/codegraphhq/codegraph/internal/model"
	"github.com/codegraphhq/codegraph/internal/source"
	"github.com/codegraphhq/codegraph/internal/state"
)

// Watcher keeps the graph's discovered set in sync with a project tree.
type Watcher struct {
	client    graph.Client
	states    *state.Machine
	projectID string
	root      string
	matcher   *source.Matcher
	coalescer *Coalescer
	fsw       *fsnotify.Watcher
	logger    *slog.Logger

	debounce    time.Duration
	deleteGrace time.Duration
	flushDelay  time.Duration
	onFlush     func(ctx context.Context)

	mu       sync.Mutex
	pauses   int
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// Option configures the Watcher.
type Option func(*Watcher)

// WithDebounce sets the debounce window for create/modify events.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithDeleteGrace sets the grace period before a delete is acted on.
func WithDeleteGrace(d time.Duration) Option {
	return func(w *Watcher) { w.deleteGrace = d }
}

// WithMatcher sets the include/exclude matcher.
func WithMatcher(m *source.Matcher) Option {
	return func(w *Watcher) { w.matcher = m }
}

// WithOnFlush sets the callback invoked after a batch of files was marked
// discovered, typically to kick the processor.
func WithOnFlush(fn func(ctx context.Context)) Option {
	return func(w *Watcher) { w.onFlush = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) { w.logger = logger }
}

// New creates a watcher over one project root.
func New(client graph.Client, projectID, root string, opts ...Option) (*Watcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root; %w", err)
	}

	w := &Watcher{
		client:      client,
		states:      state.NewMachine(client),
		projectID:   projectID,
		root:        absRoot,
		matcher:     source.NewMatcher(nil, nil),
		logger:      slog.Default().With("component", "watcher"),
		debounce:    500 * time.Millisecond,
		deleteGrace: 2 * time.Second,
		flushDelay:  200 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.coalescer = NewCoalescer(w.debounce, w.deleteGrace)

	w.fsw, err = fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher; %w", err)
	}
	return w, nil
}

// Start adds recursive watches and begins processing events.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	err := filepath.WalkDir(w.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(w.root, p)
		if err != nil {
			return nil
		}
		if rel != "." && !w.matcher.MatchDir(rel) {
			return fs.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			w.logger.Warn("failed to watch directory", "path", p, "error", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk %s; %w", w.root, err)
	}

	go w.run(ctx)
	return nil
}

// Stop shuts the watcher down and waits for the event loop to drain.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		w.coalescer.Stop()
		close(w.stopCh)
		<-w.doneCh
		err = w.fsw.Close()
	})
	return err
}

// Pause drops incoming filesystem events until a matching Resume. Pauses
// nest.
func (w *Watcher) Pause() {
	w.mu.Lock()
	w.pauses++
	w.mu.Unlock()
}

// Resume undoes one Pause.
func (w *Watcher) Resume() {
	w.mu.Lock()
	if w.pauses > 0 {
		w.pauses--
	}
	w.mu.Unlock()
}

// WithPause runs fn with event processing suspended. Used around bulk
// operations that would otherwise storm the watcher with its own writes.
func (w *Watcher) WithPause(fn func() error) error {
	w.Pause()
	defer w.Resume()
	return fn()
}

func (w *Watcher) isPaused() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pauses > 0
}

// run is the event loop: raw events feed the coalescer; coalesced changes
// are buffered briefly and flushed as one batch.
func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	var pending []Change
	flushTimer := time.NewTimer(w.flushDelay)
	flushTimer.Stop()

	flush := func() {
		if len(pending) == 0 {
			return
		}
		batch := pending
		pending = nil
		w.flush(ctx, batch)
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-w.stopCh:
			flush()
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				flush()
				return
			}
			w.handleRawEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				flush()
				return
			}
			w.logger.Error("fsnotify error", "error", err)
		case change, ok := <-w.coalescer.Changes():
			if !ok {
				flush()
				return
			}
			pending = append(pending, change)
			flushTimer.Reset(w.flushDelay)
		case <-flushTimer.C:
			flush()
		}
	}
}

// handleRawEvent filters one fsnotify event and feeds it to the coalescer.
func (w *Watcher) handleRawEvent(event fsnotify.Event) {
	if w.isPaused() {
		return
	}
	if isEditorNoise(event.Name) {
		return
	}

	// New directories get watched recursively; directory events go no
	// further.
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			rel, err := filepath.Rel(w.root, event.Name)
			if err == nil && w.matcher.MatchDir(rel) {
				if err := w.fsw.Add(event.Name); err != nil {
					w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
				}
			}
			return
		}
	}

	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil || !w.matcher.Match(rel) {
		return
	}

	var op Op
	switch {
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		op = OpDelete
	case event.Has(fsnotify.Create):
		op = OpCreate
	case event.Has(fsnotify.Write):
		op = OpModify
	default:
		return // chmod-only
	}

	w.coalescer.Add(Change{Path: event.Name, Op: op, At: time.Now()})
}

// flush applies one batch: deletions cascade through the graph, everything
// else is marked discovered.
func (w *Watcher) flush(ctx context.Context, batch []Change) {
	var discovered []state.DiscoveredFile
	deleted := 0

	for _, change := range batch {
		rel, err := filepath.Rel(w.root, change.Path)
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)

		if change.Op == OpDelete {
			if err := w.cascadeDelete(ctx, rel); err != nil {
				w.logger.Error("cascade delete failed", "path", rel, "error", err)
				continue
			}
			deleted++
			continue
		}

		data, err := os.ReadFile(change.Path)
		if err != nil {
			// Gone between the event and the flush; the delete event will
			// follow.
			continue
		}
		discovered = append(discovered, state.DiscoveredFile{
			Path:           rel,
			AbsolutePath:   change.Path,
			RawContentHash: model.Hash16(data),
		})
	}

	if len(discovered) > 0 {
		result, err := w.states.MarkDiscoveredBatch(ctx, w.projectID, discovered)
		if err != nil {
			w.logger.Error("failed to mark discovered", "error", err)
		} else {
			w.logger.Info("files discovered",
				"created", result.Created, "reset", result.Reset, "skipped", result.Skipped)
			if (result.Created > 0 || result.Reset > 0) && w.onFlush != nil {
				w.onFlush(ctx)
			}
		}
	}
	if deleted > 0 {
		w.logger.Info("files deleted", "count", deleted)
	}
}

// cascadeDelete removes a File node with all its scopes, their chunks and
// every other DEFINED_IN child.
func (w *Watcher) cascadeDelete(ctx context.Context, relPath string) error {
	uuid := model.FileUUID(w.projectID, relPath)
	_, err := w.client.Write(ctx, `
MATCH (f:File {uuid: $uuid})
OPTIONAL MATCH (n)-[:DEFINED_IN]->(f)
OPTIONAL MATCH (n)-[:HAS_EMBEDDING_CHUNK]->(c:EmbeddingChunk)
DETACH DELETE c, n, f`, map[string]any{"uuid": uuid})
	if err != nil {
		return fmt.Errorf("failed to delete file subtree; %w", err)
	}
	return nil
}

// isEditorNoise filters transient editor artifacts that appear and vanish
// during saves.
func isEditorNoise(path string) bool {
	name := filepath.Base(path)
	switch {
	case strings.HasSuffix(name, ".swp"), strings.HasSuffix(name, ".swo"), strings.HasSuffix(name, ".swn"):
		return true // vim swap
	case name == "4913":
		return true // vim save probe
	case strings.HasPrefix(name, "#") && strings.HasSuffix(name, "#"):
		return true // emacs auto-save
	case strings.HasSuffix(name, "~"):
		return true // backup-on-save
	}
	return false
}

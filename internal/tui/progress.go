package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// pollInterval is how often the graph is queried for fresh state counts.
const pollInterval = 500 * time.Millisecond

// Snapshot is one observation of ingestion progress.
type Snapshot struct {
	States     map[string]int
	Processed  int
	Total      int
	Percentage float64
}

// SnapshotFunc fetches the current progress from the graph.
type SnapshotFunc func(ctx context.Context) (Snapshot, error)

// DoneMsg ends the progress view. Send it when the ingestion pass returns.
type DoneMsg struct {
	Err error
}

type snapshotMsg struct {
	snap Snapshot
}

type pollTickMsg struct{}

// ProgressModel is the bubbletea model for the ingestion progress view.
type ProgressModel struct {
	fetch   SnapshotFunc
	ctx     context.Context
	spinner spinner.Model
	bar     progress.Model

	snap Snapshot
	done bool
	err  error
}

// NewProgress creates the progress view over a snapshot source.
func NewProgress(ctx context.Context, fetch SnapshotFunc) ProgressModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	return ProgressModel{
		fetch:   fetch,
		ctx:     ctx,
		spinner: sp,
		bar:     progress.New(progress.WithDefaultGradient()),
	}
}

func (m ProgressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.poll())
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}
	case snapshotMsg:
		m.snap = msg.snap
		return m, tea.Tick(pollInterval, func(time.Time) tea.Msg { return pollTickMsg{} })
	case pollTickMsg:
		return m, m.poll()
	case DoneMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m ProgressModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Ingesting"))
	b.WriteString("\n")

	if m.snap.Total > 0 {
		b.WriteString(m.bar.ViewAs(m.snap.Percentage / 100))
		b.WriteString(fmt.Sprintf("  %d/%d files\n\n", m.snap.Processed, m.snap.Total))
	}

	for _, name := range sortedStates(m.snap.States) {
		b.WriteString(fmt.Sprintf("  %s %s\n",
			labelStyle.Render(fmt.Sprintf("%-12s", name)),
			countStyle.Render(fmt.Sprintf("%d", m.snap.States[name]))))
	}

	switch {
	case m.done && m.err != nil:
		b.WriteString("\n" + errorStyle.Render(fmt.Sprintf("Failed: %v", m.err)) + "\n")
	case m.done:
		b.WriteString("\n" + successStyle.Render("Done") + "\n")
	default:
		b.WriteString("\n" + m.spinner.View() + labelStyle.Render(" working (q to detach)") + "\n")
	}

	return containerStyle.Render(b.String())
}

// Err returns the error delivered with DoneMsg, if any.
func (m ProgressModel) Err() error {
	return m.err
}

func (m ProgressModel) poll() tea.Cmd {
	return func() tea.Msg {
		snap, err := m.fetch(m.ctx)
		if err != nil {
			// Transient read failures keep the last snapshot on screen.
			return snapshotMsg{snap: m.snap}
		}
		return snapshotMsg{snap: snap}
	}
}

func sortedStates(states map[string]int) []string {
	names := make([]string, 0, len(states))
	for name := range states {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

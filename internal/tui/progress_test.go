package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgress_SnapshotUpdatesView(t *testing.T) {
	m := NewProgress(context.Background(), nil)

	next, cmd := m.Update(snapshotMsg{snap: Snapshot{
		States:     map[string]int{"discovered": 3, "embedded": 7},
		Processed:  7,
		Total:      10,
		Percentage: 70,
	}})
	require.NotNil(t, cmd, "a snapshot schedules the next poll")

	view := next.View()
	assert.Contains(t, view, "discovered")
	assert.Contains(t, view, "7/10 files")
}

func TestProgress_DoneQuits(t *testing.T) {
	m := NewProgress(context.Background(), nil)

	next, cmd := m.Update(DoneMsg{})
	require.NotNil(t, cmd)
	assert.Contains(t, next.View(), "Done")

	model := next.(ProgressModel)
	assert.NoError(t, model.Err())
}

func TestProgress_DoneWithErrorShowsFailure(t *testing.T) {
	m := NewProgress(context.Background(), nil)

	next, _ := m.Update(DoneMsg{Err: errors.New("graph unreachable")})
	assert.Contains(t, next.View(), "Failed: graph unreachable")

	model := next.(ProgressModel)
	assert.Error(t, model.Err())
}

func TestProgress_QuitKeys(t *testing.T) {
	m := NewProgress(context.Background(), nil)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd, "q quits")

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd, "ctrl+c quits")
}

package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectChange(t *testing.T, c *Coalescer) Change {
	t.Helper()
	select {
	case change := <-c.Changes():
		return change
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for coalesced change")
		return Change{}
	}
}

func TestCoalescer_DebouncesModifyBurst(t *testing.T) {
	c := NewCoalescer(20*time.Millisecond, 50*time.Millisecond)
	defer c.Stop()

	for i := 0; i < 5; i++ {
		c.Add(Change{Path: "/p/a.md", Op: OpModify, At: time.Now()})
	}

	change := collectChange(t, c)
	assert.Equal(t, OpModify, change.Op)
	assert.Equal(t, 0, c.Pending())
}

func TestCoalescer_CreateThenDeleteCancels(t *testing.T) {
	c := NewCoalescer(30*time.Millisecond, 30*time.Millisecond)
	defer c.Stop()

	c.Add(Change{Path: "/p/tmp.md", Op: OpCreate, At: time.Now()})
	c.Add(Change{Path: "/p/tmp.md", Op: OpDelete, At: time.Now()})

	select {
	case change := <-c.Changes():
		t.Fatalf("expected no change, got %v", change)
	case <-time.After(120 * time.Millisecond):
	}
	assert.Equal(t, 0, c.Pending())
}

func TestCoalescer_DeleteThenCreateBecomesModify(t *testing.T) {
	c := NewCoalescer(20*time.Millisecond, 40*time.Millisecond)
	defer c.Stop()

	c.Add(Change{Path: "/p/a.md", Op: OpDelete, At: time.Now()})
	c.Add(Change{Path: "/p/a.md", Op: OpCreate, At: time.Now()})

	change := collectChange(t, c)
	assert.Equal(t, OpModify, change.Op)
}

func TestCoalescer_CreateThenModifyStaysCreate(t *testing.T) {
	c := NewCoalescer(20*time.Millisecond, 40*time.Millisecond)
	defer c.Stop()

	c.Add(Change{Path: "/p/new.md", Op: OpCreate, At: time.Now()})
	c.Add(Change{Path: "/p/new.md", Op: OpModify, At: time.Now()})

	change := collectChange(t, c)
	assert.Equal(t, OpCreate, change.Op)
}

func TestCoalescer_ModifyThenDeleteBecomesDelete(t *testing.T) {
	c := NewCoalescer(20*time.Millisecond, 40*time.Millisecond)
	defer c.Stop()

	c.Add(Change{Path: "/p/a.md", Op: OpModify, At: time.Now()})
	c.Add(Change{Path: "/p/a.md", Op: OpDelete, At: time.Now()})

	change := collectChange(t, c)
	assert.Equal(t, OpDelete, change.Op)
}

func TestCoalescer_StopDropsPending(t *testing.T) {
	c := NewCoalescer(time.Hour, time.Hour)
	c.Add(Change{Path: "/p/a.md", Op: OpModify, At: time.Now()})
	require.Equal(t, 1, c.Pending())

	c.Stop()
	assert.Equal(t, 0, c.Pending())

	_, open := <-c.Changes()
	assert.False(t, open)
}

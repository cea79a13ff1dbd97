package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	info := Get()

	assert.NotEmpty(t, info.Version)
	assert.NotContains(t, info.Version, "\n", "embedded VERSION must be trimmed")
	assert.NotEmpty(t, info.GitCommit)
	assert.NotEmpty(t, info.BuildDate)
}

func TestInfoString(t *testing.T) {
	info := Info{Version: "1.2.3", GitCommit: "abc1234", BuildDate: "2026-01-02T03:04:05Z"}
	s := info.String()

	assert.Contains(t, s, "Version:    1.2.3")
	assert.Contains(t, s, "Git Commit: abc1234")
	assert.Contains(t, s, "Build Date: 2026-01-02T03:04:05Z")
}

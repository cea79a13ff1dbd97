package embeddings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_HoldsEveryProvider(t *testing.T) {
	reg := NewRegistry(WithModel("m"))
	assert.Equal(t, []string{
		"google-embeddings",
		"ollama-embeddings",
		"openai-embeddings",
		"tei-embeddings",
	}, reg.Names())
}

func TestFromRegistry_SelectsByShortName(t *testing.T) {
	reg := NewRegistry(WithModel("nomic-embed-text"))

	p, err := FromRegistry(reg, "ollama")
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.ProviderName())
	assert.Equal(t, "nomic-embed-text", p.ModelName())
}

func TestFromRegistry_UnknownProvider(t *testing.T) {
	_, err := FromRegistry(NewRegistry(), "bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus")
}

func TestNew_BuildsThroughRegistry(t *testing.T) {
	p, err := New("openai", WithAPIKey("key"), WithModel("text-embedding-3-small"))
	require.NoError(t, err)
	assert.Equal(t, "openai", p.ProviderName())
	assert.True(t, p.Available(), "a configured api key makes the cloud provider available")
}

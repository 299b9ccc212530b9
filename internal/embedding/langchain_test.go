package embedding_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knograph/internal/config"
	"knograph/internal/embedding"
)

func TestNewLangchainEmbedderDefaults(t *testing.T) {
	embedder, err := embedding.NewLangchainEmbedder(config.Config{
		EmbedProvider: config.ProviderOllama,
	})
	require.NoError(t, err, "should create embedder with default model")
	assert.Equal(t, embedding.DefaultOllamaModel, embedder.Model())
	assert.Equal(t, embedding.DefaultOllamaDimension, embedder.Dimension())
}

func TestNewLangchainEmbedderCustomModel(t *testing.T) {
	embedder, err := embedding.NewLangchainEmbedder(config.Config{
		EmbedProvider:  config.ProviderOllama,
		EmbedModel:     "nomic-embed-text",
		EmbedDimension: 768,
	})
	require.NoError(t, err, "should create embedder with custom model")
	assert.Equal(t, "nomic-embed-text", embedder.Model())
	assert.Equal(t, 768, embedder.Dimension())
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := embedding.New(config.Config{EmbedProvider: "bedrock"})
	assert.Error(t, err)
}

func TestNewRequiresOpenAIKey(t *testing.T) {
	_, err := embedding.New(config.Config{EmbedProvider: config.ProviderOpenAI})
	assert.Error(t, err)
}

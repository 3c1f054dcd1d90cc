package llm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/de5chat/pkg/llm"
)

type fakeClient struct {
	batches [][]string
	err     error
	block   bool
}

func (f *fakeClient) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	f.batches = append(f.batches, texts)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = []float32{float32(len(text)), 1}
	}
	return vectors, nil
}

func TestNewEmbedderWithConfig(t *testing.T) {
	emb, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{BaseURL: "http://localhost:11434"})
	require.NoError(t, err)
	assert.Equal(t, "ollama:nomic-embed-text:latest", emb.ProviderID())

	emb, err = llm.NewEmbedderWithConfig(llm.EmbedderConfig{Provider: llm.ProviderOpenAI, APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, "openai:text-embedding-3-small", emb.ProviderID())

	_, err = llm.NewEmbedderWithConfig(llm.EmbedderConfig{Provider: "unknown"})
	assert.Error(t, err)
}

func TestEmbedDocuments(t *testing.T) {
	client := &fakeClient{}
	emb, err := llm.NewEmbedder(client, llm.EmbedderConfig{Provider: "fake", Model: "m", BatchSize: 2})
	require.NoError(t, err)
	assert.Equal(t, "fake:m", emb.ProviderID())

	vectors, err := emb.EmbedDocuments(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 1}, {2, 1}, {3, 1}}, vectors)
	assert.Len(t, client.batches, 2)

	vector, err := emb.EmbedQuery(context.Background(), "dddd")
	require.NoError(t, err)
	assert.Equal(t, []float32{4, 1}, vector)
}

func TestEmbedErrors(t *testing.T) {
	emb, err := llm.NewEmbedder(&fakeClient{err: errors.New("boom")}, llm.EmbedderConfig{Provider: "fake"})
	require.NoError(t, err)

	_, err = emb.EmbedQuery(context.Background(), "x")
	var perr *llm.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "embed query", perr.Op)

	slow, err := llm.NewEmbedder(&fakeClient{block: true}, llm.EmbedderConfig{Provider: "fake", Timeout: 20 * time.Millisecond})
	require.NoError(t, err)

	_, err = slow.EmbedDocuments(context.Background(), []string{"x"})
	assert.True(t, llm.IsTimeout(err))
}

package analyze

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashEmbedder_Deterministic(t *testing.T) {
	embed := NewHashEmbedder()
	ctx := context.Background()

	a, err := embed(ctx, "export pipeline timeout retries")
	require.NoError(t, err)
	b, err := embed(ctx, "export pipeline timeout retries")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, hashEmbeddingDims)
}

func TestHashEmbedder_Normalized(t *testing.T) {
	embed := NewHashEmbedder()

	vec, err := embed(context.Background(), "billing invoice totals wrong")
	require.NoError(t, err)

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, sum, 0.001)
}

func TestHashEmbedder_SimilarTextCloserThanUnrelated(t *testing.T) {
	embed := NewHashEmbedder()
	ctx := context.Background()

	a, err := embed(ctx, "application crashes when exporting report")
	require.NoError(t, err)
	b, err := embed(ctx, "application crashes during report exporting")
	require.NoError(t, err)
	c, err := embed(ctx, "please support keyboard shortcuts navigation")
	require.NoError(t, err)

	assert.Greater(t, cosine(a, b), cosine(a, c))
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"export", "fails", "100", "the", "time"},
		tokenize("Export FAILS 100% of the time!"))
	assert.Empty(t, tokenize("a an it"))
}

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

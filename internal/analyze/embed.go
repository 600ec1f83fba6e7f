package analyze

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/philippgille/chromem-go"
)

// NewOpenAIEmbedder returns an EmbedFunc backed by the OpenAI embeddings
// API using the small embedding model.
func NewOpenAIEmbedder(apiKey string) EmbedFunc {
	return EmbedFunc(chromem.NewEmbeddingFuncOpenAI(apiKey, chromem.EmbeddingModelOpenAI3Small))
}

const hashEmbeddingDims = 256

// NewHashEmbedder returns a deterministic offline embedding function. Texts
// sharing vocabulary land near each other, which is enough for local runs
// and tests without an embeddings API key. Vectors are L2-normalized.
func NewHashEmbedder() EmbedFunc {
	return func(_ context.Context, text string) ([]float32, error) {
		vec := make([]float32, hashEmbeddingDims)
		for _, word := range tokenize(text) {
			h := fnv.New32a()
			h.Write([]byte(word))
			vec[h.Sum32()%hashEmbeddingDims]++
		}

		var norm float64
		for _, v := range vec {
			norm += float64(v) * float64(v)
		}
		if norm > 0 {
			scale := float32(1 / math.Sqrt(norm))
			for i := range vec {
				vec[i] *= scale
			}
		}
		return vec, nil
	}
}

func tokenize(text string) []string {
	var words []string
	var cur []rune
	for _, r := range text {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			cur = append(cur, r)
		case r >= 'A' && r <= 'Z':
			cur = append(cur, r+('a'-'A'))
		default:
			if len(cur) > 2 {
				words = append(words, string(cur))
			}
			cur = cur[:0]
		}
	}
	if len(cur) > 2 {
		words = append(words, string(cur))
	}
	return words
}

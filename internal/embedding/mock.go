package embedding

import (
	"context"
	"hash/fnv"
)

const mockDimensions = 64

// MockClient produces deterministic pseudo-embeddings derived from the
// input text, so similarity queries behave consistently in tests and
// keyless local runs.
type MockClient struct {
	EmbedError error
	EmbedCalls []string
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (c *MockClient) Embed(ctx context.Context, text string) ([]float32, error) {
	c.EmbedCalls = append(c.EmbedCalls, text)
	if c.EmbedError != nil {
		return nil, c.EmbedError
	}

	h := fnv.New64a()
	vec := make([]float32, mockDimensions)
	for i := range vec {
		h.Write([]byte{byte(i)})
		h.Write([]byte(text))
		vec[i] = float32(h.Sum64()%1000) / 1000.0
	}
	return vec, nil
}

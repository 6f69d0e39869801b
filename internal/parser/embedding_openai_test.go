package parser

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"resumate-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEmbeddingTestServer(t *testing.T, dims int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openAIEmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var count int
		switch in := req.Input.(type) {
		case string:
			count = 1
		case []interface{}:
			count = len(in)
		}

		resp := openAIEmbeddingResponse{Object: "list", Model: req.Model}
		for i := 0; i < count; i++ {
			emb := make([]float64, dims)
			emb[0] = float64(i) + 0.5
			resp.Data = append(resp.Data, openAIDataEntry{Object: "embedding", Embedding: emb, Index: i})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestEmbedStringsSingleText(t *testing.T) {
	server := newEmbeddingTestServer(t, 1024)
	defer server.Close()

	embedder, err := NewOpenAIEmbedder("test-key", config.EmbeddingConfig{
		Model:      "BAAI/bge-m3",
		Dimensions: 1024,
		BaseURL:    server.URL,
	})
	require.NoError(t, err)

	vecs, err := embedder.EmbedStrings(context.Background(), []string{"hello"})
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	assert.Len(t, vecs[0], 1024)
}

func TestEmbedStringsBatchKeepsOrder(t *testing.T) {
	server := newEmbeddingTestServer(t, 1024)
	defer server.Close()

	embedder, err := NewOpenAIEmbedder("test-key", config.EmbeddingConfig{
		Model:      "BAAI/bge-m3",
		Dimensions: 1024,
		BaseURL:    server.URL,
	})
	require.NoError(t, err)

	vecs, err := embedder.EmbedStrings(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	// index字段决定顺序
	assert.Equal(t, 0.5, vecs[0][0])
	assert.Equal(t, 1.5, vecs[1][0])
	assert.Equal(t, 2.5, vecs[2][0])
}

func TestEmbedStringsEmptyInput(t *testing.T) {
	embedder, err := NewOpenAIEmbedder("test-key", config.EmbeddingConfig{BaseURL: "http://localhost:1"})
	require.NoError(t, err)

	vecs, err := embedder.EmbedStrings(context.Background(), nil)
	require.NoError(t, err, "空输入不应发起请求")
	assert.Empty(t, vecs)
}

func TestEmbedStringsDimensionMismatch(t *testing.T) {
	server := newEmbeddingTestServer(t, 8)
	defer server.Close()

	embedder, err := NewOpenAIEmbedder("test-key", config.EmbeddingConfig{
		Dimensions: 1024,
		BaseURL:    server.URL,
	})
	require.NoError(t, err)

	_, err = embedder.EmbedStrings(context.Background(), []string{"hello"})
	require.Error(t, err, "维度不符应报错")
	assert.Contains(t, err.Error(), "维度")
}

func TestEmbedStringsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"message": "invalid api key", "type": "auth_error", "code": "401",
		})
	}))
	defer server.Close()

	embedder, err := NewOpenAIEmbedder("bad-key", config.EmbeddingConfig{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = embedder.EmbedStrings(context.Background(), []string{"hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestNewOpenAIEmbedderValidation(t *testing.T) {
	_, err := NewOpenAIEmbedder("", config.EmbeddingConfig{BaseURL: "http://x"})
	assert.Error(t, err, "空API密钥应报错")

	_, err = NewOpenAIEmbedder("key", config.EmbeddingConfig{})
	assert.Error(t, err, "空BaseURL应报错")
}

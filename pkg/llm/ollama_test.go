package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	ollama "github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaProviderAnalyze(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req ollama.GenerateRequest
		err := json.NewDecoder(r.Body).Decode(&req)
		require.NoError(t, err)
		assert.Equal(t, "llama3", req.Model)
		assert.Equal(t, "Test prompt", req.Prompt)
		require.NotNil(t, req.Stream)
		assert.False(t, *req.Stream)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(ollama.GenerateResponse{
			Model:    "llama3",
			Response: "Local model analysis",
			Done:     true,
		})
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(server.URL, "llama3", 0.1)
	require.NoError(t, err)

	result, err := provider.Analyze(context.Background(), "Test prompt")
	require.NoError(t, err)
	assert.Equal(t, "Local model analysis", result)
}

func TestOllamaProviderDefaults(t *testing.T) {
	provider, err := NewOllamaProvider("", "", 0.2)
	require.NoError(t, err)
	assert.Equal(t, "ollama", provider.Name())
	assert.Equal(t, "llama3", provider.GetModel())
}

func TestOllamaProviderHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(server.URL, "llama3", 0)
	require.NoError(t, err)
	assert.NoError(t, provider.Health(context.Background()))
}

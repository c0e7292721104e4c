package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewFromEnvDisabled(t *testing.T) {
	t.Setenv("SKILLSYNC_EMBED_PROVIDER", "")
	if e := NewFromEnv(); e != nil {
		t.Error("expected nil embedder when no provider configured")
	}
}

func TestNewFromEnvOllama(t *testing.T) {
	t.Setenv("SKILLSYNC_EMBED_PROVIDER", "ollama")
	t.Setenv("SKILLSYNC_EMBED_MODEL", "")

	e := NewFromEnv()
	if e == nil {
		t.Fatal("expected ollama embedder")
	}
	if e.Dims() != 384 {
		t.Errorf("expected 384 dims for default model, got %d", e.Dims())
	}

	t.Setenv("SKILLSYNC_EMBED_MODEL", "nomic-embed-text")
	if e := NewFromEnv(); e.Dims() != 768 {
		t.Errorf("expected 768 dims for nomic-embed-text, got %d", e.Dims())
	}
}

func TestNewFromEnvOpenAI(t *testing.T) {
	t.Setenv("SKILLSYNC_EMBED_PROVIDER", "openai")
	t.Setenv("SKILLSYNC_EMBED_MODEL", "")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	e := NewFromEnv()
	if e == nil {
		t.Fatal("expected openai embedder")
	}
	if e.Dims() != 1536 {
		t.Errorf("expected 1536 default dims, got %d", e.Dims())
	}
}

func TestOllamaEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var req ollamaRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Prompt != "hello" {
			t.Errorf("unexpected prompt %q", req.Prompt)
		}
		json.NewEncoder(w).Encode(ollamaResponse{Embedding: []float32{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	t.Setenv("OLLAMA_HOST", srv.URL)
	e := NewOllamaEmbedder("all-minilm")

	vec, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vec) != 3 || vec[1] != 0.2 {
		t.Errorf("unexpected vector %v", vec)
	}
}

func TestOpenAIEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", got)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{{"embedding": []float32{1, 2}}},
		})
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(srv.URL, "sk-test", "", 2)
	vec, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vec) != 2 || vec[0] != 1 {
		t.Errorf("unexpected vector %v", vec)
	}
}

func TestOllamaEmbedServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	t.Setenv("OLLAMA_HOST", srv.URL)
	e := NewOllamaEmbedder("all-minilm")

	if _, err := e.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for 404 response")
	}
}

package reply_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/voxenio/voxen/internal/reply"
)

func TestOllama_Generate(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %q, want /api/generate", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"response": "  The sky is blue.  ",
			"done":     true,
		})
	}))
	defer srv.Close()

	p, err := reply.NewOllama(srv.URL, "llama3.2")
	if err != nil {
		t.Fatalf("NewOllama() error = %v", err)
	}

	got, err := p.Generate(context.Background(), "why is the sky blue?")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "The sky is blue." {
		t.Fatalf("Generate() = %q, want trimmed response", got)
	}

	if gotBody["model"] != "llama3.2" {
		t.Errorf("request model = %v, want llama3.2", gotBody["model"])
	}
	if gotBody["stream"] != false {
		t.Errorf("request stream = %v, want false", gotBody["stream"])
	}
	if sys, _ := gotBody["system"].(string); !strings.Contains(sys, "voice assistant") {
		t.Errorf("request system = %q, want the default system prompt", sys)
	}
	opts, _ := gotBody["options"].(map[string]any)
	if opts["temperature"] != 0.7 || opts["top_p"] != 0.9 {
		t.Errorf("request options = %v, want temperature 0.7 and top_p 0.9", opts)
	}
}

func TestOllama_GenerateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, err := reply.NewOllama(srv.URL, "llama3.2")
	if err != nil {
		t.Fatalf("NewOllama() error = %v", err)
	}
	if _, err := p.Generate(context.Background(), "hi"); err == nil {
		t.Fatal("Generate() error = nil, want status error")
	}
}

func TestOllama_GenerateEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"response": "", "done": true})
	}))
	defer srv.Close()

	p, err := reply.NewOllama(srv.URL, "llama3.2")
	if err != nil {
		t.Fatalf("NewOllama() error = %v", err)
	}
	if _, err := p.Generate(context.Background(), "hi"); err == nil {
		t.Fatal("Generate() error = nil, want empty-response error")
	}
}

func TestOllama_PingModelInstalled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("path = %q, want /api/tags", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"models": []map[string]any{
				{"name": "qwen2.5:7b"},
				{"name": "llama3.2:latest"},
			},
		})
	}))
	defer srv.Close()

	p, err := reply.NewOllama(srv.URL, "llama3.2")
	if err != nil {
		t.Fatalf("NewOllama() error = %v", err)
	}
	if err := p.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() = %v, want nil for installed model", err)
	}
}

func TestOllama_PingModelMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"models": []map[string]any{{"name": "qwen2.5:7b"}},
		})
	}))
	defer srv.Close()

	p, err := reply.NewOllama(srv.URL, "llama3.2")
	if err != nil {
		t.Fatalf("NewOllama() error = %v", err)
	}
	if err := p.Ping(context.Background()); err == nil {
		t.Fatal("Ping() = nil, want missing-model error")
	}
}

func TestNewOllama_RequiresModel(t *testing.T) {
	if _, err := reply.NewOllama("", ""); err == nil {
		t.Fatal("NewOllama() error = nil, want error for empty model")
	}
}

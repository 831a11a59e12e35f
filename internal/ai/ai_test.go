package ai_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kiliankoe/promptheist/internal/ai"
	"github.com/kiliankoe/promptheist/internal/ai/ollama"
	"github.com/kiliankoe/promptheist/internal/ai/openai"
)

func TestRegistryGet(t *testing.T) {
	oa := openai.New("key", "")
	reg := ai.Registry{"openai": oa}
	p, err := reg.Get(" OpenAI ")
	if err != nil || p != oa {
		t.Fatalf("expected openai provider, got %v %v", p, err)
	}
	if _, err := reg.Get("claude"); !errors.Is(err, ai.ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestOpenAIRequestsJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing bearer token")
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if rf, _ := body["response_format"].(map[string]any); rf["type"] != "json_object" {
			t.Errorf("expected json response format, got %v", body["response_format"])
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":" {\"score\":50} "}}]}`))
	}))
	defer srv.Close()

	out, err := openai.New("key", srv.URL+"/").CompleteWithSystem(context.Background(), "gpt-4o-mini", "sys", "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"score":50}` {
		t.Fatalf("expected trimmed content, got %q", out)
	}
}

func TestOpenAIWithoutKey(t *testing.T) {
	if _, err := openai.New("", "").Complete(context.Background(), "m", "p"); !errors.Is(err, openai.ErrMissingKey) {
		t.Fatalf("expected ErrMissingKey, got %v", err)
	}
}

func TestOllamaChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"message":{"content":"{\"score\":12}"}}`))
	}))
	defer srv.Close()

	out, err := ollama.New(srv.URL).Complete(context.Background(), "llama3", "hi")
	if err != nil || out != `{"score":12}` {
		t.Fatalf("unexpected reply %q %v", out, err)
	}
}

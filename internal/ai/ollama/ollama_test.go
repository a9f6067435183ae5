package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kiliankoe/gptdungeon/internal/ai"
)

func TestCompleteRequestsJSONFormat(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"message":{"content":"{}"}}`))
	}))
	defer srv.Close()

	text, err := New(srv.URL).Complete(context.Background(), ai.Request{Model: "llama3", Prompt: "hi", JSON: true})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != "{}" {
		t.Fatalf("unexpected text %q", text)
	}
	if got["format"] != "json" {
		t.Fatalf("expected json format, got %v", got["format"])
	}
	if got["stream"] != false {
		t.Fatalf("expected stream=false, got %v", got["stream"])
	}
}

func TestCompleteEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":{"content":"  "}}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Complete(context.Background(), ai.Request{Prompt: "hi"})
	if !errors.Is(err, ai.ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

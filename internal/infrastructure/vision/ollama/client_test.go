package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/pid-asset-extractor/internal/core/domain"
)

func TestCompleteAttachesImage(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":" {\"assets\":[]} "}}`))
	}))
	defer server.Close()

	client := New(server.URL+"/", "llava", 0)
	out, err := client.Complete(context.Background(), domain.VisionRequest{
		SystemPrompt: "system",
		UserPrompt:   "user",
		Document:     domain.DocumentPayload{Base64: "aW1n", MimeType: domain.MimePNG},
		MaxTokens:    100,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out != `{"assets":[]}` {
		t.Fatalf("unexpected output %q", out)
	}
	if payload["model"] != "llava" || payload["format"] != "json" {
		t.Fatalf("unexpected payload %v", payload)
	}
	messages := payload["messages"].([]any)
	user := messages[1].(map[string]any)
	images := user["images"].([]any)
	if len(images) != 1 || images[0] != "aW1n" {
		t.Fatalf("expected base64 image, got %v", user)
	}
}

func TestCompleteRejectsPDF(t *testing.T) {
	client := New("http://127.0.0.1:1", "llava", 0)
	_, err := client.Complete(context.Background(), domain.VisionRequest{
		Document: domain.DocumentPayload{Base64: "JVBERi0=", MimeType: domain.MimePDF},
	})
	if !domain.IsKind(err, domain.ErrUnsupportedMediaType) {
		t.Fatalf("expected ErrUnsupportedMediaType, got %v", err)
	}
}

func TestCompleteIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := New(server.URL, "llava", 0).Complete(context.Background(), domain.VisionRequest{
		Document: domain.DocumentPayload{Base64: "aW1n", MimeType: domain.MimeJPEG},
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected 502 to be temporary, got %v", err)
	}
}

package suggest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func geminiServer(t *testing.T, status int, text string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"code": status, "message": "upstream unhappy"},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": text}}}},
			},
		})
	}))
}

func TestGenerateParsesLines(t *testing.T) {
	srv := geminiServer(t, http.StatusOK, "Read an intro to Go\n\n- Write a hello world program\n2. Learn about goroutines\n  Set up a workspace  \n")
	defer srv.Close()

	client := NewGeminiClient("test-key", "gemini-2.0-flash", srv.URL, 5)
	titles, err := client.Generate(context.Background(), "Go")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	want := []string{
		"Read an intro to Go",
		"Write a hello world program",
		"Learn about goroutines",
		"Set up a workspace",
	}
	if len(titles) != len(want) {
		t.Fatalf("expected %d titles, got %d: %v", len(want), len(titles), titles)
	}
	for i, title := range want {
		if titles[i] != title {
			t.Errorf("title %d: expected %q, got %q", i, title, titles[i])
		}
	}
}

func TestGenerateCapsAtConfiguredCount(t *testing.T) {
	srv := geminiServer(t, http.StatusOK, "a\nb\nc\nd\ne\nf\ng")
	defer srv.Close()

	client := NewGeminiClient("test-key", "gemini-2.0-flash", srv.URL, 5)
	titles, err := client.Generate(context.Background(), "anything")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(titles) != 5 {
		t.Fatalf("expected 5 titles, got %d", len(titles))
	}
}

func TestGenerateUpstreamErrorIsGenerationError(t *testing.T) {
	srv := geminiServer(t, http.StatusInternalServerError, "")
	defer srv.Close()

	client := NewGeminiClient("test-key", "gemini-2.0-flash", srv.URL, 5)
	_, err := client.Generate(context.Background(), "Go")
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
}

func TestGenerateEmptyResponseIsGenerationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
	}))
	defer srv.Close()

	client := NewGeminiClient("test-key", "gemini-2.0-flash", srv.URL, 5)
	if _, err := client.Generate(context.Background(), "Go"); !errors.Is(err, ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
}

func TestGenerateWithoutAPIKey(t *testing.T) {
	client := NewGeminiClient("", "gemini-2.0-flash", "http://localhost:0", 5)
	if _, err := client.Generate(context.Background(), "Go"); !errors.Is(err, ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
}

func TestStripListMarker(t *testing.T) {
	cases := map[string]string{
		"- Learn X":    "Learn X",
		"* Learn X":    "Learn X",
		"10. Learn X":  "Learn X",
		"3) Learn X":   "Learn X",
		"Learn X":      "Learn X",
		"2026 in Go":   "2026 in Go",
		"• Learn X":    "Learn X",
	}
	for input, want := range cases {
		if got := stripListMarker(input); got != want {
			t.Errorf("stripListMarker(%q) = %q, want %q", input, got, want)
		}
	}
}

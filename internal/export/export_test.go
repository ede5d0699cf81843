package export

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"taskpilot/api/internal/store"
)

type fakeDataStore struct {
	user  store.User
	tasks []store.Task
	err   error
}

func (f *fakeDataStore) ListTasksByUser(_ context.Context, _ string) ([]store.Task, error) {
	return f.tasks, f.err
}

func (f *fakeDataStore) GetUserByID(_ context.Context, _ string) (store.User, error) {
	return f.user, f.err
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "Hello-World"},
		{"tasks-Go v1.2", "tasks-Go-v12"},
		{"Special!@#$%Chars", "SpecialChars"},
		{"", "report"},
		{"Very Long Topic Name That Exceeds Fifty Characters Limit", "Very-Long-Topic-Name-That-Exceeds-Fifty-Characters"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := sanitizeFilename(tt.input)
			if result != tt.expected {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hello world", "hello%20world"},       // Spaces encoded as %20, not +
		{"test+sign", "test%2Bsign"},           // + signs are encoded
		{"special<>", "special%3C%3E"},         // Special chars encoded
		{"normal-text.txt", "normal-text.txt"}, // Unreserved chars pass through
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := percentEncodeForDataURL(tt.input)
			if result != tt.expected {
				t.Errorf("percentEncodeForDataURL(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestRenderReportHTML(t *testing.T) {
	data := TemplateData{
		UserName:       "Ada",
		GeneratedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Total:          3,
		Completed:      1,
		CompletionRate: 33,
		Groups: []ReportGroup{
			{Topic: "Go", Tasks: []ReportTask{
				{Title: "Read the tour", Completed: true},
				{Title: "Write a CLI"},
			}},
			{Topic: "Uncategorized", Tasks: []ReportTask{
				{Title: "Buy milk"},
			}},
		},
	}

	html, err := RenderReportHTML(data)
	if err != nil {
		t.Fatalf("RenderReportHTML() error = %v", err)
	}

	for _, want := range []string{"Ada", "1 of 3", "33%", "Go", "Uncategorized", "Read the tour", "Buy milk"} {
		if !strings.Contains(html, want) {
			t.Errorf("HTML missing %q", want)
		}
	}
}

func TestExportGroupsAndFilters(t *testing.T) {
	ds := &fakeDataStore{
		user: store.User{ID: "user-1", DisplayName: "Ada"},
		tasks: []store.Task{
			{ID: 1, UserID: "user-1", Title: "Read the tour", Topic: "Go", Completed: true},
			{ID: 2, UserID: "user-1", Title: "Buy flour", Topic: "Baking"},
		},
	}
	svc := NewService(ds)

	// Unsupported format fails after data assembly, which is all we can
	// exercise without chromium or pandoc installed.
	_, err := svc.Export(context.Background(), Request{UserID: "user-1", Format: Format("html")})
	if err == nil || !strings.Contains(err.Error(), "unsupported format") {
		t.Fatalf("expected unsupported format error, got %v", err)
	}
}

func TestExportPropagatesStoreError(t *testing.T) {
	ds := &fakeDataStore{err: errors.New("db down")}
	svc := NewService(ds)

	if _, err := svc.Export(context.Background(), Request{UserID: "user-1", Format: FormatPDF}); err == nil {
		t.Fatal("expected store error to propagate")
	}
}

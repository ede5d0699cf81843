// Package suggest wraps the Gemini generateContent API to produce a small
// bounded batch of actionable task titles for a topic.
package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultCount = 5

// ErrGeneration marks any upstream failure: transport, provider error,
// malformed or empty response. Callers surface it to the user and do not
// retry automatically.
var ErrGeneration = errors.New("suggestion generation failed")

// Generator produces candidate task titles for a topic.
type Generator interface {
	Generate(ctx context.Context, topic string) ([]string, error)
}

// GeminiClient calls the Gemini generateContent endpoint. It keeps no state
// between calls and performs no caching.
type GeminiClient struct {
	apiKey  string
	model   string
	baseURL string
	count   int
	client  *http.Client
}

func NewGeminiClient(apiKey, model, baseURL string, count int) *GeminiClient {
	if count <= 0 {
		count = defaultCount
	}
	return &GeminiClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		count:   count,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

type geminiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Generate returns up to the configured number of task title strings for the
// topic. Order is the model's; it is not stable across calls.
func (c *GeminiClient) Generate(ctx context.Context, topic string) ([]string, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY not set", ErrGeneration)
	}

	prompt := fmt.Sprintf(
		"Generate a list of %d concise, actionable tasks to learn about %s. Return only the tasks, no numbering or formatting.",
		c.count, topic,
	)

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrGeneration, err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr geminiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("%w: gemini %d: %s", ErrGeneration, resp.StatusCode, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("%w: gemini %d", ErrGeneration, resp.StatusCode)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrGeneration, err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrGeneration)
	}

	titles := splitTitles(parsed.Candidates[0].Content.Parts[0].Text, c.count)
	if len(titles) == 0 {
		return nil, fmt.Errorf("%w: no usable tasks in response", ErrGeneration)
	}
	return titles, nil
}

// splitTitles turns the model's text into clean task titles: one per line,
// trimmed, markdown bullets and numbering stripped, blanks dropped, capped
// at max. The model is asked for plain lines but does not always comply.
func splitTitles(text string, max int) []string {
	lines := strings.Split(text, "\n")
	titles := make([]string, 0, max)
	for _, line := range lines {
		title := stripListMarker(strings.TrimSpace(line))
		if title == "" {
			continue
		}
		titles = append(titles, title)
		if len(titles) == max {
			break
		}
	}
	return titles
}

func stripListMarker(line string) string {
	trimmed := strings.TrimLeft(line, "-*• \t")
	// "1. Learn X" / "2) Learn Y"
	for i, r := range trimmed {
		if r >= '0' && r <= '9' {
			continue
		}
		if (r == '.' || r == ')') && i > 0 {
			return strings.TrimSpace(trimmed[i+1:])
		}
		break
	}
	return strings.TrimSpace(trimmed)
}

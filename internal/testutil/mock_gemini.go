// Package testutil provides testing utilities for pagebatch.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockGeminiResponse defines one scripted answer of the mock server.
type MockGeminiResponse struct {
	StatusCode int
	Body       string
	Delay      time.Duration
}

// MockGemini is a configurable mock of the generateContent endpoint.
// Scripted responses are served in FIFO order; once the script is empty
// every request gets the default response.
type MockGemini struct {
	server *httptest.Server

	mu       sync.Mutex
	script   []MockGeminiResponse
	fallback MockGeminiResponse

	// Tracking
	RequestCount int
	LastPath     string
	LastAPIKey   string
	LastPrompt   string
}

// NewMockGemini creates a mock server whose default answer is one item.
func NewMockGemini() *MockGemini {
	mock := &MockGemini{
		fallback: NewItemsResponse(`{"type":"note","text":"ok"}`),
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the mock server URL.
func (m *MockGemini) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockGemini) Close() {
	m.server.Close()
}

// Enqueue appends scripted responses.
func (m *MockGemini) Enqueue(resps ...MockGeminiResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, resps...)
}

// SetDefault replaces the response used once the script is exhausted.
func (m *MockGemini) SetDefault(resp MockGeminiResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = resp
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockGemini) GetRequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.RequestCount
}

// GetLastPrompt returns the prompt text of the last request.
func (m *MockGemini) GetLastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.LastPrompt
}

func (m *MockGemini) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	var req struct {
		Contents []struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"contents"`
	}
	_ = json.Unmarshal(body, &req)

	var prompt strings.Builder
	for _, c := range req.Contents {
		for _, p := range c.Parts {
			prompt.WriteString(p.Text)
		}
	}

	m.mu.Lock()
	m.RequestCount++
	m.LastPath = r.URL.Path
	m.LastAPIKey = r.URL.Query().Get("key")
	m.LastPrompt = prompt.String()
	resp := m.fallback
	if len(m.script) > 0 {
		resp = m.script[0]
		m.script = m.script[1:]
	}
	m.mu.Unlock()

	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// NewItemsResponse creates a 200 response whose candidate text is a JSON
// array of the given item objects.
func NewItemsResponse(items ...string) MockGeminiResponse {
	text := "[" + strings.Join(items, ",") + "]"
	payload := map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"parts": []any{map[string]any{"text": text}},
					"role":  "model",
				},
				"finishReason": "STOP",
			},
		},
	}
	b, _ := json.Marshal(payload)
	return MockGeminiResponse{StatusCode: http.StatusOK, Body: string(b)}
}

// NewRateLimitResponse creates a per-minute 429.
func NewRateLimitResponse() MockGeminiResponse {
	return MockGeminiResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error":{"code":429,"message":"Quota exceeded for metric: generate_content_free_tier_requests, limit: GenerateRequestsPerMinutePerProjectPerModel","status":"RESOURCE_EXHAUSTED"}}`,
	}
}

// NewDailyQuotaResponse creates a per-day 429.
func NewDailyQuotaResponse() MockGeminiResponse {
	return MockGeminiResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error":{"code":429,"message":"Quota exceeded for metric: generate_content_free_tier_requests, limit: GenerateRequestsPerDayPerProjectPerModel","status":"RESOURCE_EXHAUSTED"}}`,
	}
}

// NewInvalidKeyResponse creates the 400 returned for a bad API key.
func NewInvalidKeyResponse() MockGeminiResponse {
	return MockGeminiResponse{
		StatusCode: http.StatusBadRequest,
		Body:       `{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT","details":[{"reason":"API_KEY_INVALID"}]}}`,
	}
}

// NewServerErrorResponse creates a 500 response.
func NewServerErrorResponse() MockGeminiResponse {
	return MockGeminiResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error":{"code":500,"message":"An internal error has occurred.","status":"INTERNAL"}}`,
	}
}

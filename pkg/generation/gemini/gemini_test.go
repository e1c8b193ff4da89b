package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/FiratKiziltepe/pagebatch/internal/testutil"
	"github.com/FiratKiziltepe/pagebatch/pkg/generation"
	"github.com/FiratKiziltepe/pagebatch/pkg/ratelimit"
)

func newTestClient(t *testing.T, mock *testutil.MockGemini) *Client {
	t.Helper()
	cfg := DefaultConfig("test-key")
	cfg.BaseURL = mock.URL()
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(Config{})
	if generation.KindOf(err) != generation.KindCredential {
		t.Errorf("error = %v, want credential kind", err)
	}
}

func TestGenerate_Success(t *testing.T) {
	mock := testutil.NewMockGemini()
	defer mock.Close()
	mock.Enqueue(testutil.NewItemsResponse(
		`{"type":"multiple-choice","question":"q1"}`,
		`{"type":"true-false","question":"q2"}`,
	))

	c := newTestClient(t, mock)
	res, err := c.Generate(context.Background(), generation.Request{
		Model:        "gemini-2.5-flash",
		Content:      "--- Page 1 ---\nhello",
		TypeHints:    []string{"multiple-choice", "true-false"},
		DesiredCount: 2,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if len(res.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(res.Items))
	}
	if res.Items[0].Type != "multiple-choice" || res.Items[1].Type != "true-false" {
		t.Errorf("types = %q, %q", res.Items[0].Type, res.Items[1].Type)
	}

	if mock.LastPath != "/v1beta/models/gemini-2.5-flash:generateContent" {
		t.Errorf("path = %q", mock.LastPath)
	}
	if mock.LastAPIKey != "test-key" {
		t.Errorf("key = %q", mock.LastAPIKey)
	}
	prompt := mock.GetLastPrompt()
	if !strings.Contains(prompt, "Generate 2 items") || !strings.Contains(prompt, "hello") {
		t.Errorf("prompt = %q", prompt)
	}
}

func TestGenerate_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		resp      testutil.MockGeminiResponse
		wantKind  generation.Kind
		transient bool
	}{
		{name: "per-minute throttle", resp: testutil.NewRateLimitResponse(), wantKind: generation.KindRateLimit, transient: true},
		{name: "daily quota", resp: testutil.NewDailyQuotaResponse(), wantKind: generation.KindQuota},
		{name: "invalid key", resp: testutil.NewInvalidKeyResponse(), wantKind: generation.KindCredential},
		{name: "server error", resp: testutil.NewServerErrorResponse(), wantKind: generation.KindServer},
		{name: "garbage body", resp: testutil.MockGeminiResponse{StatusCode: 200, Body: "not json"}, wantKind: generation.KindInvalidResponse},
		{name: "no candidates", resp: testutil.MockGeminiResponse{StatusCode: 200, Body: `{"candidates":[]}`}, wantKind: generation.KindInvalidResponse},
		{name: "throttle in ok body", resp: testutil.MockGeminiResponse{StatusCode: 200, Body: `{"error":{"code":429,"message":"Rate limit exceeded","status":"RESOURCE_EXHAUSTED"}}`}, wantKind: generation.KindRateLimit, transient: true},
		{name: "bad key in ok body", resp: testutil.MockGeminiResponse{StatusCode: 200, Body: `{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT"}}`}, wantKind: generation.KindCredential},
		{name: "unknown error in ok body", resp: testutil.MockGeminiResponse{StatusCode: 200, Body: `{"error":{"code":500,"message":"backend unavailable"}}`}, wantKind: generation.KindServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockGemini()
			defer mock.Close()
			mock.Enqueue(tt.resp)

			_, err := newTestClient(t, mock).Generate(context.Background(), generation.Request{Content: "x"})
			var ge *generation.Error
			if !errors.As(err, &ge) {
				t.Fatalf("error = %v, want *generation.Error", err)
			}
			if ge.Kind != tt.wantKind {
				t.Errorf("Kind = %s, want %s", ge.Kind, tt.wantKind)
			}
			if got := ratelimit.IsTransient(err); got != tt.transient {
				t.Errorf("IsTransient() = %v, want %v", got, tt.transient)
			}
		})
	}
}

func TestGenerate_NetworkError(t *testing.T) {
	mock := testutil.NewMockGemini()
	c := newTestClient(t, mock)
	mock.Close()

	_, err := c.Generate(context.Background(), generation.Request{Content: "x"})
	if generation.KindOf(err) != generation.KindNetwork {
		t.Errorf("error = %v, want network kind", err)
	}
}

func TestGenerate_Timeout(t *testing.T) {
	mock := testutil.NewMockGemini()
	defer mock.Close()
	mock.Enqueue(testutil.MockGeminiResponse{StatusCode: 200, Body: `{"candidates":[]}`, Delay: 300 * time.Millisecond})

	cfg := DefaultConfig("test-key")
	cfg.BaseURL = mock.URL()
	cfg.Timeout = 50 * time.Millisecond
	c, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.Generate(context.Background(), generation.Request{Content: "x"})
	if generation.KindOf(err) != generation.KindTimeout {
		t.Errorf("error = %v, want timeout kind", err)
	}
	if strings.Contains(err.Error(), "test-key") {
		t.Errorf("error leaks the api key: %v", err)
	}
}

func TestGenerate_Cancelled(t *testing.T) {
	mock := testutil.NewMockGemini()
	defer mock.Close()
	c := newTestClient(t, mock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Generate(ctx, generation.Request{Content: "x"})
	if generation.KindOf(err) != generation.KindCancelled {
		t.Errorf("error = %v, want cancelled kind", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled in chain", err)
	}
	if ratelimit.IsTransient(err) {
		t.Error("cancelled request must not be retried")
	}
}

func TestParseItems(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    int
		wantErr bool
	}{
		{name: "array", text: `[{"type":"a"},{"type":"b"}]`, want: 2},
		{name: "wrapped", text: `{"items":[{"type":"a"}]}`, want: 1},
		{name: "fenced", text: "```json\n[{\"type\":\"a\"}]\n```", want: 1},
		{name: "empty array", text: `[]`, want: 0},
		{name: "object without items", text: `{"foo":1}`, wantErr: true},
		{name: "blank", text: "  ", wantErr: true},
		{name: "prose", text: "Sure, here you go", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := ParseItems(tt.text)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseItems() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && len(items) != tt.want {
				t.Errorf("len = %d, want %d", len(items), tt.want)
			}
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(generation.Request{Content: "body"})
	if strings.Contains(p, "Allowed item types") {
		t.Error("no type hints should omit the type line")
	}
	if !strings.HasSuffix(p, "body") {
		t.Errorf("prompt should end with content: %q", p)
	}
}

// Package gemini implements generation.Generator on top of the Gemini
// generateContent REST endpoint.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/FiratKiziltepe/pagebatch/pkg/generation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for generation requests.
var (
	geminiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagebatch_generation_requests_total",
		Help: "Total generation requests by model and outcome",
	}, []string{"model", "outcome"})

	geminiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pagebatch_generation_request_duration_seconds",
		Help:    "Generation request duration in seconds by model",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"model"})

	geminiItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagebatch_generation_items_total",
		Help: "Total items returned by the generation service by model",
	}, []string{"model"})
)

// DefaultBaseURL is the public Generative Language API.
const DefaultBaseURL = "https://generativelanguage.googleapis.com"

// maxErrorBody bounds how much of an error response is read for classification.
const maxErrorBody = 4 << 10

// Config holds the adapter configuration.
type Config struct {
	// APIKey is sent as the "key" query parameter. Required.
	APIKey string

	// BaseURL of the API (default DefaultBaseURL).
	BaseURL string

	// Model used when a Request does not name one.
	Model string

	// Timeout per HTTP request.
	Timeout time.Duration

	// UserAgent header.
	UserAgent string

	// HTTPClient overrides the transport (tests).
	HTTPClient *http.Client
}

// DefaultConfig returns a configuration for apiKey with safe defaults.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:    apiKey,
		BaseURL:   DefaultBaseURL,
		Model:     "gemini-2.5-flash",
		Timeout:   120 * time.Second,
		UserAgent: "pagebatch/1.0",
	}
}

// Client calls the generateContent endpoint.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a new Gemini client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &generation.Error{Kind: generation.KindCredential, Message: "api key is required"}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}

	logger := log.With().Str("component", "gemini").Logger()
	logger.Info().
		Str("base_url", cfg.BaseURL).
		Str("model", cfg.Model).
		Msg("Gemini client initialized")

	return &Client{
		httpClient: hc,
		config:     cfg,
		logger:     logger,
	}, nil
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
	Temperature      float64 `json:"temperature,omitempty"`
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Generate implements generation.Generator.
func (c *Client) Generate(ctx context.Context, req generation.Request) (*generation.Result, error) {
	model := req.Model
	if model == "" {
		model = c.config.Model
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: BuildPrompt(req)}}}},
		GenerationConfig: &generationConfig{
			ResponseMIMEType: "application/json",
		},
	})
	if err != nil {
		return nil, &generation.Error{Kind: generation.KindOther, Message: "encode request", Err: err}
	}

	endpoint, err := c.endpoint(model)
	if err != nil {
		return nil, &generation.Error{Kind: generation.KindOther, Message: "build url", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &generation.Error{Kind: generation.KindOther, Message: "new request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.config.UserAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	geminiRequestDuration.WithLabelValues(model).Observe(time.Since(start).Seconds())
	if err != nil {
		gerr := classifyTransport(err)
		geminiRequestsTotal.WithLabelValues(model, string(gerr.Kind)).Inc()
		c.logger.Warn().
			Str("model", model).
			Str("kind", string(gerr.Kind)).
			Err(gerr.Err).
			Msg("Generation request failed")
		return nil, gerr
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		gerr := classifyResponse(resp)
		geminiRequestsTotal.WithLabelValues(model, string(gerr.Kind)).Inc()
		c.logger.Warn().
			Str("model", model).
			Int("status", resp.StatusCode).
			Str("kind", string(gerr.Kind)).
			Str("message", gerr.Message).
			Msg("Generation request failed")
		return nil, gerr
	}

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		geminiRequestsTotal.WithLabelValues(model, string(generation.KindInvalidResponse)).Inc()
		return nil, &generation.Error{Kind: generation.KindInvalidResponse, StatusCode: resp.StatusCode, Message: "decode response", Err: err}
	}
	if gr.Error != nil {
		gerr := classifyEmbedded(resp.StatusCode, gr.Error.Message, gr.Error.Status)
		geminiRequestsTotal.WithLabelValues(model, string(gerr.Kind)).Inc()
		c.logger.Warn().
			Str("model", model).
			Int("status", resp.StatusCode).
			Str("kind", string(gerr.Kind)).
			Str("message", gerr.Message).
			Msg("Generation request returned an error payload")
		return nil, gerr
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		geminiRequestsTotal.WithLabelValues(model, string(generation.KindInvalidResponse)).Inc()
		return nil, &generation.Error{Kind: generation.KindInvalidResponse, StatusCode: resp.StatusCode, Message: "empty candidates"}
	}

	var text strings.Builder
	for _, p := range gr.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}

	items, err := ParseItems(text.String())
	if err != nil {
		geminiRequestsTotal.WithLabelValues(model, string(generation.KindInvalidResponse)).Inc()
		return nil, &generation.Error{Kind: generation.KindInvalidResponse, StatusCode: resp.StatusCode, Message: "parse items", Err: err}
	}

	geminiRequestsTotal.WithLabelValues(model, "success").Inc()
	geminiItemsTotal.WithLabelValues(model).Add(float64(len(items)))
	c.logger.Debug().
		Str("model", model).
		Int("items", len(items)).
		Dur("duration", time.Since(start)).
		Msg("Generation request complete")

	return &generation.Result{Items: items}, nil
}

func (c *Client) endpoint(model string) (string, error) {
	u, err := url.Parse(strings.TrimRight(c.config.BaseURL, "/") +
		"/v1beta/models/" + url.PathEscape(model) + ":generateContent")
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("key", c.config.APIKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// classifyResponse turns a non-2xx response into a tagged error.
func classifyResponse(resp *http.Response) *generation.Error {
	slurp, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	raw := strings.TrimSpace(string(slurp))

	msg := raw
	var ae apiError
	if json.Unmarshal(slurp, &ae) == nil && ae.Error.Message != "" {
		msg = ae.Error.Message
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	return &generation.Error{
		Kind:       generation.ClassifyStatus(resp.StatusCode, raw),
		StatusCode: resp.StatusCode,
		Message:    msg,
	}
}

// classifyTransport tags an error returned by the HTTP client. Deadlines and
// cancellation are kept apart from connection failures.
// The *url.Error wrapper is dropped because its text carries the API key.
func classifyTransport(err error) *generation.Error {
	var ue *url.Error
	if errors.As(err, &ue) {
		err = ue.Err
	}

	var ne net.Error
	switch {
	case errors.Is(err, context.Canceled):
		return &generation.Error{Kind: generation.KindCancelled, Message: "request cancelled", Err: err}
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &ne) && ne.Timeout():
		return &generation.Error{Kind: generation.KindTimeout, Message: "request timed out", Err: err}
	}
	if kind := generation.ClassifyMessage(err.Error()); kind != generation.KindOther {
		return &generation.Error{Kind: kind, Message: "request failed", Err: err}
	}
	return &generation.Error{Kind: generation.KindNetwork, Message: "request failed", Err: err}
}

// classifyEmbedded tags an error object found in a 2xx body.
func classifyEmbedded(statusCode int, message, status string) *generation.Error {
	kind := generation.ClassifyMessage(message + " " + status)
	if kind == generation.KindOther {
		kind = generation.KindServer
	}
	if message == "" {
		message = status
	}
	return &generation.Error{Kind: kind, StatusCode: statusCode, Message: message}
}

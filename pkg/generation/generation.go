// Package generation defines the contract between the batch orchestrator and a
// remote generation service.
//
// Adapters classify failures once, at the HTTP boundary, into an Error with an
// explicit Kind. Downstream code (the rate limiter's retry decision and the
// orchestrator's continuation policy) only ever inspects the Kind.
package generation

import (
	"context"
	"encoding/json"
)

// Generator produces structured items from a block of content.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req Request) (*Result, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (*Result, error) {
	return f(ctx, req)
}

// Request is a single generation call.
type Request struct {
	// Model is the remote model identifier.
	Model string `json:"model"`

	// Content is the extracted text of every unit in the batch, with unit
	// boundaries preserved.
	Content string `json:"content"`

	// TypeHints lists the item types the caller wants (e.g. "multiple-choice").
	TypeHints []string `json:"type_hints,omitempty"`

	// DesiredCount is the number of items requested. Zero lets the service decide.
	DesiredCount int `json:"desired_count,omitempty"`
}

// Result is a successful generation response.
type Result struct {
	Items []Item `json:"items"`
}

// Item is one produced result. Data is kept opaque; the orchestrator only
// tags items with their batch of origin.
type Item struct {
	Type    string          `json:"type,omitempty"`
	Data    json.RawMessage `json:"data"`
	BatchID int             `json:"batch_id,omitempty"`
	Range   string          `json:"range,omitempty"`
}

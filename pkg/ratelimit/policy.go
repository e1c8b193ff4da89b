// Package ratelimit implements admission control for a remote generation service
// that enforces requests-per-minute and requests-per-day quotas.
//
// A Limiter owns a FIFO queue of tickets and releases them one at a time, never
// faster than the selected Policy allows. All quota state (rolling window,
// daily counter, backoff) lives inside the Limiter.
package ratelimit

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultModel is the policy table entry used for unknown model identifiers.
const DefaultModel = "default"

// SafetyMargin stretches the per-request delay derived from RequestsPerMinute.
const SafetyMargin = 1.1

// Policy describes the quota of a single remote model. It is immutable once selected.
type Policy struct {
	// RequestsPerMinute is the RPM quota. Must be positive.
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`

	// TokensPerMinute is the TPM quota (informational, not enforced by the queue).
	TokensPerMinute int `yaml:"tokens_per_minute" json:"tokens_per_minute"`

	// RequestsPerDay is the RPD quota. Zero disables the daily check.
	RequestsPerDay int `yaml:"requests_per_day" json:"requests_per_day"`

	// ContextWindowTokens is the model's input context size.
	ContextWindowTokens int `yaml:"context_window_tokens" json:"context_window_tokens"`
}

// MinDelay returns the minimum spacing between two dequeues:
// (60000 / RequestsPerMinute) * 1.1 milliseconds.
func (p Policy) MinDelay() time.Duration {
	if p.RequestsPerMinute <= 0 {
		return 0
	}
	ms := 60000.0 / float64(p.RequestsPerMinute) * SafetyMargin
	return time.Duration(math.Round(ms * float64(time.Millisecond)))
}

// Validate reports whether the policy can drive a Limiter.
func (p Policy) Validate() error {
	if p.RequestsPerMinute <= 0 {
		return fmt.Errorf("requests_per_minute must be > 0 (got %d)", p.RequestsPerMinute)
	}
	if p.RequestsPerDay < 0 {
		return fmt.Errorf("requests_per_day must be >= 0 (got %d)", p.RequestsPerDay)
	}
	return nil
}

// DefaultPolicies is the built-in policy table (free-tier quotas).
var DefaultPolicies = map[string]Policy{
	"gemini-2.5-pro":        {RequestsPerMinute: 5, TokensPerMinute: 250000, RequestsPerDay: 100, ContextWindowTokens: 1048576},
	"gemini-2.5-flash":      {RequestsPerMinute: 10, TokensPerMinute: 250000, RequestsPerDay: 250, ContextWindowTokens: 1048576},
	"gemini-2.5-flash-lite": {RequestsPerMinute: 15, TokensPerMinute: 250000, RequestsPerDay: 1000, ContextWindowTokens: 1048576},
	"gemini-2.0-flash":      {RequestsPerMinute: 15, TokensPerMinute: 1000000, RequestsPerDay: 200, ContextWindowTokens: 1048576},
	"gemini-2.0-flash-lite": {RequestsPerMinute: 30, TokensPerMinute: 1000000, RequestsPerDay: 200, ContextWindowTokens: 1048576},
	DefaultModel:            {RequestsPerMinute: 5, TokensPerMinute: 125000, RequestsPerDay: 100, ContextWindowTokens: 32768},
}

// PolicyTable maps model identifiers to policies.
type PolicyTable map[string]Policy

// NewPolicyTable returns a copy of DefaultPolicies.
func NewPolicyTable() PolicyTable {
	t := make(PolicyTable, len(DefaultPolicies))
	for k, v := range DefaultPolicies {
		t[k] = v
	}
	return t
}

// Lookup returns the policy for model. Unknown models fall back to the
// DefaultModel entry; ok reports whether model itself was found.
func (t PolicyTable) Lookup(model string) (policy Policy, ok bool) {
	key := strings.ToLower(strings.TrimSpace(model))
	if p, found := t[key]; found {
		return p, true
	}
	if p, found := t[DefaultModel]; found {
		return p, false
	}
	return DefaultPolicies[DefaultModel], false
}

// PolicyFor looks model up in DefaultPolicies.
func PolicyFor(model string) (Policy, bool) {
	return PolicyTable(DefaultPolicies).Lookup(model)
}

// policyFile is the YAML layout accepted by LoadPolicies.
//
//	models:
//	  gemini-2.5-flash:
//	    requests_per_minute: 10
//	    requests_per_day: 250
type policyFile struct {
	Models map[string]Policy `yaml:"models"`
}

// LoadPolicies reads a YAML override file and merges it over the defaults.
func LoadPolicies(r io.Reader) (PolicyTable, error) {
	var f policyFile
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode policy file: %w", err)
	}

	table := NewPolicyTable()
	for model, p := range f.Models {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("policy %q: %w", model, err)
		}
		table[strings.ToLower(strings.TrimSpace(model))] = p
	}
	return table, nil
}

package ratelimit

import (
	"strings"
	"testing"
	"time"
)

func TestPolicy_MinDelay(t *testing.T) {
	tests := []struct {
		name string
		rpm  int
		want time.Duration
	}{
		{name: "two per minute", rpm: 2, want: 33 * time.Second},
		{name: "ten per minute", rpm: 10, want: 6600 * time.Millisecond},
		{name: "sixty per minute", rpm: 60, want: 1100 * time.Millisecond},
		{name: "disabled", rpm: 0, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Policy{RequestsPerMinute: tt.rpm}
			if got := p.MinDelay(); got != tt.want {
				t.Errorf("MinDelay() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPolicy_Validate(t *testing.T) {
	if err := (Policy{RequestsPerMinute: 0}).Validate(); err == nil {
		t.Error("expected error for zero RPM")
	}
	if err := (Policy{RequestsPerMinute: 5, RequestsPerDay: -1}).Validate(); err == nil {
		t.Error("expected error for negative RPD")
	}
	if err := (Policy{RequestsPerMinute: 5, RequestsPerDay: 100}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestPolicyFor(t *testing.T) {
	p, ok := PolicyFor("gemini-2.5-flash")
	if !ok {
		t.Fatal("gemini-2.5-flash should be a known model")
	}
	if p.RequestsPerMinute != 10 || p.RequestsPerDay != 250 {
		t.Errorf("unexpected policy %+v", p)
	}

	p, ok = PolicyFor("  GEMINI-2.5-FLASH ")
	if !ok || p.RequestsPerMinute != 10 {
		t.Errorf("lookup should be case and whitespace insensitive, got %+v ok=%v", p, ok)
	}

	p, ok = PolicyFor("no-such-model")
	if ok {
		t.Error("unknown model should report ok=false")
	}
	if p != DefaultPolicies[DefaultModel] {
		t.Errorf("unknown model should fall back to default, got %+v", p)
	}
}

func TestLoadPolicies(t *testing.T) {
	input := `
models:
  gemini-2.5-flash:
    requests_per_minute: 20
    requests_per_day: 500
  local-model:
    requests_per_minute: 60
`
	table, err := LoadPolicies(strings.NewReader(input))
	if err != nil {
		t.Fatalf("LoadPolicies() error = %v", err)
	}

	if p, _ := table.Lookup("gemini-2.5-flash"); p.RequestsPerMinute != 20 || p.RequestsPerDay != 500 {
		t.Errorf("override not applied: %+v", p)
	}
	if p, ok := table.Lookup("local-model"); !ok || p.RequestsPerMinute != 60 {
		t.Errorf("new model not added: %+v ok=%v", p, ok)
	}
	if _, ok := table.Lookup("gemini-2.5-pro"); !ok {
		t.Error("defaults should be kept")
	}
	if DefaultPolicies["gemini-2.5-flash"].RequestsPerMinute != 10 {
		t.Error("LoadPolicies must not mutate DefaultPolicies")
	}
}

func TestLoadPolicies_Invalid(t *testing.T) {
	input := `
models:
  broken:
    requests_per_minute: 0
`
	if _, err := LoadPolicies(strings.NewReader(input)); err == nil {
		t.Error("expected validation error")
	}
}

func TestLoadPolicies_Empty(t *testing.T) {
	table, err := LoadPolicies(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadPolicies() error = %v", err)
	}
	if len(table) != len(DefaultPolicies) {
		t.Errorf("len = %d, want %d", len(table), len(DefaultPolicies))
	}
}

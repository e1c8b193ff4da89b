package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/FiratKiziltepe/pagebatch/pkg/generation"
)

// ScriptedGenerator is an in-process generation.Generator. Each call pops the
// next scripted step; when the script is empty it returns one item per call.
type ScriptedGenerator struct {
	mu       sync.Mutex
	steps    []func(req generation.Request) (*generation.Result, error)
	requests []generation.Request

	// OnCall runs at the start of every call, outside the lock.
	OnCall func(call int, req generation.Request)
}

// NewScriptedGenerator creates an empty script.
func NewScriptedGenerator() *ScriptedGenerator {
	return &ScriptedGenerator{}
}

// ThenItems scripts a successful call returning n items.
func (g *ScriptedGenerator) ThenItems(n int) *ScriptedGenerator {
	return g.then(func(req generation.Request) (*generation.Result, error) {
		return Items(n), nil
	})
}

// ThenError scripts a failing call.
func (g *ScriptedGenerator) ThenError(err error) *ScriptedGenerator {
	return g.then(func(req generation.Request) (*generation.Result, error) {
		return nil, err
	})
}

func (g *ScriptedGenerator) then(step func(generation.Request) (*generation.Result, error)) *ScriptedGenerator {
	g.mu.Lock()
	g.steps = append(g.steps, step)
	g.mu.Unlock()
	return g
}

// Generate implements generation.Generator.
func (g *ScriptedGenerator) Generate(ctx context.Context, req generation.Request) (*generation.Result, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	call := len(g.requests)
	var step func(generation.Request) (*generation.Result, error)
	if len(g.steps) > 0 {
		step = g.steps[0]
		g.steps = g.steps[1:]
	}
	hook := g.OnCall
	g.mu.Unlock()

	if hook != nil {
		hook(call, req)
	}
	if step == nil {
		return Items(1), nil
	}
	return step(req)
}

// Requests returns every request received so far.
func (g *ScriptedGenerator) Requests() []generation.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]generation.Request(nil), g.requests...)
}

// Items builds a result with n numbered items.
func Items(n int) *generation.Result {
	items := make([]generation.Item, n)
	for i := range items {
		items[i] = generation.Item{
			Type: "note",
			Data: json.RawMessage(fmt.Sprintf(`{"type":"note","n":%d}`, i+1)),
		}
	}
	return &generation.Result{Items: items}
}

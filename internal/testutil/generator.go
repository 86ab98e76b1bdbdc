package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
)

// GeneratorCall records one invocation of the scripted generator.
type GeneratorCall struct {
	System   string
	LastUser string
	Response string
}

// ScriptedGenerator is a deterministic oracle.Generator. It matches the
// last user message against registered substring patterns (first match
// wins) and records every call, so tests can assert the model was invoked
// exactly once per request.
//
// Thread-safe for concurrent use.
type ScriptedGenerator struct {
	mu       sync.Mutex
	rules    []generatorRule
	fallback string
	failErr  error
	calls    []GeneratorCall
}

type generatorRule struct {
	pattern  string
	response string
}

// NewScriptedGenerator creates a generator with the given fallback text.
func NewScriptedGenerator(fallback string) *ScriptedGenerator {
	return &ScriptedGenerator{fallback: fallback}
}

// AddResponse registers a pattern-response pair, matched case-insensitively
// against the last user message.
func (g *ScriptedGenerator) AddResponse(pattern, response string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rules = append(g.rules, generatorRule{
		pattern:  strings.ToLower(pattern),
		response: response,
	})
}

// Fail makes every subsequent Generate call return err.
func (g *ScriptedGenerator) Fail(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failErr = err
}

// Calls returns a copy of all recorded calls.
func (g *ScriptedGenerator) Calls() []GeneratorCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	cp := make([]GeneratorCall, len(g.calls))
	copy(cp, g.calls)
	return cp
}

// CallCount returns how many times Generate was invoked.
func (g *ScriptedGenerator) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// Generate implements oracle.Generator.
func (g *ScriptedGenerator) Generate(_ context.Context, system string, messages []*ai.Message) (string, error) {
	var lastUser string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == ai.RoleUser {
			lastUser = messages[i].Text()
			break
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failErr != nil {
		// Failed invocations count too, so tests can pin the
		// no-retry behavior to exactly one call.
		g.calls = append(g.calls, GeneratorCall{System: system, LastUser: lastUser})
		return "", g.failErr
	}

	response := g.fallback
	lower := strings.ToLower(lastUser)
	for _, rule := range g.rules {
		if strings.Contains(lower, rule.pattern) {
			response = rule.response
			break
		}
	}

	g.calls = append(g.calls, GeneratorCall{
		System:   system,
		LastUser: lastUser,
		Response: response,
	})
	return response, nil
}

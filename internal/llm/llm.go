// Package llm provides the Gemini text generation and embedding clients
// used by the pipeline steps.
//
// Every consumer depends on the small Generator interface rather than the
// concrete client, so pipeline steps are testable with in-memory fakes.
package llm

import "context"

// Generator produces text for a single prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Request describes one generation call. Temperature and MaxTokens are
// per-call because the pipeline steps use different settings: parsing is
// deterministic, treatment synthesis is not.
type Request struct {
	System      string
	Prompt      string
	Temperature float32
	MaxTokens   int
}

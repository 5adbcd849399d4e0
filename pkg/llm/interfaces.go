// Package llm provides clients for the external language-understanding collaborators.
package llm

import (
	"context"
)

// SemanticClient defines the interface for the semantic-analysis collaborator.
// All conversation analysis (reference detection, intent classification) and
// ingestion analysis (entity extraction, entity comparison) goes through this
// interface. Use it for dependency injection to enable mocking in tests.
type SemanticClient interface {
	// GenerateResponse generates a chat completion response.
	GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error)

	// GetModel returns the configured model name.
	GetModel() string

	// GetEndpoint returns the configured endpoint.
	GetEndpoint() string
}

// Synthesizer defines the interface for the answer-synthesis boundary. It
// turns an aggregated result bundle into prose; the core never interprets its
// output beyond relaying it.
type Synthesizer interface {
	Synthesize(ctx context.Context, question string, bundleContext string) (string, error)
}

// Ensure implementations satisfy their interfaces at compile time.
var (
	_ SemanticClient = (*Client)(nil)
	_ Synthesizer    = (*AnthropicSynthesizer)(nil)
)

package llm

import (
	"context"
)

// MockSemanticClient is a configurable mock for testing semantic-analysis calls.
// Set the function fields to control behavior in tests.
type MockSemanticClient struct {
	// GenerateResponseFunc is called when GenerateResponse is invoked.
	// If nil, returns empty string and nil error.
	GenerateResponseFunc func(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error)

	// Model is returned by GetModel. Defaults to "mock-model".
	Model string

	// Endpoint is returned by GetEndpoint. Defaults to "http://mock-endpoint".
	Endpoint string

	// Call tracking for verification
	GenerateResponseCalls int
	// Prompts records every prompt passed to GenerateResponse.
	Prompts []string
}

// NewMockSemanticClient creates a new mock with sensible defaults.
func NewMockSemanticClient() *MockSemanticClient {
	return &MockSemanticClient{
		Model:    "mock-model",
		Endpoint: "http://mock-endpoint",
	}
}

// GenerateResponse implements SemanticClient.
func (m *MockSemanticClient) GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error) {
	m.GenerateResponseCalls++
	m.Prompts = append(m.Prompts, prompt)
	if m.GenerateResponseFunc != nil {
		return m.GenerateResponseFunc(ctx, prompt, systemMessage, temperature)
	}
	return "", nil
}

// GetModel implements SemanticClient.
func (m *MockSemanticClient) GetModel() string {
	if m.Model == "" {
		return "mock-model"
	}
	return m.Model
}

// GetEndpoint implements SemanticClient.
func (m *MockSemanticClient) GetEndpoint() string {
	if m.Endpoint == "" {
		return "http://mock-endpoint"
	}
	return m.Endpoint
}

// Reset clears call tracking counters.
func (m *MockSemanticClient) Reset() {
	m.GenerateResponseCalls = 0
	m.Prompts = nil
}

var _ SemanticClient = (*MockSemanticClient)(nil)

// MockSynthesizer is a configurable mock for the answer-synthesis boundary.
type MockSynthesizer struct {
	SynthesizeFunc  func(ctx context.Context, question string, bundleContext string) (string, error)
	SynthesizeCalls int
}

// Synthesize implements Synthesizer.
func (m *MockSynthesizer) Synthesize(ctx context.Context, question string, bundleContext string) (string, error) {
	m.SynthesizeCalls++
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, question, bundleContext)
	}
	return "mock answer", nil
}

var _ Synthesizer = (*MockSynthesizer)(nil)

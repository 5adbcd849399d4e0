package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"
)

const synthesizerSystemPrompt = `You are an assistant answering questions about enterprise documents.
Answer using ONLY the provided context. Cite the source documents you used.
If the context does not contain the answer, say so plainly. Answer in the
language of the question.`

// SynthesizerConfig holds configuration for the Anthropic answer synthesizer.
type SynthesizerConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
}

// AnthropicSynthesizer turns an aggregated result bundle into a prose answer
// via the Anthropic Messages API. It is a boundary component: callers treat
// its output as opaque text.
type AnthropicSynthesizer struct {
	client    *anthropic.Client
	model     string
	maxTokens int
	logger    *zap.Logger
}

// NewAnthropicSynthesizer creates a new answer synthesizer.
func NewAnthropicSynthesizer(cfg *SynthesizerConfig, logger *zap.Logger) (*AnthropicSynthesizer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	return &AnthropicSynthesizer{
		client:    anthropic.NewClient(cfg.APIKey),
		model:     model,
		maxTokens: maxTokens,
		logger:    logger.Named("synthesizer"),
	}, nil
}

// Synthesize produces a prose answer from the question and bundle context.
func (s *AnthropicSynthesizer) Synthesize(ctx context.Context, question string, bundleContext string) (string, error) {
	prompt := fmt.Sprintf("## Context\n\n%s\n\n## Question\n\n%s", bundleContext, question)

	start := time.Now()

	resp, err := s.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(s.model),
		MaxTokens: s.maxTokens,
		System:    synthesizerSystemPrompt,
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(prompt),
		},
	})
	if err != nil {
		s.logger.Error("synthesis request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", ClassifyError(err)
	}

	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			s.logger.Info("synthesis completed",
				zap.Int("input_tokens", resp.Usage.InputTokens),
				zap.Int("output_tokens", resp.Usage.OutputTokens),
				zap.Duration("elapsed", time.Since(start)))
			return *block.Text, nil
		}
	}

	return "", fmt.Errorf("no text content in response")
}

// UnavailableSynthesizer always fails, for deployments without a synthesis
// API key. Callers fall back to their deterministic answer paths.
type UnavailableSynthesizer struct{}

// Synthesize implements Synthesizer.
func (UnavailableSynthesizer) Synthesize(ctx context.Context, question string, bundleContext string) (string, error) {
	return "", fmt.Errorf("synthesizer not configured")
}

var _ Synthesizer = UnavailableSynthesizer{}

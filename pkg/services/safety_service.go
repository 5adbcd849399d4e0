package services

import (
	"context"
	"fmt"
	"regexp"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/veridoc-inc/veridoc-engine/pkg/logging"
	"github.com/veridoc-inc/veridoc-engine/pkg/repositories"
)

// fallbackSafetyPatterns screen questions when no persisted rules load.
// The screen must never run empty, so these compile at init and back every
// snapshot that would otherwise have zero rules.
var fallbackSafetyPatterns = map[string]string{
	"prompt_injection":  `(?i)ignore (all |your |the )?(previous |prior )?(instructions|rules|prompts)`,
	"system_disclosure": `(?i)(reveal|show|print|repeat) (your|the) (system prompt|instructions|rules)`,
	"role_override":     `(?i)you are (now|no longer)\b.*\b(assistant|ai|model)`,
	"credential_fishing": `(?i)(api[ _-]?key|password|secret|token)s? (for|of|to) (the|your) (system|database|admin)`,
}

// compiledRule pairs a rule name with its compiled pattern.
type compiledRule struct {
	name    string
	pattern *regexp.Regexp
}

// SafetyScreen decides whether a question is blocked before any collaborator
// call is made. Screening reads an immutable snapshot, so concurrent requests
// never observe a partially reloaded rule set.
type SafetyScreen interface {
	// Screen returns the name of the first matching rule and true when the
	// question is blocked.
	Screen(question string) (string, bool)

	// Reload replaces the rule snapshot from persisted rules. Invalid
	// patterns are skipped, and a load yielding zero rules falls back to the
	// built-in patterns. Returns the number of active rules in the new
	// snapshot.
	Reload(ctx context.Context) (int, error)
}

type safetyScreen struct {
	repo     repositories.SafetyRuleRepository
	logger   *zap.Logger
	snapshot atomic.Value // []compiledRule
}

// NewSafetyScreen creates a SafetyScreen seeded with the built-in patterns.
// Call Reload to pick up persisted rules.
func NewSafetyScreen(repo repositories.SafetyRuleRepository, logger *zap.Logger) SafetyScreen {
	s := &safetyScreen{
		repo:   repo,
		logger: logger.Named("safety"),
	}
	s.snapshot.Store(compileFallbackRules())
	return s
}

var _ SafetyScreen = (*safetyScreen)(nil)

func (s *safetyScreen) Screen(question string) (string, bool) {
	rules := s.snapshot.Load().([]compiledRule)
	for _, rule := range rules {
		if rule.pattern.MatchString(question) {
			return rule.name, true
		}
	}
	return "", false
}

func (s *safetyScreen) Reload(ctx context.Context) (int, error) {
	persisted, err := s.repo.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("load safety rules: %w", err)
	}

	compiled := make([]compiledRule, 0, len(persisted))
	for _, rule := range persisted {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			s.logger.Warn("Skipping safety rule with invalid pattern",
				zap.String("rule", rule.Name),
				zap.String("error", logging.SanitizeError(err)))
			continue
		}
		compiled = append(compiled, compiledRule{name: rule.Name, pattern: re})
	}

	if len(compiled) == 0 {
		s.logger.Warn("No usable persisted safety rules, keeping built-in patterns",
			zap.Int("persisted", len(persisted)))
		compiled = compileFallbackRules()
	}

	s.snapshot.Store(compiled)
	s.logger.Info("Safety rules reloaded", zap.Int("rules", len(compiled)))
	return len(compiled), nil
}

func compileFallbackRules() []compiledRule {
	rules := make([]compiledRule, 0, len(fallbackSafetyPatterns))
	for name, pattern := range fallbackSafetyPatterns {
		rules = append(rules, compiledRule{name: name, pattern: regexp.MustCompile(pattern)})
	}
	return rules
}

// BlockedRefusal is the fixed answer returned for blocked questions. The
// pipeline never varies it, so blocked turns leak nothing about rule contents.
const BlockedRefusal = "I can't help with that request. Please ask a question about the documents and organizations I have on file."

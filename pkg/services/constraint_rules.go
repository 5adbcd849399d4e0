package services

import (
	"fmt"
	"os"
	"regexp"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ConstraintRuleFile is the on-disk shape of the constraint-answer rules.
// Each rule carries one canned answer returned verbatim when any of its
// patterns matches a question.
type ConstraintRuleFile struct {
	Rules []ConstraintRuleSpec `yaml:"rules"`
}

// ConstraintRuleSpec is one rule as written in YAML.
type ConstraintRuleSpec struct {
	Name     string   `yaml:"name"`
	Patterns []string `yaml:"patterns"`
	Answer   string   `yaml:"answer"`
}

type constraintRule struct {
	name     string
	patterns []*regexp.Regexp
	answer   string
}

// ConstraintRules holds the compiled constraint-answer rule set. Questions
// matching a rule get its canned answer and bypass every other source.
type ConstraintRules struct {
	rules []constraintRule
}

// LoadConstraintRules reads and compiles the rules file. An empty path yields
// an empty, always-missing rule set.
func LoadConstraintRules(path string, logger *zap.Logger) (*ConstraintRules, error) {
	if path == "" {
		return &ConstraintRules{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read constraint rules %s: %w", path, err)
	}

	var file ConstraintRuleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse constraint rules %s: %w", path, err)
	}

	compiled := make([]constraintRule, 0, len(file.Rules))
	for _, spec := range file.Rules {
		if spec.Answer == "" || len(spec.Patterns) == 0 {
			logger.Warn("Skipping constraint rule without patterns or answer",
				zap.String("rule", spec.Name))
			continue
		}
		rule := constraintRule{name: spec.Name, answer: spec.Answer}
		for _, p := range spec.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("constraint rule %q pattern %q: %w", spec.Name, p, err)
			}
			rule.patterns = append(rule.patterns, re)
		}
		compiled = append(compiled, rule)
	}

	logger.Info("Loaded constraint rules", zap.Int("rules", len(compiled)))
	return &ConstraintRules{rules: compiled}, nil
}

// Match returns the canned answer of the first rule matching question.
func (r *ConstraintRules) Match(question string) (string, bool) {
	for _, rule := range r.rules {
		for _, pattern := range rule.patterns {
			if pattern.MatchString(question) {
				return rule.answer, true
			}
		}
	}
	return "", false
}

// Len returns the number of compiled rules.
func (r *ConstraintRules) Len() int {
	return len(r.rules)
}

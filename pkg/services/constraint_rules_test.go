package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadConstraintRules_EmptyPathDisables(t *testing.T) {
	rules, err := LoadConstraintRules("", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 0, rules.Len())

	_, matched := rules.Match("anything at all")
	assert.False(t, matched)
}

func TestLoadConstraintRules_FirstMatchWins(t *testing.T) {
	rules := mustCompileConstraintRules(t, `
rules:
  - name: payroll
    patterns:
      - "(?i)payroll"
    answer: "Ask HR about payroll."
  - name: payroll_detail
    patterns:
      - "(?i)payroll cutoff"
    answer: "The 25th."
`)
	answer, matched := rules.Match("when is the payroll cutoff?")
	assert.True(t, matched)
	assert.Equal(t, "Ask HR about payroll.", answer)
}

func TestLoadConstraintRules_SkipsIncompleteRules(t *testing.T) {
	rules := mustCompileConstraintRules(t, `
rules:
  - name: no_answer
    patterns:
      - "(?i)orphan"
  - name: valid
    patterns:
      - "(?i)vacation carryover"
    answer: "Up to five days carry over."
`)
	assert.Equal(t, 1, rules.Len())
}

func TestLoadConstraintRules_InvalidPatternFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rules:
  - name: broken
    patterns:
      - "([unclosed"
    answer: "never"
`), 0o644))

	_, err := LoadConstraintRules(path, zap.NewNop())
	assert.Error(t, err)
}

func TestLoadConstraintRules_MissingFileFails(t *testing.T) {
	_, err := LoadConstraintRules(filepath.Join(t.TempDir(), "absent.yaml"), zap.NewNop())
	assert.Error(t, err)
}

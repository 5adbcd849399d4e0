package services

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/veridoc-inc/veridoc-engine/pkg/jsonutil"
	"github.com/veridoc-inc/veridoc-engine/pkg/llm"
	"github.com/veridoc-inc/veridoc-engine/pkg/logging"
	"github.com/veridoc-inc/veridoc-engine/pkg/models"
	"github.com/veridoc-inc/veridoc-engine/pkg/prompts"
	"github.com/veridoc-inc/veridoc-engine/pkg/repositories"
)

// defaultIntentConfidence is the confidence recorded when classification
// degrades to the deterministic default.
const defaultIntentConfidence = 30

// intentTemperature keeps classification near-deterministic.
const intentTemperature = 0.1

// IntentClassifier maps a resolved question onto the closed intent vocabulary
// plus routing hints. Blocked questions never reach the collaborator.
type IntentClassifier interface {
	Classify(ctx context.Context, question string, sessionCtx models.SessionContext) (*models.IntentAnalysis, error)
}

type intentClassifier struct {
	client llm.SemanticClient
	safety SafetyScreen
	orgs   repositories.OrganizationRepository
	logger *zap.Logger
}

// NewIntentClassifier creates a new IntentClassifier.
func NewIntentClassifier(client llm.SemanticClient, safety SafetyScreen, orgs repositories.OrganizationRepository, logger *zap.Logger) IntentClassifier {
	return &intentClassifier{
		client: client,
		safety: safety,
		orgs:   orgs,
		logger: logger.Named("intent"),
	}
}

var _ IntentClassifier = (*intentClassifier)(nil)

// intentResponse mirrors the collaborator's JSON output. Confidence is raw
// because models emit it quoted, bare, and on either scale.
type intentResponse struct {
	Intent     string          `json:"intent"`
	Target     string          `json:"target"`
	Company    string          `json:"company"`
	Category   string          `json:"category"`
	Department string          `json:"department"`
	Confidence json.RawMessage `json:"confidence"`
}

var intentFieldPatterns = map[string]*regexp.Regexp{
	"intent":     llm.StringField("intent"),
	"target":     llm.StringField("target"),
	"company":    llm.StringField("company"),
	"confidence": llm.ScalarField("confidence"),
}

func (c *intentClassifier) Classify(ctx context.Context, question string, sessionCtx models.SessionContext) (*models.IntentAnalysis, error) {
	// Safety screening comes first. A blocked question is terminal and the
	// collaborator never sees it.
	if rule, blocked := c.safety.Screen(question); blocked {
		c.logger.Info("Question blocked by safety rule", zap.String("rule", rule))
		return &models.IntentAnalysis{
			Intent:     models.IntentBlocked,
			Target:     models.TargetBoth,
			Confidence: 100,
		}, nil
	}

	prompt := prompts.BuildIntentClassificationPrompt(question, sessionCtx)
	response, err := c.client.GenerateResponse(ctx, prompt, prompts.BuildIntentClassificationSystemMessage(), intentTemperature)
	if err != nil {
		c.logger.Warn("Intent collaborator call failed, applying default",
			zap.String("error", logging.SanitizeError(err)))
		return c.degraded(ctx, question, sessionCtx), nil
	}

	analysis := c.fromOutcome(llm.Parse[intentResponse](response, intentFieldPatterns))
	c.applyDeterministicHints(ctx, question, analysis, sessionCtx)

	c.logger.Debug("Classified intent",
		zap.String("intent", string(analysis.Intent)),
		zap.String("target", string(analysis.Target)),
		zap.Int("confidence", analysis.Confidence),
		zap.Bool("degraded", analysis.Degraded))

	return analysis, nil
}

func (c *intentClassifier) fromOutcome(outcome llm.Outcome[intentResponse]) *models.IntentAnalysis {
	switch outcome.State {
	case llm.StateParsed:
		return sanitizeIntentAnalysis(&models.IntentAnalysis{
			Intent:     models.Intent(strings.TrimSpace(outcome.Value.Intent)),
			Target:     models.Target(strings.TrimSpace(outcome.Value.Target)),
			Company:    strings.TrimSpace(outcome.Value.Company),
			Category:   strings.TrimSpace(outcome.Value.Category),
			Department: strings.TrimSpace(outcome.Value.Department),
			Confidence: jsonutil.NormalizeConfidence100(jsonutil.FlexibleFloatValue(outcome.Value.Confidence)),
		})

	case llm.StatePartial:
		analysis := &models.IntentAnalysis{
			Intent:     models.Intent(outcome.Fields["intent"]),
			Target:     models.Target(outcome.Fields["target"]),
			Company:    outcome.Fields["company"],
			Confidence: jsonutil.NormalizeConfidence100(jsonutil.FlexibleFloatValue(json.RawMessage(outcome.Fields["confidence"]))),
		}
		return sanitizeIntentAnalysis(analysis)

	default:
		c.logger.Warn("Unparseable intent response, applying default",
			zap.String("response", logging.TruncateString(outcome.Raw, 200)))
		return &models.IntentAnalysis{
			Intent:     models.IntentOpenEnded,
			Target:     models.TargetBoth,
			Confidence: defaultIntentConfidence,
			Degraded:   true,
		}
	}
}

// sanitizeIntentAnalysis forces out-of-vocabulary values back onto the closed
// sets. An invalid intent degrades to open_ended; a missing target takes the
// intent's default routing.
func sanitizeIntentAnalysis(a *models.IntentAnalysis) *models.IntentAnalysis {
	if !models.IsValidIntent(a.Intent) || a.Intent == models.IntentBlocked {
		a.Intent = models.IntentOpenEnded
		if a.Confidence > defaultIntentConfidence {
			a.Confidence = defaultIntentConfidence
		}
		a.Degraded = true
	}
	if !models.IsValidTarget(a.Target) {
		a.Target = models.DefaultTargetForIntent(a.Intent)
	}
	return a
}

// degraded builds the default analysis used when the collaborator is
// unreachable, still running the deterministic hint pass.
func (c *intentClassifier) degraded(ctx context.Context, question string, sessionCtx models.SessionContext) *models.IntentAnalysis {
	analysis := &models.IntentAnalysis{
		Intent:     models.IntentOpenEnded,
		Target:     models.TargetBoth,
		Confidence: defaultIntentConfidence,
		Degraded:   true,
	}
	c.applyDeterministicHints(ctx, question, analysis, sessionCtx)
	return analysis
}

// applyDeterministicHints fills missing routing hints by matching known
// organization codes, names, and aliases against the question. Collaborator
// hints always win; this only fills blanks. Lookup failures leave the hints
// empty rather than failing the turn.
func (c *intentClassifier) applyDeterministicHints(ctx context.Context, question string, analysis *models.IntentAnalysis, sessionCtx models.SessionContext) {
	if analysis.Company == "" {
		orgs, err := c.orgs.List(ctx)
		if err != nil {
			c.logger.Warn("Organization hint lookup failed",
				zap.String("error", logging.SanitizeError(err)))
		} else if code := matchOrganization(question, orgs); code != "" {
			analysis.Company = code
		}
	}

	// A follow-up that names no organization stays on the one under discussion.
	if analysis.Company == "" && sessionCtx.Organization != "" {
		analysis.Company = sessionCtx.Organization
	}
}

// matchOrganization returns the code of the first organization whose code,
// name, or alias appears in the question as a whole word.
func matchOrganization(question string, orgs []models.Organization) string {
	lower := strings.ToLower(question)
	for _, org := range orgs {
		labels := append([]string{org.Code, org.Name}, org.Aliases...)
		for _, label := range labels {
			if label == "" {
				continue
			}
			if containsWord(lower, strings.ToLower(label)) {
				return org.Code
			}
		}
	}
	return ""
}

func containsWord(haystack, needle string) bool {
	idx := strings.Index(haystack, needle)
	for idx >= 0 {
		before := idx == 0 || !isWordByte(haystack[idx-1])
		afterIdx := idx + len(needle)
		after := afterIdx >= len(haystack) || !isWordByte(haystack[afterIdx])
		if before && after {
			return true
		}
		next := strings.Index(haystack[idx+1:], needle)
		if next < 0 {
			return false
		}
		idx = idx + 1 + next
	}
	return false
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

package services

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/veridoc-inc/veridoc-engine/pkg/apperrors"
	"github.com/veridoc-inc/veridoc-engine/pkg/jsonutil"
	"github.com/veridoc-inc/veridoc-engine/pkg/llm"
	"github.com/veridoc-inc/veridoc-engine/pkg/logging"
	"github.com/veridoc-inc/veridoc-engine/pkg/models"
	"github.com/veridoc-inc/veridoc-engine/pkg/prompts"
)

// minTranscriptForReference is the transcript length below which a question
// cannot refer back: with fewer than two prior messages there is no completed
// exchange to refer to.
const minTranscriptForReference = 2

// referenceTemperature keeps reference analysis near-deterministic.
const referenceTemperature = 0.1

// deterministicReferenceConfidence is recorded when an ordinal or direct
// marker resolves without the collaborator.
const deterministicReferenceConfidence = 95

// shortQuestionTokenLimit is the question length, in whitespace tokens, at or
// below which a follow-up is treated as leaning on the previous answer's
// items. "how much salary?" carries no marker word but still refers back.
const shortQuestionTokenLimit = 5

// ReferenceResolver rewrites questions that refer to prior turns into
// standalone questions.
type ReferenceResolver interface {
	// Resolve analyzes question against the transcript window and the items
	// the last answer surfaced. Returns ErrReferenceUnresolved when a
	// reference is present but no shown item can satisfy it.
	Resolve(ctx context.Context, question string, sessionCtx models.SessionContext, transcript []*models.Message) (*models.ReferenceAnalysis, error)
}

type referenceResolver struct {
	client llm.SemanticClient
	logger *zap.Logger
}

// NewReferenceResolver creates a new ReferenceResolver.
func NewReferenceResolver(client llm.SemanticClient, logger *zap.Logger) ReferenceResolver {
	return &referenceResolver{
		client: client,
		logger: logger.Named("reference"),
	}
}

var _ ReferenceResolver = (*referenceResolver)(nil)

// ordinalWords maps ordinal marker words to 0-based indexes into the
// last-shown item list.
var ordinalWords = map[string]int{
	"first":  0,
	"second": 1,
	"third":  2,
	"fourth": 3,
	"fifth":  4,
}

var (
	ordinalMarkerPattern = regexp.MustCompile(`(?i)\bthe\s+(first|second|third|fourth|fifth|last)\s+(one|item|document|entry|result)\b`)
	directMarkerPattern  = regexp.MustCompile(`(?i)\b(that|this)\s+(one|document|policy|report|entry|item|organization|company|department)\b|\bit\b`)
)

// referenceResponse mirrors the collaborator's JSON output.
type referenceResponse struct {
	HasReference     bool            `json:"has_reference"`
	ReferenceType    string          `json:"reference_type"`
	Confidence       json.RawMessage `json:"confidence"`
	ResolvedQuestion string          `json:"resolved_question"`
	Explanation      string          `json:"explanation"`
}

var referenceFieldPatterns = map[string]*regexp.Regexp{
	"has_reference":     llm.ScalarField("has_reference"),
	"reference_type":    llm.StringField("reference_type"),
	"resolved_question": llm.StringField("resolved_question"),
	"confidence":        llm.ScalarField("confidence"),
}

func (r *referenceResolver) Resolve(ctx context.Context, question string, sessionCtx models.SessionContext, transcript []*models.Message) (*models.ReferenceAnalysis, error) {
	if len(transcript) < minTranscriptForReference {
		return passthrough(question), nil
	}

	lastShown := sessionCtx.LastShownItems

	// The collaborator call starts immediately; the deterministic marker scan
	// runs while it is in flight and wins outright when unambiguous.
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type llmResult struct {
		response string
		err      error
	}
	resultCh := make(chan llmResult, 1)
	go func() {
		prompt := prompts.BuildReferenceAnalysisPrompt(question, transcript, lastShown)
		response, err := r.client.GenerateResponse(callCtx, prompt, prompts.BuildReferenceAnalysisSystemMessage(), referenceTemperature)
		resultCh <- llmResult{response: response, err: err}
	}()

	if det := resolveDeterministic(question, lastShown); det != nil {
		cancel()
		r.logger.Debug("Reference resolved deterministically",
			zap.String("resolved", det.ResolvedQuestion))
		return det, nil
	}

	result := <-resultCh
	if result.err != nil {
		r.logger.Warn("Reference collaborator call failed",
			zap.String("error", logging.SanitizeError(result.err)))
		// Without the collaborator a bare marker cannot be resolved.
		if hasReferenceMarker(question, lastShown) {
			return nil, apperrors.ErrReferenceUnresolved
		}
		return passthrough(question), nil
	}

	return r.fromOutcome(question, lastShown, llm.Parse[referenceResponse](result.response, referenceFieldPatterns))
}

func (r *referenceResolver) fromOutcome(question string, lastShown []models.RelevantItem, outcome llm.Outcome[referenceResponse]) (*models.ReferenceAnalysis, error) {
	switch outcome.State {
	case llm.StateParsed:
		v := outcome.Value
		if !v.HasReference {
			return passthrough(question), nil
		}
		analysis := &models.ReferenceAnalysis{
			HasReference:     true,
			ReferenceType:    sanitizeReferenceType(v.ReferenceType),
			Confidence:       jsonutil.NormalizeConfidence100(jsonutil.FlexibleFloatValue(v.Confidence)),
			ResolvedQuestion: strings.TrimSpace(v.ResolvedQuestion),
			Explanation:      v.Explanation,
		}
		return r.finishResolution(question, lastShown, analysis)

	case llm.StatePartial:
		hasRef := outcome.Fields["has_reference"] == "true"
		if !hasRef {
			return passthrough(question), nil
		}
		analysis := &models.ReferenceAnalysis{
			HasReference:     true,
			ReferenceType:    sanitizeReferenceType(outcome.Fields["reference_type"]),
			Confidence:       jsonutil.NormalizeConfidence100(jsonutil.FlexibleFloatValue(json.RawMessage(outcome.Fields["confidence"]))),
			ResolvedQuestion: strings.TrimSpace(outcome.Fields["resolved_question"]),
		}
		return r.finishResolution(question, lastShown, analysis)

	default:
		r.logger.Warn("Unparseable reference response, passing question through",
			zap.String("response", logging.TruncateString(outcome.Raw, 200)))
		if hasReferenceMarker(question, lastShown) {
			return nil, apperrors.ErrReferenceUnresolved
		}
		return passthrough(question), nil
	}
}

// finishResolution fills an empty rewrite when exactly one shown item can
// satisfy the reference, attaches referenced items, and reports
// ErrReferenceUnresolved when nothing can.
func (r *referenceResolver) finishResolution(question string, lastShown []models.RelevantItem, analysis *models.ReferenceAnalysis) (*models.ReferenceAnalysis, error) {
	if analysis.ResolvedQuestion == "" {
		if len(lastShown) == 1 {
			analysis.ResolvedQuestion = injectTitle(question, lastShown[0].Title)
			analysis.ReferencedItems = []models.RelevantItem{lastShown[0]}
			return analysis, nil
		}
		return nil, apperrors.ErrReferenceUnresolved
	}

	analysis.ReferencedItems = matchItemsByTitle(analysis.ResolvedQuestion, lastShown)
	return analysis, nil
}

// resolveDeterministic handles the unambiguous marker cases without the
// collaborator: an ordinal into the shown-item list, or a direct marker when
// exactly one item was shown. Returns nil when the collaborator should decide.
func resolveDeterministic(question string, lastShown []models.RelevantItem) *models.ReferenceAnalysis {
	if len(lastShown) == 0 {
		return nil
	}

	if m := ordinalMarkerPattern.FindStringSubmatch(question); m != nil {
		word := strings.ToLower(m[1])
		idx, ok := ordinalWords[word]
		if word == "last" {
			idx, ok = len(lastShown)-1, true
		}
		if !ok || idx >= len(lastShown) {
			return nil
		}
		item := lastShown[idx]
		return &models.ReferenceAnalysis{
			HasReference:     true,
			ReferenceType:    models.ReferenceDirect,
			Confidence:       deterministicReferenceConfidence,
			ResolvedQuestion: ordinalMarkerPattern.ReplaceAllString(question, item.Title),
			ReferencedItems:  []models.RelevantItem{item},
			Explanation:      "ordinal marker resolved against the last shown items",
		}
	}

	if len(lastShown) == 1 && directMarkerPattern.MatchString(question) {
		item := lastShown[0]
		return &models.ReferenceAnalysis{
			HasReference:     true,
			ReferenceType:    models.ReferenceDirect,
			Confidence:       deterministicReferenceConfidence,
			ResolvedQuestion: injectTitle(question, item.Title),
			ReferencedItems:  []models.RelevantItem{item},
			Explanation:      "direct marker with a single shown item",
		}
	}

	if len(lastShown) == 1 && isShortQuestion(question) {
		item := lastShown[0]
		return &models.ReferenceAnalysis{
			HasReference:     true,
			ReferenceType:    models.ReferenceIndirect,
			Confidence:       deterministicReferenceConfidence,
			ResolvedQuestion: injectTitle(question, item.Title),
			ReferencedItems:  []models.RelevantItem{item},
			Explanation:      "short follow-up with a single shown item",
		}
	}

	return nil
}

// isShortQuestion reports whether question is terse enough to count as a
// follow-up on its own.
func isShortQuestion(question string) bool {
	return len(strings.Fields(question)) <= shortQuestionTokenLimit
}

func passthrough(question string) *models.ReferenceAnalysis {
	return &models.ReferenceAnalysis{
		HasReference:     false,
		ReferenceType:    models.ReferenceNone,
		Confidence:       100,
		ResolvedQuestion: question,
	}
}

func sanitizeReferenceType(raw string) models.ReferenceType {
	switch models.ReferenceType(strings.ToLower(strings.TrimSpace(raw))) {
	case models.ReferenceDirect:
		return models.ReferenceDirect
	case models.ReferenceIndirect:
		return models.ReferenceIndirect
	default:
		return models.ReferenceIndirect
	}
}

// hasReferenceMarker reports whether question carries a back-reference signal:
// an ordinal or direct marker phrase, or a short question asked while items
// from the previous answer are on the table.
func hasReferenceMarker(question string, lastShown []models.RelevantItem) bool {
	if ordinalMarkerPattern.MatchString(question) || directMarkerPattern.MatchString(question) {
		return true
	}
	return len(lastShown) > 0 && isShortQuestion(question)
}

// injectTitle substitutes the first marker phrase with title, falling back to
// appending a clarifying clause when no marker is present.
func injectTitle(question, title string) string {
	if loc := directMarkerPattern.FindStringIndex(question); loc != nil {
		return question[:loc[0]] + title + question[loc[1]:]
	}
	return strings.TrimRight(question, "? ") + " (regarding " + title + ")?"
}

// matchItemsByTitle returns the shown items whose titles appear in the
// resolved question.
func matchItemsByTitle(resolved string, lastShown []models.RelevantItem) []models.RelevantItem {
	lower := strings.ToLower(resolved)
	var matched []models.RelevantItem
	for _, item := range lastShown {
		if item.Title == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(item.Title)) {
			matched = append(matched, item)
		}
	}
	return matched
}

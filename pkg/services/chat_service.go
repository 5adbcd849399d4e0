package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veridoc-inc/veridoc-engine/pkg/apperrors"
	"github.com/veridoc-inc/veridoc-engine/pkg/llm"
	"github.com/veridoc-inc/veridoc-engine/pkg/logging"
	"github.com/veridoc-inc/veridoc-engine/pkg/models"
)

// ClarificationAnswer is returned when a question refers to prior turns but no
// shown item can satisfy the reference.
const ClarificationAnswer = "I'm not sure which item you're referring to. Could you name the document or topic directly?"

// NoDataAnswer is returned when every selected source came back empty.
const NoDataAnswer = "I couldn't find anything matching that in the documents and knowledge I have on file."

// ChatResult is the outcome of one conversation turn.
type ChatResult struct {
	SessionID  uuid.UUID              `json:"session_id"`
	NewSession bool                   `json:"new_session"`
	Answer     string                 `json:"answer"`
	Metadata   models.MessageMetadata `json:"metadata"`
}

// ChatService orchestrates one conversation turn: session resolution,
// reference resolution, safety-screened intent classification, aggregation,
// and answer synthesis. Every turn, blocked or degraded, lands in the
// transcript.
type ChatService interface {
	Ask(ctx context.Context, sessionID *uuid.UUID, userID *string, question string) (*ChatResult, error)
}

type chatService struct {
	sessions    SessionService
	references  ReferenceResolver
	intents     IntentClassifier
	aggregator  DataAggregator
	synthesizer llm.Synthesizer
	logger      *zap.Logger
}

// NewChatService creates a new ChatService.
func NewChatService(
	sessions SessionService,
	references ReferenceResolver,
	intents IntentClassifier,
	aggregator DataAggregator,
	synthesizer llm.Synthesizer,
	logger *zap.Logger,
) ChatService {
	return &chatService{
		sessions:    sessions,
		references:  references,
		intents:     intents,
		aggregator:  aggregator,
		synthesizer: synthesizer,
		logger:      logger.Named("chat"),
	}
}

var _ ChatService = (*chatService)(nil)

func (s *chatService) Ask(ctx context.Context, sessionID *uuid.UUID, userID *string, question string) (*ChatResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question must not be empty")
	}

	session, fresh, err := s.sessions.Resolve(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	logger := s.logger.With(zap.String("session_id", session.ID.String()))

	transcript, err := s.sessions.Window(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	reference, err := s.references.Resolve(ctx, question, session.Context, transcript)
	if errors.Is(err, apperrors.ErrReferenceUnresolved) {
		logger.Info("Reference unresolved, asking for clarification")
		metadata := models.MessageMetadata{Degraded: true}
		return s.record(ctx, session, fresh, question, ClarificationAnswer, nil, metadata)
	}
	if err != nil {
		return nil, err
	}

	resolvedQuestion := reference.ResolvedQuestion
	analysis, err := s.intents.Classify(ctx, resolvedQuestion, session.Context)
	if err != nil {
		return nil, err
	}

	metadata := models.MessageMetadata{
		Intent:           analysis.Intent,
		IntentConfidence: analysis.Confidence,
		Degraded:         analysis.Degraded,
	}
	if reference.HasReference {
		metadata.ResolvedQuestion = resolvedQuestion
		metadata.ReferenceConfidence = reference.Confidence
	}

	// A blocked question is terminal: fixed refusal, no aggregation, no
	// synthesis, still recorded.
	if analysis.Intent == models.IntentBlocked {
		metadata.Blocked = true
		return s.record(ctx, session, fresh, question, BlockedRefusal, nil, metadata)
	}

	bundle, err := s.aggregator.Aggregate(ctx, resolvedQuestion, analysis)
	if err != nil {
		return nil, err
	}
	metadata.Sources = bundle.Sources
	metadata.PartialSources = bundle.Partial

	answer := s.synthesize(ctx, resolvedQuestion, bundle, &metadata, logger)

	// An abandoned caller only loses the response: the turn and its context
	// still persist so the next request benefits.
	ctx = context.WithoutCancel(ctx)

	delta := models.SessionContext{
		LastShownItems: bundle.RelevantItems(),
		LastIntent:     analysis.Intent,
		LastQuestion:   question,
		Organization:   analysis.Company,
	}
	if err := s.sessions.MergeContext(ctx, session, delta); err != nil {
		logger.Warn("Session context update failed",
			zap.String("error", logging.SanitizeError(err)))
	}

	return s.record(ctx, session, fresh, question, answer, bundle.RelevantItems(), metadata)
}

// synthesize produces the prose answer for a bundle. Constraint answers and
// empty bundles bypass the synthesizer; a synthesizer failure degrades to a
// deterministic listing.
func (s *chatService) synthesize(ctx context.Context, question string, bundle *models.Bundle, metadata *models.MessageMetadata, logger *zap.Logger) string {
	if bundle.ConstraintAnswer != "" {
		return bundle.ConstraintAnswer
	}
	if bundle.IsEmpty() {
		return NoDataAnswer
	}

	answer, err := s.synthesizer.Synthesize(ctx, question, FormatBundleContext(bundle))
	if err != nil || strings.TrimSpace(answer) == "" {
		if err != nil {
			logger.Warn("Synthesizer failed, falling back to listing",
				zap.String("error", logging.SanitizeError(err)))
		}
		metadata.Degraded = true
		return fallbackAnswer(bundle)
	}
	return answer
}

// FormatBundleContext renders a bundle as the plain-text context block handed
// to the synthesizer.
func FormatBundleContext(bundle *models.Bundle) string {
	var b strings.Builder

	if len(bundle.Documents) > 0 {
		b.WriteString("Documents:\n")
		for _, d := range bundle.Documents {
			fmt.Fprintf(&b, "- %s", d.Title)
			if d.Category != "" {
				fmt.Fprintf(&b, " [%s]", d.Category)
			}
			b.WriteString("\n")
			content := d.EffectiveContent()
			if content != "" {
				fmt.Fprintf(&b, "  %s\n", logging.TruncateString(content, 600))
			}
		}
		b.WriteString("\n")
	}

	if len(bundle.KnowledgeEntries) > 0 {
		b.WriteString("Knowledge:\n")
		for _, k := range bundle.KnowledgeEntries {
			fmt.Fprintf(&b, "- %s: %s\n", k.Title, logging.TruncateString(k.Content, 600))
		}
		b.WriteString("\n")
	}

	if bundle.OrganizationInfo != nil {
		org := bundle.OrganizationInfo
		fmt.Fprintf(&b, "Organization: %s (code %s)\n", org.Name, org.Code)
		if len(org.Aliases) > 0 {
			fmt.Fprintf(&b, "Also known as: %s\n", strings.Join(org.Aliases, ", "))
		}
		b.WriteString("\n")
	}

	if bundle.DepartmentInfo != nil {
		fmt.Fprintf(&b, "Department: %s\n\n", bundle.DepartmentInfo.Name)
	}

	if bundle.Partial {
		b.WriteString("Note: some sources were unavailable, so this context may be incomplete.\n")
	}

	return b.String()
}

// fallbackAnswer lists what was found when the synthesizer cannot produce
// prose.
func fallbackAnswer(bundle *models.Bundle) string {
	items := bundle.RelevantItems()
	if len(items) == 0 {
		return NoDataAnswer
	}
	var b strings.Builder
	b.WriteString("Here is what I found:\n")
	for _, item := range items {
		fmt.Fprintf(&b, "- %s (%s)\n", item.Title, item.Type)
	}
	return b.String()
}

// record appends the question and answer to the transcript and assembles the
// turn result. The answer carries the turn metadata; the question carries only
// its text.
func (s *chatService) record(ctx context.Context, session *models.Session, fresh bool, question, answer string, items []models.RelevantItem, metadata models.MessageMetadata) (*ChatResult, error) {
	questionMsg := &models.Message{
		SessionID: session.ID,
		Role:      models.RoleQuestion,
		Content:   question,
	}
	if err := s.sessions.Append(ctx, questionMsg); err != nil {
		return nil, fmt.Errorf("record question: %w", err)
	}

	answerMsg := &models.Message{
		SessionID:     session.ID,
		Role:          models.RoleAnswer,
		Content:       answer,
		RelevantItems: items,
		Metadata:      metadata,
	}
	if err := s.sessions.Append(ctx, answerMsg); err != nil {
		return nil, fmt.Errorf("record answer: %w", err)
	}

	return &ChatResult{
		SessionID:  session.ID,
		NewSession: fresh,
		Answer:     answer,
		Metadata:   metadata,
	}, nil
}

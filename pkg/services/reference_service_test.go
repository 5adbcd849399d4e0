package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veridoc-inc/veridoc-engine/pkg/apperrors"
	"github.com/veridoc-inc/veridoc-engine/pkg/llm"
	"github.com/veridoc-inc/veridoc-engine/pkg/models"
)

func referenceTranscript() []*models.Message {
	return []*models.Message{
		{Role: models.RoleQuestion, Content: "what documents do you have about travel?"},
		{Role: models.RoleAnswer, Content: "I found the Travel Policy and the Expense Guide."},
	}
}

func shownItems(titles ...string) []models.RelevantItem {
	items := make([]models.RelevantItem, 0, len(titles))
	for _, title := range titles {
		items = append(items, models.RelevantItem{Type: "document", ID: uuid.New(), Title: title})
	}
	return items
}

func TestReferenceResolver_ShortTranscriptPassesThrough(t *testing.T) {
	client := llm.NewMockSemanticClient()
	resolver := NewReferenceResolver(client, zap.NewNop())

	transcript := []*models.Message{
		{Role: models.RoleQuestion, Content: "hello"},
	}
	analysis, err := resolver.Resolve(context.Background(), "what about that one?", models.SessionContext{}, transcript)
	require.NoError(t, err)
	assert.False(t, analysis.HasReference)
	assert.Equal(t, models.ReferenceNone, analysis.ReferenceType)
	assert.Equal(t, "what about that one?", analysis.ResolvedQuestion)
	assert.Equal(t, 0, client.GenerateResponseCalls, "short transcripts skip the collaborator")
}

func TestReferenceResolver_OrdinalResolvesDeterministically(t *testing.T) {
	client := llm.NewMockSemanticClient()
	resolver := NewReferenceResolver(client, zap.NewNop())

	sessionCtx := models.SessionContext{LastShownItems: shownItems("Travel Policy", "Expense Guide")}
	analysis, err := resolver.Resolve(context.Background(), "who wrote the second one?", sessionCtx, referenceTranscript())
	require.NoError(t, err)
	assert.True(t, analysis.HasReference)
	assert.Equal(t, models.ReferenceDirect, analysis.ReferenceType)
	assert.Equal(t, "who wrote Expense Guide?", analysis.ResolvedQuestion)
	require.Len(t, analysis.ReferencedItems, 1)
	assert.Equal(t, "Expense Guide", analysis.ReferencedItems[0].Title)
}

func TestReferenceResolver_LastOrdinal(t *testing.T) {
	resolver := NewReferenceResolver(llm.NewMockSemanticClient(), zap.NewNop())

	sessionCtx := models.SessionContext{LastShownItems: shownItems("A", "B", "C")}
	analysis, err := resolver.Resolve(context.Background(), "show me the last one", sessionCtx, referenceTranscript())
	require.NoError(t, err)
	assert.Equal(t, "show me C", analysis.ResolvedQuestion)
}

func TestReferenceResolver_DirectMarkerSingleItem(t *testing.T) {
	client := llm.NewMockSemanticClient()
	resolver := NewReferenceResolver(client, zap.NewNop())

	sessionCtx := models.SessionContext{LastShownItems: shownItems("Travel Policy")}
	analysis, err := resolver.Resolve(context.Background(), "who approved that document?", sessionCtx, referenceTranscript())
	require.NoError(t, err)
	assert.True(t, analysis.HasReference)
	assert.Equal(t, "who approved Travel Policy?", analysis.ResolvedQuestion)
}

func TestReferenceResolver_ShortQuestionResolvesAgainstSingleItem(t *testing.T) {
	client := llm.NewMockSemanticClient()
	client.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (string, error) {
		return `{"has_reference": false, "reference_type": "none", "confidence": 90, "resolved_question": ""}`, nil
	}
	resolver := NewReferenceResolver(client, zap.NewNop())

	// A terse follow-up has no marker word, and the collaborator misses the
	// reference; the scanner still pins it to the single shown item.
	sessionCtx := models.SessionContext{LastShownItems: shownItems("Compensation Policy")}
	analysis, err := resolver.Resolve(context.Background(), "how much salary?", sessionCtx, referenceTranscript())
	require.NoError(t, err)
	assert.True(t, analysis.HasReference)
	assert.Equal(t, models.ReferenceIndirect, analysis.ReferenceType)
	assert.Contains(t, analysis.ResolvedQuestion, "Compensation Policy")
	require.Len(t, analysis.ReferencedItems, 1)
}

func TestReferenceResolver_ShortQuestionWithoutShownItemsPassesThrough(t *testing.T) {
	client := llm.NewMockSemanticClient()
	client.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (string, error) {
		return `{"has_reference": false, "reference_type": "none", "confidence": 90, "resolved_question": ""}`, nil
	}
	resolver := NewReferenceResolver(client, zap.NewNop())

	analysis, err := resolver.Resolve(context.Background(), "how much salary?", models.SessionContext{}, referenceTranscript())
	require.NoError(t, err)
	assert.False(t, analysis.HasReference)
	assert.Equal(t, "how much salary?", analysis.ResolvedQuestion)
}

func TestReferenceResolver_CollaboratorDecidesAmbiguousMarker(t *testing.T) {
	client := llm.NewMockSemanticClient()
	client.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (string, error) {
		return `{"has_reference": true, "reference_type": "direct", "confidence": 88, "resolved_question": "Who approved the Expense Guide?"}`, nil
	}
	resolver := NewReferenceResolver(client, zap.NewNop())

	// Two items shown, so a direct marker is ambiguous for the scanner.
	sessionCtx := models.SessionContext{LastShownItems: shownItems("Travel Policy", "Expense Guide")}
	analysis, err := resolver.Resolve(context.Background(), "who approved that document?", sessionCtx, referenceTranscript())
	require.NoError(t, err)
	assert.True(t, analysis.HasReference)
	assert.Equal(t, "Who approved the Expense Guide?", analysis.ResolvedQuestion)
	assert.Equal(t, 88, analysis.Confidence)
	require.Len(t, analysis.ReferencedItems, 1)
	assert.Equal(t, "Expense Guide", analysis.ReferencedItems[0].Title)
}

func TestReferenceResolver_NoReference(t *testing.T) {
	client := llm.NewMockSemanticClient()
	client.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (string, error) {
		return `{"has_reference": false, "reference_type": "none", "confidence": 92, "resolved_question": ""}`, nil
	}
	resolver := NewReferenceResolver(client, zap.NewNop())

	analysis, err := resolver.Resolve(context.Background(), "who is the CEO of PDH?", models.SessionContext{}, referenceTranscript())
	require.NoError(t, err)
	assert.False(t, analysis.HasReference)
	assert.Equal(t, "who is the CEO of PDH?", analysis.ResolvedQuestion)
}

func TestReferenceResolver_ReferenceWithoutCandidate(t *testing.T) {
	client := llm.NewMockSemanticClient()
	client.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (string, error) {
		return `{"has_reference": true, "reference_type": "direct", "confidence": 80, "resolved_question": ""}`, nil
	}
	resolver := NewReferenceResolver(client, zap.NewNop())

	// Nothing was shown, so the reference cannot be satisfied.
	_, err := resolver.Resolve(context.Background(), "tell me more about that one", models.SessionContext{}, referenceTranscript())
	assert.ErrorIs(t, err, apperrors.ErrReferenceUnresolved)
}

func TestReferenceResolver_EmptyRewriteWithSingleCandidate(t *testing.T) {
	client := llm.NewMockSemanticClient()
	client.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (string, error) {
		return `{"has_reference": true, "reference_type": "indirect", "confidence": 70, "resolved_question": ""}`, nil
	}
	resolver := NewReferenceResolver(client, zap.NewNop())

	sessionCtx := models.SessionContext{LastShownItems: shownItems("Travel Policy")}
	analysis, err := resolver.Resolve(context.Background(), "and the approval date?", sessionCtx, referenceTranscript())
	require.NoError(t, err)
	assert.True(t, analysis.HasReference)
	assert.Contains(t, analysis.ResolvedQuestion, "Travel Policy")
	require.Len(t, analysis.ReferencedItems, 1)
}

func TestReferenceResolver_PartialRecovery(t *testing.T) {
	client := llm.NewMockSemanticClient()
	client.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (string, error) {
		return `Sure! {"has_reference": true, "reference_type": "indirect", "resolved_question": "What is the travel budget for marketing?", "confidence": 65,}`, nil
	}
	resolver := NewReferenceResolver(client, zap.NewNop())

	analysis, err := resolver.Resolve(context.Background(), "what about marketing?", models.SessionContext{}, referenceTranscript())
	require.NoError(t, err)
	assert.True(t, analysis.HasReference)
	assert.Equal(t, models.ReferenceIndirect, analysis.ReferenceType)
	assert.Equal(t, "What is the travel budget for marketing?", analysis.ResolvedQuestion)
	assert.Equal(t, 65, analysis.Confidence)
}

func TestReferenceResolver_UnparsedWithoutMarkerPassesThrough(t *testing.T) {
	client := llm.NewMockSemanticClient()
	client.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (string, error) {
		return "no structured output here", nil
	}
	resolver := NewReferenceResolver(client, zap.NewNop())

	analysis, err := resolver.Resolve(context.Background(), "what is the vacation policy?", models.SessionContext{}, referenceTranscript())
	require.NoError(t, err)
	assert.False(t, analysis.HasReference)
	assert.Equal(t, "what is the vacation policy?", analysis.ResolvedQuestion)
}

func TestReferenceResolver_CollaboratorErrorWithMarker(t *testing.T) {
	client := llm.NewMockSemanticClient()
	client.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (string, error) {
		return "", errors.New("timeout")
	}
	resolver := NewReferenceResolver(client, zap.NewNop())

	// Two shown items keep the deterministic scanner out; the failed
	// collaborator leaves the marker unresolved.
	sessionCtx := models.SessionContext{LastShownItems: shownItems("A", "B")}
	_, err := resolver.Resolve(context.Background(), "who approved that document?", sessionCtx, referenceTranscript())
	assert.ErrorIs(t, err, apperrors.ErrReferenceUnresolved)
}

func TestReferenceResolver_CollaboratorErrorWithoutMarker(t *testing.T) {
	client := llm.NewMockSemanticClient()
	client.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (string, error) {
		return "", errors.New("timeout")
	}
	resolver := NewReferenceResolver(client, zap.NewNop())

	analysis, err := resolver.Resolve(context.Background(), "list all organizations", models.SessionContext{}, referenceTranscript())
	require.NoError(t, err)
	assert.False(t, analysis.HasReference)
	assert.Equal(t, "list all organizations", analysis.ResolvedQuestion)
}

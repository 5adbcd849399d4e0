package llm

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

type intentPayload struct {
	Intent     string `json:"intent"`
	Confidence int    `json:"confidence"`
}

var intentFieldPatterns = map[string]*regexp.Regexp{
	"intent":     StringField("intent"),
	"confidence": ScalarField("confidence"),
}

func TestParse_Strict(t *testing.T) {
	out := Parse[intentPayload](`{"intent":"recall_fact","confidence":90}`, intentFieldPatterns)
	assert.Equal(t, StateParsed, out.State)
	assert.Equal(t, "recall_fact", out.Value.Intent)
	assert.Equal(t, 90, out.Value.Confidence)
}

func TestParse_PartialFromBrokenJSON(t *testing.T) {
	// Trailing comma makes the object invalid JSON; fields are still recoverable.
	out := Parse[intentPayload](`{"intent": "recall_fact", "confidence": 90,}`, intentFieldPatterns)
	assert.Equal(t, StatePartial, out.State)
	assert.Equal(t, "recall_fact", out.Fields["intent"])
	assert.Equal(t, "90", out.Fields["confidence"])
}

func TestParse_Unparsed(t *testing.T) {
	out := Parse[intentPayload]("I'd rather not classify that.", intentFieldPatterns)
	assert.Equal(t, StateUnparsed, out.State)
	assert.Empty(t, out.Fields)
	assert.Equal(t, "I'd rather not classify that.", out.Raw)
}

func TestStringField_Escapes(t *testing.T) {
	p := StringField("resolved_question")
	m := p.FindStringSubmatch(`"resolved_question": "what does \"PDI report\" say"`)
	assert.Len(t, m, 2)
	assert.Equal(t, `what does \"PDI report\" say`, m[1])
}

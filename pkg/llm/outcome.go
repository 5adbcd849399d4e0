package llm

import (
	"fmt"
	"regexp"
)

// ParseState tags the outcome of parsing a loosely-typed collaborator response.
type ParseState int

const (
	// StateParsed means the response contained a JSON object matching the schema.
	StateParsed ParseState = iota
	// StatePartial means strict parsing failed but individual fields were
	// recovered by regex extraction.
	StatePartial
	// StateUnparsed means nothing usable was recovered; only Raw is set.
	StateUnparsed
)

// Outcome is the tagged result of parsing a collaborator response. Exactly one
// of the variants applies: Parsed carries Value, Partial carries Fields,
// Unparsed carries only Raw. Raw is always set for logging.
type Outcome[T any] struct {
	State  ParseState
	Value  T                 // valid when State == StateParsed
	Fields map[string]string // recovered fields when State == StatePartial
	Raw    string
}

// StringField builds a regex that recovers a quoted JSON string field by name.
func StringField(name string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`(?i)"%s"\s*:\s*"((?:[^"\\]|\\.)*)"`, regexp.QuoteMeta(name)))
}

// ScalarField builds a regex that recovers an unquoted JSON scalar field
// (number or boolean) by name.
func ScalarField(name string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`(?i)"%s"\s*:\s*([0-9.eE+-]+|true|false)`, regexp.QuoteMeta(name)))
}

// Parse applies the tiered strategy for collaborator responses:
// strict structured parse, then field-by-field regex extraction, then Unparsed.
// It never returns an error; callers switch on State and supply deterministic
// defaults for the Unparsed variant.
func Parse[T any](response string, fieldPatterns map[string]*regexp.Regexp) Outcome[T] {
	if value, err := ParseJSONResponse[T](response); err == nil {
		return Outcome[T]{State: StateParsed, Value: value, Raw: response}
	}

	fields := make(map[string]string)
	for name, pattern := range fieldPatterns {
		if m := pattern.FindStringSubmatch(response); len(m) >= 2 {
			fields[name] = m[1]
		}
	}
	if len(fields) > 0 {
		return Outcome[T]{State: StatePartial, Fields: fields, Raw: response}
	}

	return Outcome[T]{State: StateUnparsed, Raw: response}
}

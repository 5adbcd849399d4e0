package jsonutil

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexibleStringValue converts a json.RawMessage to a string, handling cases where
// LLMs return numbers or booleans instead of strings. Returns empty string for null/empty.
func FlexibleStringValue(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	// Try string first
	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		return strVal
	}

	// Try number
	var numVal float64
	if err := json.Unmarshal(raw, &numVal); err == nil {
		if numVal == float64(int64(numVal)) {
			return fmt.Sprintf("%d", int64(numVal))
		}
		return fmt.Sprintf("%g", numVal)
	}

	// Try boolean
	var boolVal bool
	if err := json.Unmarshal(raw, &boolVal); err == nil {
		return fmt.Sprintf("%t", boolVal)
	}

	// Fallback: return raw string representation
	return string(raw)
}

// FlexibleFloatValue converts a json.RawMessage to a float64, handling cases
// where LLMs return numbers quoted as strings ("0.85") or with stray
// whitespace. Returns 0 when no numeric value can be recovered.
func FlexibleFloatValue(raw json.RawMessage) float64 {
	if len(raw) == 0 || string(raw) == "null" {
		return 0
	}

	var numVal float64
	if err := json.Unmarshal(raw, &numVal); err == nil {
		return numVal
	}

	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		strVal = strings.TrimSuffix(strings.TrimSpace(strVal), "%")
		if f, err := strconv.ParseFloat(strVal, 64); err == nil {
			return f
		}
	}

	return 0
}

// NormalizeConfidence01 coerces a confidence value onto the 0-1 scale used for
// entities and corrections. Collaborators answer on both scales; any value
// above 1 is assumed to be a percentage and divided by 100. This is the single
// conversion point for the 0-100 to 0-1 boundary.
func NormalizeConfidence01(v float64) float64 {
	if v > 1 {
		v = v / 100
	}
	return clamp(v, 0, 1)
}

// NormalizeConfidence100 coerces a confidence value onto the 0-100 scale used
// for conversation analyses (reference resolution, intent classification).
// Values at or below 1 are assumed to be fractions and multiplied by 100. This
// is the single conversion point for the 0-1 to 0-100 boundary.
//
// The value alone cannot distinguish a fraction from a genuine low percentage:
// an answer of 1 meaning 1% rescales to 100. Callers that need to tell the two
// apart must constrain the collaborator's output scale in the prompt.
func NormalizeConfidence100(v float64) int {
	if v <= 1 {
		v = v * 100
	}
	return int(clamp(v, 0, 100))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package jsonutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlexibleStringValue(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{"string", `"hello"`, "hello"},
		{"integer", `42`, "42"},
		{"float", `3.14`, "3.14"},
		{"boolean", `true`, "true"},
		{"null", `null`, ""},
		{"empty", ``, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FlexibleStringValue(json.RawMessage(tt.raw)))
		})
	}
}

func TestFlexibleFloatValue(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected float64
	}{
		{"number", `0.85`, 0.85},
		{"quoted number", `"0.85"`, 0.85},
		{"quoted percent", `"85%"`, 85},
		{"garbage", `"high"`, 0},
		{"null", `null`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FlexibleFloatValue(json.RawMessage(tt.raw)))
		})
	}
}

func TestNormalizeConfidence01(t *testing.T) {
	assert.Equal(t, 0.85, NormalizeConfidence01(0.85))
	assert.Equal(t, 0.85, NormalizeConfidence01(85))
	assert.Equal(t, 1.0, NormalizeConfidence01(250))
	assert.Equal(t, 0.0, NormalizeConfidence01(-3))
}

func TestNormalizeConfidence100(t *testing.T) {
	assert.Equal(t, 85, NormalizeConfidence100(85))
	assert.Equal(t, 85, NormalizeConfidence100(0.85))
	assert.Equal(t, 100, NormalizeConfidence100(1))
	assert.Equal(t, 100, NormalizeConfidence100(400))
	assert.Equal(t, 0, NormalizeConfidence100(-1))
}

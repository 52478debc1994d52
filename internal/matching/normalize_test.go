package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercase", "John Smith", "john smith"},
		{"accents stripped", "José García", "jose garcia"},
		{"umlaut stripped", "Jürgen Müller", "jurgen muller"},
		{"whitespace collapsed", "  John   Smith ", "john smith"},
		{"punctuation dropped", "O'Brien, Mary-Jane", "obrien mary-jane"},
		{"hyphen preserved", "Anne-Marie Dubois", "anne-marie dubois"},
		{"digits preserved", "Agent 47", "agent 47"},
		{"tabs and newlines", "John\tSmith\n", "john smith"},
		{"non-latin dropped", "李小龙", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeName(tt.input))
		})
	}
}

func TestNormalizeNameIdempotent(t *testing.T) {
	inputs := []string{
		"José García",
		"Smith, John",
		"  Anne-Marie   Dubois ",
		"Ann Lee Consulting",
		"",
	}

	for _, input := range inputs {
		once := NormalizeName(input)
		assert.Equal(t, once, NormalizeName(once), "normalize should be idempotent for %q", input)
	}
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"mixed case", "Ann.Lee@Example.COM", "ann.lee@example.com"},
		{"trim whitespace", "  ann@example.com  ", "ann@example.com"},
		{"already normalized", "ann@example.com", "ann@example.com"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeEmail(tt.input))
		})
	}
}

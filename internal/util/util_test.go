package util

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare json", `{"a": 1}`, `{"a": 1}`},
		{"padded", "  {\"a\": 1}\n", `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"plain fence", "```\n[1, 2]\n```", "[1, 2]"},
		{"fence with prose around", "Here you go:\n```json\n{\"a\": 1}\n```\nDone.", `{"a": 1}`},
		{"unclosed fence", "```json\n{\"a\": 1}", `{"a": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.input))
		})
	}
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "", Stringify(nil))
	assert.Equal(t, "plain", Stringify("plain"))
	assert.Equal(t, "boom", Stringify(errors.New("boom")))
	assert.Equal(t, `{"a":1}`, Stringify(map[string]any{"a": 1}))
	assert.Equal(t, "[1,2]", Stringify([]int{1, 2}))
	assert.Equal(t, "42", Stringify(42))
}

func TestIDGeneration(t *testing.T) {
	assert.Len(t, NewID(), 36)
	assert.Len(t, ShortID(), 8)
	assert.NotEqual(t, ShortID(), ShortID())
}

func TestCreateSchemaFromStruct(t *testing.T) {
	type args struct {
		City    string  `json:"city" description:"City to look up"`
		Days    int     `json:"days,omitempty"`
		Verbose *bool   `json:"verbose"`
		Scale   float64 `json:"scale"`
		private string  //nolint:unused
	}

	schema := CreateSchema(args{})
	assert.Equal(t, "object", schema["type"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"type": "string", "description": "City to look up"}, props["city"])
	assert.Equal(t, map[string]any{"type": "integer"}, props["days"])
	assert.Equal(t, map[string]any{"type": "boolean"}, props["verbose"])
	assert.NotContains(t, props, "private")

	required, ok := schema["required"].([]string)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"city", "scale"}, required,
		"omitempty and pointer fields are optional")
}

func TestValidateParameters(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"city": map[string]any{"type": "string"},
			"days": map[string]any{"type": "integer"},
		},
		"required": []string{"city"},
	}

	assert.NoError(t, ValidateParameters(map[string]any{"city": "Lisbon"}, schema))
	assert.NoError(t, ValidateParameters(map[string]any{"city": "Lisbon", "days": 3.0}, schema),
		"JSON-decoded whole numbers satisfy integer")
	assert.NoError(t, ValidateParameters(map[string]any{"city": "Lisbon", "extra": true}, schema),
		"extra fields are allowed")

	err := ValidateParameters(map[string]any{}, schema)
	require.Error(t, err)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "city", vErr.Field)

	err = ValidateParameters(map[string]any{"city": 7}, schema)
	require.Error(t, err)
	err = ValidateParameters(map[string]any{"city": "Lisbon", "days": 2.5}, schema)
	require.Error(t, err)
}

func TestValidateParametersRequiredFromJSON(t *testing.T) {
	// Schemas round-tripped through JSON carry []any for required.
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"city": map[string]any{"type": "string"}},
		"required":   []any{"city"},
	}

	assert.Error(t, ValidateParameters(map[string]any{}, schema))
	assert.NoError(t, ValidateParameters(map[string]any{"city": "Lisbon"}, schema))
}

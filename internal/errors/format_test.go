package errors

import (
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForCLI_IncludesHintAndCode(t *testing.T) {
	// Given: an unknown strategy error
	err := UnknownStrategy("vectorish")

	// When: formatting for CLI
	out := FormatForCLI(err)

	// Then: message, hint and code are present
	assert.Contains(t, out, `Error: unknown retriever type "vectorish"`)
	assert.Contains(t, out, "Hint: run `retrieve types`")
	assert.Contains(t, out, "Code: ERR_101_UNKNOWN_STRATEGY")
}

func TestFormatForCLI_PlainErrorIsWrapped(t *testing.T) {
	out := FormatForCLI(errors.New("disk on fire"))

	assert.Contains(t, out, "Error: disk on fire")
	assert.Contains(t, out, "Code: ERR_501_RETRIEVAL_FAILED")
	assert.NotContains(t, out, "Cause:")
	assert.Empty(t, FormatForCLI(nil))
}

func TestFormatJSON_RoundTripsFields(t *testing.T) {
	err := New(ErrCodeSourceFailed, "search failed", errors.New("timeout")).
		WithDetail("source", "sqlite")

	data, jerr := FormatJSON(err)
	require.NoError(t, jerr)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "ERR_503_SOURCE_FAILED", got["code"])
	assert.Equal(t, "RETRIEVAL", got["category"])
	assert.Equal(t, "timeout", got["cause"])
	assert.Equal(t, "sqlite", got["details"].(map[string]any)["source"])
}

func TestLogAttrs(t *testing.T) {
	err := RetrievalError("fuzzy", errors.New("boom"))

	attrs := LogAttrs(err)

	require.NotEmpty(t, attrs)
	assert.Contains(t, attrs, slog.String("error_code", ErrCodeRetrievalFailed))
	assert.Contains(t, attrs, slog.String("cause", "boom"))
	assert.Contains(t, attrs, slog.String("detail_retriever", "fuzzy"))

	assert.Equal(t, []any{slog.String("error", "plain")}, LogAttrs(errors.New("plain")))
	assert.Nil(t, LogAttrs(nil))
}

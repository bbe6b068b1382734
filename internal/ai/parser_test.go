package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSummary_CleanJSON(t *testing.T) {
	raw := `{"summary": "A fox found a hat.", "imagePrompt": "A small red fox wearing a blue hat"}`

	summary, err := extractSummary(raw)

	require.NoError(t, err)
	assert.Equal(t, "A fox found a hat.", summary.Summary)
	assert.Equal(t, "A small red fox wearing a blue hat", summary.ImagePrompt)
}

func TestExtractSummary_SurroundingText(t *testing.T) {
	// Модели любят добавлять пояснения вокруг запрошенного JSON.
	raw := "Sure! Here is the summary you asked for:\n" +
		`{"summary": "The dragon learned to share.", "imagePrompt": "A friendly green dragon sharing cookies"}` +
		"\nLet me know if you need anything else."

	summary, err := extractSummary(raw)

	require.NoError(t, err)
	assert.Equal(t, "The dragon learned to share.", summary.Summary)
	assert.Equal(t, "A friendly green dragon sharing cookies", summary.ImagePrompt)
}

func TestExtractSummary_MissingImagePrompt(t *testing.T) {
	raw := `{"summary": "A snail raced the rain."}`

	summary, err := extractSummary(raw)

	require.NoError(t, err)
	assert.Equal(t, "A snail raced the rain.", summary.Summary)
	assert.Equal(t, summary.Summary, summary.ImagePrompt, "imagePrompt должен подменяться кратким содержанием")
}

func TestExtractSummary_NoJSON(t *testing.T) {
	_, err := extractSummary("I could not produce a summary this time.")

	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestExtractSummary_MalformedJSON(t *testing.T) {
	_, err := extractSummary(`{"summary": "unterminated`)

	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestExtractSummary_EmptySummary(t *testing.T) {
	_, err := extractSummary(`{"summary": "  ", "imagePrompt": "something"}`)

	assert.ErrorIs(t, err, ErrEmptyResponse)
}

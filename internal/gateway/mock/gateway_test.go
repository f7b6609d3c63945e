package mock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/deliberate/pkg/models"
)

func TestNewGateway_AnalysisPrompt(t *testing.T) {
	gw := NewGateway()

	completion, err := gw.Complete(context.Background(), "some/model", "Provide your independent analysis.")
	require.NoError(t, err)
	assert.Contains(t, completion.Text, "some/model")
	assert.Greater(t, completion.TokensUsed, 0)
}

func TestNewGateway_SynthesisPromptYieldsVerdictBlock(t *testing.T) {
	gw := NewGateway()

	completion, err := gw.Complete(context.Background(), "some/model",
		"Synthesize.\n```json\n{...schema...}\n```")
	require.NoError(t, err)
	assert.Contains(t, completion.Text, `"verdict"`)
	assert.Contains(t, completion.Text, "```json")
}

func TestNewFailingGateway(t *testing.T) {
	sentinel := errors.New("boom")
	gw := NewFailingGateway(sentinel)

	_, err := gw.Complete(context.Background(), "m", "p")
	assert.ErrorIs(t, err, sentinel)
}

func TestNewTimeoutGateway(t *testing.T) {
	gw := NewTimeoutGateway()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := gw.Complete(ctx, "m", "p")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrTimeout)
}

package observe

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	buf := &bytes.Buffer{}
	obs := New(buf, true)
	require.NotNil(t, obs)
	require.NotNil(t, obs.Log())

	obs.Log().Info().Str("scenario", "memory_kv_0").Msg("scenario started")
	assert.Contains(t, buf.String(), "scenario started")
}

func TestNewJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	obs := NewJSON(buf, true)

	obs.Log().Info().Str("scenario", "memory_kv_0").Int("turn", 2).Msg("turn complete")
	assert.Contains(t, buf.String(), "turn complete")
	assert.Contains(t, buf.String(), "memory_kv_0")
}

func TestObserver_QuietDropsInfo(t *testing.T) {
	buf := &bytes.Buffer{}
	obs := New(buf, false)

	obs.Log().Info().Msg("hidden")
	obs.Log().Warn().Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestObserver_Spans(t *testing.T) {
	obs := Discard()

	ctx, span := obs.StartSpan(context.Background(), "snapshot.flush", "memory_kv_0")
	require.NotNil(t, ctx)
	require.NotNil(t, span)
	obs.EndSpan(span, nil)

	_, span = obs.StartSpan(context.Background(), "snapshot.load", "memory_kv_1")
	obs.EndSpan(span, errors.New("boom"))
}

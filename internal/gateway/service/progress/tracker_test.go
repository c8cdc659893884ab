package progress

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func drain(ch <-chan Event) []Event {
	var out []Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func TestTrackerLifecycle(t *testing.T) {
	tr := NewTracker(8)
	id := tr.Start("abc123")

	snap, ok := tr.Get(id)
	require.True(t, ok)
	assert.Equal(t, StatusRunning, snap.Status)
	assert.Equal(t, "queued", snap.Step)

	tr.Step(id, "navigate")
	tr.Finish(id, "", "https://storage.example/abc123.png", nil)

	snap, ok = tr.Get(id)
	require.True(t, ok)
	assert.Equal(t, StatusSucceeded, snap.Status)
	assert.Equal(t, "https://storage.example/abc123.png", snap.Reference)
	assert.Len(t, snap.Events, 3)

	// Terminal runs ignore late updates.
	tr.Step(id, "late")
	snap, _ = tr.Get(id)
	assert.Len(t, snap.Events, 3)
}

func TestTrackerSubscribeReceivesUntilTerminal(t *testing.T) {
	tr := NewTracker(8)
	id := tr.Start("abc123")

	snap, ch, err := tr.Subscribe(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "queued", snap.Step)

	tr.Step(id, "submit_code")
	tr.Step(id, "teardown")
	tr.Finish(id, "submit_code", "", errors.New("control not found"))

	events := drain(ch)
	require.Len(t, events, 3)
	assert.Equal(t, "submit_code", events[0].Step)
	assert.Equal(t, "teardown", events[1].Step)
	assert.Equal(t, StatusFailed, events[2].Status)
	assert.Equal(t, "submit_code", events[2].Step)
	assert.Equal(t, "control not found", events[2].Error)

	snap, ok := tr.Get(id)
	require.True(t, ok)
	assert.Equal(t, "submit_code", snap.Step)
}

func TestTrackerSubscribeFinishedRun(t *testing.T) {
	tr := NewTracker(8)
	id := tr.Start("abc123")
	tr.Finish(id, "", "ref", nil)

	snap, ch, err := tr.Subscribe(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, snap.Terminal())
	assert.Empty(t, drain(ch))
}

func TestTrackerSubscribeCancel(t *testing.T) {
	tr := NewTracker(8)
	id := tr.Start("abc123")

	ctx, cancel := context.WithCancel(context.Background())
	_, ch, err := tr.Subscribe(ctx, id)
	require.NoError(t, err)
	cancel()
	assert.Empty(t, drain(ch))
}

func TestTrackerUnknownAndEviction(t *testing.T) {
	tr := NewTracker(1)
	_, _, err := tr.Subscribe(context.Background(), "missing")
	require.ErrorIs(t, err, ErrUnknownAcquisition)

	first := tr.Start("a")
	_, ch, err := tr.Subscribe(context.Background(), first)
	require.NoError(t, err)

	second := tr.Start("b")
	_, ok := tr.Get(first)
	assert.False(t, ok)
	_, ok = tr.Get(second)
	assert.True(t, ok)
	assert.Empty(t, drain(ch))
}

package tally

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendease/internal/attendance"
	"attendease/internal/logging"
	"attendease/internal/queue"
)

func TestMemoryCounter(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCounter()
	day := "2026-10-19"

	require.NoError(t, c.Add(ctx, attendance.MarkedEvent{Day: day, Status: attendance.StatusPresent}))
	require.NoError(t, c.Add(ctx, attendance.MarkedEvent{Day: day, Status: attendance.StatusAbsent}))
	require.NoError(t, c.Add(ctx, attendance.MarkedEvent{Day: day, Status: attendance.StatusAbsent, Suspicious: true}))
	assert.Error(t, c.Add(ctx, attendance.MarkedEvent{Day: day, Status: "Late"}))

	got, err := c.Get(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, Counts{Day: day, Present: 1, Absent: 2, Suspicious: 1}, got)

	empty, err := c.Get(ctx, "2026-10-20")
	require.NoError(t, err)
	assert.Equal(t, Counts{Day: "2026-10-20"}, empty)
}

func TestRunConsumesEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := queue.NewInMemory(8)
	counter := NewMemoryCounter()

	publish := func(typ string, body any) {
		msg, err := queue.NewMessage(typ, body)
		require.NoError(t, err)
		require.NoError(t, q.Publish(ctx, msg))
	}
	publish(attendance.EventMarked, attendance.MarkedEvent{Day: "2026-10-19", Status: attendance.StatusPresent})
	publish("something.else", map[string]string{})
	require.NoError(t, q.Publish(ctx, queue.Message{Type: attendance.EventMarked, Body: []byte("{")}))
	publish(attendance.EventMarked, attendance.MarkedEvent{Day: "2026-10-19", Status: attendance.StatusAbsent, Suspicious: true})

	done := make(chan error, 1)
	go func() { done <- Run(ctx, q, counter, logging.Discard()) }()

	assert.Eventually(t, func() bool {
		c, _ := counter.Get(context.Background(), "2026-10-19")
		return c.Present == 1 && c.Absent == 1 && c.Suspicious == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendease/internal/attendance"
	"attendease/internal/logging"
)

func TestSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	mem := attendance.NewMemoryStore()
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	require.NoError(t, seed(ctx, mem, roster, 8, now, logging.Discard()))
	require.NoError(t, seed(ctx, mem, roster, 8, now, logging.Discard()))

	jane, err := mem.FindStudent(ctx, "101", "Jane Doe")
	require.NoError(t, err)
	require.NotNil(t, jane)

	records, err := mem.ListRecords(ctx, jane.ID)
	require.NoError(t, err)
	require.Len(t, records, 8)
	assert.Equal(t, "10/18/2026", records[0].DisplayDate(time.UTC))

	var absent int
	for _, rec := range records {
		assert.False(t, rec.OnDay(now, time.UTC))
		if rec.Status == attendance.StatusAbsent {
			absent++
			assert.NotEmpty(t, rec.Reason)
		}
	}
	assert.Equal(t, 2, absent)

	aparna, err := mem.FindStudent(ctx, "d25d135", "Aparna")
	require.NoError(t, err)
	assert.NotNil(t, aparna)
}

func TestSeedWithoutHistory(t *testing.T) {
	ctx := context.Background()
	mem := attendance.NewMemoryStore()
	require.NoError(t, seed(ctx, mem, roster, 0, time.Now(), logging.Discard()))

	roslin, err := mem.FindStudent(ctx, "d25d111", "Roslin")
	require.NoError(t, err)
	require.NotNil(t, roslin)
	records, err := mem.ListRecords(ctx, roslin.ID)
	require.NoError(t, err)
	assert.Empty(t, records)
}

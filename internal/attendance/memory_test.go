package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedStudent(t *testing.T, store Store, roll, name string) Student {
	t.Helper()
	st, err := store.UpsertStudent(context.Background(), Student{RollNumber: roll, Name: name})
	require.NoError(t, err)
	return st
}

func TestMemoryFindStudent(t *testing.T) {
	store := NewMemoryStore()
	jane := seedStudent(t, store, "101", "Jane Doe")
	seedStudent(t, store, "102", "John Smith")
	ctx := context.Background()

	got, err := store.FindStudent(ctx, "101", "Jane Doe")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, jane.ID, got.ID)

	for _, pair := range [][2]string{{"101", "Wrong Name"}, {"102", "Jane Doe"}, {"101", "jane doe"}} {
		got, err := store.FindStudent(ctx, pair[0], pair[1])
		require.NoError(t, err)
		assert.Nil(t, got, "%v", pair)
	}
}

func TestMemoryUpsertKeepsID(t *testing.T) {
	store := NewMemoryStore()
	first := seedStudent(t, store, "101", "Jane")
	second := seedStudent(t, store, "101", "Jane Doe")
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Jane Doe", second.Name)

	_, err := store.UpsertStudent(context.Background(), Student{RollNumber: "103"})
	assert.Error(t, err)
}

func TestMemoryListRecordsNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	st := seedStudent(t, store, "101", "Jane Doe")
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

	for _, offset := range []int{3, 0, 5, 1} {
		_, err := store.AppendRecord(ctx, st.ID, Record{Date: base.AddDate(0, 0, offset), Status: StatusPresent})
		require.NoError(t, err)
	}
	today, err := store.AppendRecord(ctx, st.ID, Record{Date: time.Now().UTC(), Status: StatusPresent})
	require.NoError(t, err)

	records, err := store.ListRecords(ctx, st.ID)
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, today.ID, records[0].ID)
	for i := 1; i < len(records); i++ {
		assert.False(t, records[i].Date.After(records[i-1].Date), "records must be non-increasing by date")
	}
}

func TestMemoryAppendRejects(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.AppendRecord(ctx, "ghost", Record{Status: StatusPresent})
	assert.ErrorIs(t, err, ErrUnknownStudent)

	st := seedStudent(t, store, "101", "Jane Doe")
	_, err = store.AppendRecord(ctx, st.ID, Record{Status: StatusPresent, Reason: "nope"})
	assert.ErrorIs(t, err, ErrInvalidRecord)

	records, err := store.ListRecords(ctx, st.ID)
	require.NoError(t, err)
	assert.Empty(t, records)
}

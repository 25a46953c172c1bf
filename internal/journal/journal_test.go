package journal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenworks/docvault/pkg/storage"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()

	j, err := Open(context.Background(), Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func testCheckpoint(name string, sent int64) storage.UploadCheckpoint {
	return storage.UploadCheckpoint{
		ContainerID: "c1",
		Path:        "/Documents/Invoices",
		Name:        name,
		UploadURL:   "https://upload.example.test/s1",
		TotalSize:   100,
		BytesSent:   sent,
		UpdatedAt:   time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSaveGetDelete(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	cp := testCheckpoint("big.bin", 40)
	require.NoError(t, j.Save(ctx, cp))

	got, ok, err := j.Get(ctx, "c1", "/Documents/Invoices", "big.bin")
	require.NoError(t, err)
	require.True(t, ok, "checkpoint not found after save")
	assert.Equal(t, cp, got)

	require.NoError(t, j.Delete(ctx, "c1", "/Documents/Invoices", "big.bin"))

	_, ok, err = j.Get(ctx, "c1", "/Documents/Invoices", "big.bin")
	require.NoError(t, err)
	assert.False(t, ok, "checkpoint still present after delete")
}

func TestSave_OverwritesProgress(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.Save(ctx, testCheckpoint("big.bin", 20)))
	require.NoError(t, j.Save(ctx, testCheckpoint("big.bin", 60)))

	got, ok, err := j.Get(ctx, "c1", "/Documents/Invoices", "big.bin")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(60), got.BytesSent)
}

func TestDelete_AbsentEntry(t *testing.T) {
	j := openTestJournal(t)

	err := j.Delete(context.Background(), "c1", "/nowhere", "missing.bin")
	assert.NoError(t, err, "deleting an absent entry must not error")
}

func TestPending(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.Save(ctx, testCheckpoint("a.bin", 10)))
	require.NoError(t, j.Save(ctx, testCheckpoint("b.bin", 20)))

	pending, err := j.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	require.NoError(t, j.Delete(ctx, "c1", "/Documents/Invoices", "a.bin"))

	pending, err = j.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "b.bin", pending[0].Name)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	assert.Error(t, err)
}

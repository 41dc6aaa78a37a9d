package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(base time.Time) []Record {
	return []Record{
		{Timestamp: base, UniqueID: "WBY1-mileage", VIN: "WBY1", Service: "STATUS", Attribute: "mileage", State: "100", Unit: "km", Available: true},
		{Timestamp: base.Add(time.Minute), UniqueID: "WBY1-mileage", VIN: "WBY1", Service: "STATUS", Attribute: "mileage", State: "110", Unit: "km", Available: true},
		{Timestamp: base.Add(2 * time.Minute), UniqueID: "WBA2-mileage", VIN: "WBA2", Service: "STATUS", Attribute: "mileage", State: "5", Unit: "km", Available: true},
		{Timestamp: base.Add(3 * time.Minute), UniqueID: "WBY1-charging_status", VIN: "WBY1", Service: "STATUS", Attribute: "charging_status", State: "", Available: false},
	}
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	jsonl, err := Open(Options{Backend: "jsonl", Path: filepath.Join(dir, "history.jsonl"), MaxSizeMB: 1})
	require.NoError(t, err)
	sqlite, err := Open(Options{Backend: "sqlite", Path: filepath.Join(dir, "history.db")})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = jsonl.Close()
		_ = sqlite.Close()
	})
	return map[string]Store{"jsonl": jsonl, "sqlite": sqlite}
}

func TestStoreQueryFilters(t *testing.T) {
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, r := range sample(base) {
				require.NoError(t, store.Append(ctx, r))
			}

			all, err := store.Query(ctx, Query{})
			require.NoError(t, err)
			require.Len(t, all, 4)
			assert.True(t, all[0].Timestamp.Equal(base))
			assert.Equal(t, "km", all[0].Unit)

			byVIN, err := store.Query(ctx, Query{VIN: "WBY1"})
			require.NoError(t, err)
			assert.Len(t, byVIN, 3)

			byID, err := store.Query(ctx, Query{UniqueID: "WBY1-mileage"})
			require.NoError(t, err)
			require.Len(t, byID, 2)
			assert.Equal(t, "110", byID[1].State)

			window, err := store.Query(ctx, Query{Start: base.Add(30 * time.Second), End: base.Add(2 * time.Minute)})
			require.NoError(t, err)
			assert.Len(t, window, 2)

			last, err := store.Query(ctx, Query{Limit: 1})
			require.NoError(t, err)
			require.Len(t, last, 1)
			assert.Equal(t, "WBY1-charging_status", last[0].UniqueID)
			assert.False(t, last[0].Available)
		})
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(Options{Backend: "csv", Path: "x"})
	assert.Error(t, err)
}

func TestRotatingJSONLStore_Rotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")
	store, err := NewRotatingJSONLStore(path, 1, 2, 1)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	state := fmt.Sprintf("%0512d", 0)
	base := time.Now()
	for i := 0; i < 3000; i++ {
		rec := Record{Timestamp: base.Add(time.Duration(i) * time.Millisecond), UniqueID: "u", VIN: "V", State: state}
		require.NoError(t, store.Append(context.Background(), rec))
	}
	files, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "history*.jsonl"))
	assert.Greater(t, len(files), 1, "expected rotated files")

	out, err := store.Query(context.Background(), Query{UniqueID: "u", Limit: 5})
	require.NoError(t, err)
	assert.Len(t, out, 5)
}

func TestJSONLQueryReadsOnlyOwnFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.jsonl")
	store, err := NewRotatingJSONLStore(path, 1, 2, 1)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	line := func(state string, at time.Time) []byte {
		raw, err := json.Marshal(Record{Timestamp: at, UniqueID: "u", VIN: "V", State: state})
		require.NoError(t, err)
		return append(raw, '\n')
	}
	// Recent backup name, older ones would be removed by the max-age cleanup.
	backup := "history-" + time.Now().UTC().Add(-time.Minute).Format("2006-01-02T15-04-05.000") + ".jsonl"
	require.NoError(t, os.WriteFile(filepath.Join(dir, backup), line("backup", base.Add(-time.Hour)), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "history_old.jsonl"), line("foreign", base), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "historyx.jsonl"), line("foreign", base), 0o644))
	require.NoError(t, store.Append(context.Background(), Record{Timestamp: base.Add(time.Minute), UniqueID: "u", VIN: "V", State: "active"}))

	out, err := store.Query(context.Background(), Query{UniqueID: "u"})
	require.NoError(t, err)
	states := make([]string, len(out))
	for i, r := range out {
		states[i] = r.State
	}
	assert.Equal(t, []string{"backup", "active"}, states)
}

func TestJSONLAppendCanceled(t *testing.T) {
	store, err := NewRotatingJSONLStore(filepath.Join(t.TempDir(), "h.jsonl"), 1, 1, 1)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, store.Append(ctx, Record{}), context.Canceled)
}

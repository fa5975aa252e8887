package state

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*Store, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	store, err := NewStore(fs, "/work")
	require.NoError(t, err)
	return store, fs
}

func TestStore_SaveAndLoadRun_ListsAreNeverNull(t *testing.T) {
	store, fs := newStore(t)

	run := Run{
		RunID:     "run-123",
		GraphHash: "gh-abc",
		StartTime: time.Unix(1, 2).UTC(),
		Pipeline:  "pipeline.yaml",
		Status:    StatusEmitted,
	}
	require.NoError(t, store.SaveRun(run))

	data, err := afero.ReadFile(fs, "/work/.jobweaver/runs/run-123/run.json")
	require.NoError(t, err)
	assert.Contains(t, string(data), `"emitted": []`)
	assert.NotContains(t, string(data), "null")
	assert.NotContains(t, string(data), `"error"`)

	loaded, err := store.LoadRun("run-123")
	require.NoError(t, err)
	assert.Equal(t, "gh-abc", loaded.GraphHash)
	assert.Equal(t, StatusEmitted, loaded.Status)
	assert.True(t, run.StartTime.Equal(loaded.StartTime))
}

func TestStore_RunsAreWrittenOnce(t *testing.T) {
	store, _ := newStore(t)
	run := Run{RunID: "r", GraphHash: "h", StartTime: time.Unix(5, 0), Status: StatusDryRun}

	require.NoError(t, store.SaveRun(run))
	assert.ErrorIs(t, store.SaveRun(run), ErrRunExists)
}

func TestStore_ValidatesRecords(t *testing.T) {
	store, fs := newStore(t)
	start := time.Unix(5, 0)

	assert.Error(t, store.SaveRun(Run{GraphHash: "h", StartTime: start, Status: StatusEmitted}))
	assert.Error(t, store.SaveRun(Run{RunID: "a", StartTime: start, Status: StatusEmitted}))
	assert.Error(t, store.SaveRun(Run{RunID: "a", StartTime: start, Status: StatusFailed}))
	assert.Error(t, store.SaveRun(Run{RunID: "a", GraphHash: "h", StartTime: start, Status: "running"}))
	require.NoError(t, store.SaveRun(Run{RunID: "a", StartTime: start, Status: StatusFailed, Error: "cycle"}))

	require.NoError(t, afero.WriteFile(fs, "/work/.jobweaver/runs/b/run.json",
		[]byte(`{"run_id":"b","graph_hash":"h","start_time":"2024-01-01T00:00:00Z","status":"emitted","extra":1}`), 0o644))
	_, err := store.LoadRun("b")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "unknown field"))

	_, err = store.LoadRun(" ")
	assert.Error(t, err)
}

func TestStore_ListRuns(t *testing.T) {
	store, fs := newStore(t)

	ids, err := store.ListRunIDs()
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, store.SaveRun(Run{RunID: "b", GraphHash: "h", StartTime: time.Unix(10, 0), Status: StatusEmitted}))
	require.NoError(t, store.SaveRun(Run{RunID: "a", GraphHash: "h", StartTime: time.Unix(20, 0), Status: StatusEmitted}))
	require.NoError(t, afero.WriteFile(fs, "/work/.jobweaver/runs/stray.txt", []byte("x"), 0o644))

	ids, err = store.ListRunIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	runs, err := store.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "b", runs[0].RunID, "runs are ordered by start time")
}

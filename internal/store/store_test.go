package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "meta.db"))
	require.NoError(t, err, "failed to create store")
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	s := newTestStore(t)

	t.Run("Runs", func(t *testing.T) {
		run := &Run{
			ID:         "r1",
			ScenarioID: "memory_kv_prereq_0",
			Category:   "memory_kv_prereq",
			Model:      "gpt-4o",
			Status:     StatusRunning,
			CreatedAt:  time.Now(),
			UpdatedAt:  time.Now(),
			Metadata:   map[string]string{"file": "s.yaml"},
		}
		require.NoError(t, s.CreateRun(run))

		got, err := s.GetRun("r1")
		require.NoError(t, err)
		assert.Equal(t, "memory_kv_prereq_0", got.ScenarioID)
		assert.Equal(t, "memory_kv_prereq", got.Category)
		assert.Equal(t, "s.yaml", got.Metadata["file"])

		got.Status = StatusCompleted
		require.NoError(t, s.UpdateRun(got))

		updated, err := s.GetRun("r1")
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, updated.Status)

		_, err = s.GetRun("non-existent")
		assert.ErrorIs(t, err, ErrNotFound)

		assert.ErrorIs(t, s.UpdateRun(&Run{ID: "non-existent"}), ErrNotFound)
	})

	t.Run("Snapshots", func(t *testing.T) {
		recs := []*SnapshotRecord{
			{ID: "s1", RunID: "r1", ScenarioID: "memory_kv_prereq_0", Name: "memory_kv_prereq_0", Path: "/x/memory_kv_prereq_0.json", Digest: "d1", CreatedAt: time.Now()},
			{ID: "s2", RunID: "r1", ScenarioID: "memory_kv_prereq_0", Name: "memory_kv_prereq_final", Path: "/x/memory_kv_prereq_final.json", Digest: "d2", CreatedAt: time.Now()},
			{ID: "s3", ScenarioID: "other_0", Name: "other_0", Path: "/x/other_0.json", Digest: "d3", CreatedAt: time.Now()},
		}
		for _, r := range recs {
			require.NoError(t, s.RecordSnapshot(r))
		}

		list, err := s.ListSnapshots("memory_kv_prereq_0")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "memory_kv_prereq_0", list[0].Name)
		assert.Equal(t, "memory_kv_prereq_final", list[1].Name)
		assert.Equal(t, "r1", list[1].RunID)

		list, err = s.ListSnapshots("other_0")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Empty(t, list[0].RunID)

		// Unknown run ids violate the foreign key.
		assert.Error(t, s.RecordSnapshot(&SnapshotRecord{ID: "s4", RunID: "ghost", ScenarioID: "x_0"}))
	})

	t.Run("Config", func(t *testing.T) {
		require.NoError(t, s.SetConfig("results_dir", "/tmp/a"))
		require.NoError(t, s.SetConfig("results_dir", "/tmp/b"))

		val, err := s.GetConfig("results_dir")
		require.NoError(t, err)
		assert.Equal(t, "/tmp/b", val)

		val, err = s.GetConfig("unknown")
		require.NoError(t, err)
		assert.Empty(t, val)
	})
}

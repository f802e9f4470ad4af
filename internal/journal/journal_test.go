package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/scriptrun"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Migrate())
	require.NoError(t, s.Migrate())
}

func TestRunLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.BeginRun(ctx, "run-1", "default", started))
	require.NoError(t, s.RecordOutcome(ctx, "run-1", 1, scriptrun.Outcome{
		Source: "/p/a.js", Key: "js", Disposition: scriptrun.Executed, Duration: 15 * time.Millisecond,
	}))
	require.NoError(t, s.RecordOutcome(ctx, "run-1", 2, scriptrun.Outcome{
		Source: "/p/b.py", Key: "py", Disposition: scriptrun.Skipped, Reason: "no engine",
	}))

	runs, err := s.RecentRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, StatusRunning, runs[0].Status)
	assert.Nil(t, runs[0].FinishedAt)
	assert.True(t, started.Equal(runs[0].StartedAt))

	require.NoError(t, s.FinishRun(ctx, "run-1", started.Add(time.Second), nil))
	runs, err = s.RecentRuns(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, runs[0].Status)
	require.NotNil(t, runs[0].FinishedAt)
	assert.Empty(t, runs[0].Error)

	scripts, err := s.ScriptRuns(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, scripts, 2)
	assert.Equal(t, "executed", scripts[0].Disposition)
	assert.Equal(t, 15*time.Millisecond, scripts[0].Duration)
	assert.Empty(t, scripts[0].Reason)
	assert.Equal(t, "skipped", scripts[1].Disposition)
	assert.Equal(t, "no engine", scripts[1].Reason)
}

func TestFinishRun_Failed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.BeginRun(ctx, "run-1", "default", now))
	require.NoError(t, s.FinishRun(ctx, "run-1", now, errors.New("boom")))

	runs, err := s.RecentRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, StatusFailed, runs[0].Status)
	assert.Equal(t, "boom", runs[0].Error)
}

func TestRecentRuns_NewestFirstWithLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, s.BeginRun(ctx, id, "default", base.Add(time.Duration(i)*time.Minute)))
	}

	runs, err := s.RecentRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r3", runs[0].ID)
	assert.Equal(t, "r2", runs[1].ID)
}

func TestRecordOutcome_UnknownRun(t *testing.T) {
	s := newTestStore(t)
	err := s.RecordOutcome(context.Background(), "nope", 1, scriptrun.Outcome{Source: "a.js", Key: "js"})
	assert.Error(t, err, "foreign keys are enforced")
}

func TestStoreAsRecorder(t *testing.T) {
	s := newTestStore(t)
	root := t.TempDir()
	project := &scriptrun.Project{Name: "demo", BaseDir: root, ScriptSourceRoots: []string{"."}}

	r := scriptrun.New(project, scriptrun.Config{Language: "javascript", Script: "var done = true;"},
		scriptrun.WithRecorder(s), scriptrun.WithLabel("inline-only"))
	require.NoError(t, r.Execute(context.Background()))

	runs, err := s.RecentRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, r.RunID(), runs[0].ID)
	assert.Equal(t, "inline-only", runs[0].Execution)
	assert.Equal(t, StatusSucceeded, runs[0].Status)

	scripts, err := s.ScriptRuns(context.Background(), r.RunID())
	require.NoError(t, err)
	require.Len(t, scripts, 1)
	assert.Equal(t, scriptrun.InlineSource, scripts[0].Source)
	assert.Equal(t, "javascript", scripts[0].EngineKey)
}

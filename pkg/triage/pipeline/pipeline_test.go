package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/triage/pkg/triage/classifier"
	"github.com/jamesainslie/triage/pkg/triage/findings"
	"github.com/jamesainslie/triage/pkg/triage/jobscope"
	"github.com/jamesainslie/triage/pkg/triage/notify"
	"github.com/jamesainslie/triage/pkg/triage/ruledefs"
	"github.com/jamesainslie/triage/pkg/triage/rules"
	"github.com/jamesainslie/triage/pkg/triage/types"
)

// countingDefs counts retrievals to verify the snapshot loads once per job.
type countingDefs struct {
	inner ruledefs.Provider
	calls atomic.Int64
}

func (d *countingDefs) InterestingRuleSets() (map[string]*rules.RuleSet, error) {
	d.calls.Add(1)
	return d.inner.InterestingRuleSets()
}

func docsMediaDefs(t *testing.T) ruledefs.Provider {
	t.Helper()

	text, err := rules.NewRule("text files", rules.WithExtensions(".txt"))
	require.NoError(t, err)
	docs, err := rules.NewRuleSet("Docs", text)
	require.NoError(t, err)

	img, err := rules.NewRule("images", rules.WithTypeGroup("image"))
	require.NoError(t, err)
	media, err := rules.NewRuleSet("Media", img)
	require.NoError(t, err)

	return ruledefs.Static{"Docs": docs, "Media": media}
}

func openTestStore(t *testing.T) *findings.BadgerStore {
	t.Helper()
	store, err := findings.Open(filepath.Join(t.TempDir(), "findings"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestJob_RunScenario(t *testing.T) {
	store := openTestStore(t)
	defs := &countingDefs{inner: docsMediaDefs(t)}
	reg := jobscope.New[classifier.Snapshot]()
	notifier := notify.New()
	defer notifier.Close()

	job := NewJob(7, 2, Deps{
		Definitions: defs,
		Snapshots:   reg,
		Stores:      findings.FixedProvider(store),
		Notifier:    notifier,
		Settings:    classifier.Settings{EnabledSets: []string{"Docs", "Media"}},
	})
	assert.Equal(t, int64(7), job.JobID())

	files := []types.FileRef{
		{Path: "/data/a.txt", Size: 10},
		{Path: "/data/b.jpg", Size: 20},
		{Path: "/data/c.txt", Size: 30},
	}

	stats, err := job.Run(context.Background(), files)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.FilesProcessed)
	assert.Equal(t, int64(0), stats.FileErrors)

	// Two Docs findings and one Media finding.
	docs, err := store.BySet("Docs")
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	media, err := store.BySet("Media")
	require.NoError(t, err)
	require.Len(t, media, 1)
	assert.Equal(t, "/data/b.jpg", media[0].FilePath)

	// The snapshot loaded exactly once despite two workers, and the
	// reference count returned to zero when both finished.
	assert.Equal(t, int64(1), defs.calls.Load())
	assert.Equal(t, int64(0), reg.Refs(7))
}

func TestJob_RunStartupFailure(t *testing.T) {
	store := openTestStore(t)
	reg := jobscope.New[classifier.Snapshot]()
	notifier := notify.New()
	defer notifier.Close()

	boom := errors.New("definitions store offline")
	job := NewJob(1, 2, Deps{
		Definitions: failingDefs{err: boom},
		Snapshots:   reg,
		Stores:      findings.FixedProvider(store),
		Notifier:    notifier,
	})

	_, err := job.Run(context.Background(), []types.FileRef{{Path: "/data/a.txt", Size: 1}})
	require.Error(t, err)
	assert.ErrorIs(t, err, classifier.ErrStartup)
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, int64(0), reg.Refs(1))
}

// failingDefs always fails retrieval.
type failingDefs struct{ err error }

func (d failingDefs) InterestingRuleSets() (map[string]*rules.RuleSet, error) {
	return nil, d.err
}

func TestJob_RunEmptyBatch(t *testing.T) {
	store := openTestStore(t)
	reg := jobscope.New[classifier.Snapshot]()
	notifier := notify.New()
	defer notifier.Close()

	job := NewJob(2, 3, Deps{
		Definitions: docsMediaDefs(t),
		Snapshots:   reg,
		Stores:      findings.FixedProvider(store),
		Notifier:    notifier,
	})

	stats, err := job.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.FilesProcessed)
	assert.Equal(t, int64(0), reg.Refs(2))
}

func TestJob_RunCancelledContext(t *testing.T) {
	store := openTestStore(t)
	reg := jobscope.New[classifier.Snapshot]()
	notifier := notify.New()
	defer notifier.Close()

	job := NewJob(3, 1, Deps{
		Definitions: docsMediaDefs(t),
		Snapshots:   reg,
		Stores:      findings.FixedProvider(store),
		Notifier:    notifier,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	files := make([]types.FileRef, 1000)
	for i := range files {
		files[i] = types.FileRef{Path: "/data/a.txt", Size: 1}
	}

	stats, err := job.Run(ctx, files)
	require.NoError(t, err)
	assert.Less(t, stats.FilesProcessed, int64(1000), "cancellation should stop between files")
	assert.Equal(t, int64(0), reg.Refs(3))
}

func TestJob_TwoJobsShareRegistryIndependently(t *testing.T) {
	store := openTestStore(t)
	reg := jobscope.New[classifier.Snapshot]()
	notifier := notify.New()
	defer notifier.Close()

	defsA := &countingDefs{inner: docsMediaDefs(t)}
	defsB := &countingDefs{inner: docsMediaDefs(t)}

	jobA := NewJob(10, 2, Deps{
		Definitions: defsA,
		Snapshots:   reg,
		Stores:      findings.FixedProvider(store),
		Notifier:    notifier,
		Settings:    classifier.Settings{EnabledSets: []string{"Docs"}},
	})
	jobB := NewJob(11, 2, Deps{
		Definitions: defsB,
		Snapshots:   reg,
		Stores:      findings.FixedProvider(store),
		Notifier:    notifier,
		Settings:    classifier.Settings{EnabledSets: []string{"Media"}},
	})

	done := make(chan error, 2)
	go func() {
		_, err := jobA.Run(context.Background(), []types.FileRef{{Path: "/a/x.txt", Size: 1}})
		done <- err
	}()
	go func() {
		_, err := jobB.Run(context.Background(), []types.FileRef{{Path: "/b/y.jpg", Size: 1}})
		done <- err
	}()
	require.NoError(t, <-done)
	require.NoError(t, <-done)

	assert.Equal(t, int64(1), defsA.calls.Load())
	assert.Equal(t, int64(1), defsB.calls.Load())
	assert.Equal(t, int64(0), reg.Refs(10))
	assert.Equal(t, int64(0), reg.Refs(11))

	docs, err := store.BySet("Docs")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "/a/x.txt", docs[0].FilePath)

	media, err := store.BySet("Media")
	require.NoError(t, err)
	require.Len(t, media, 1)
	assert.Equal(t, "/b/y.jpg", media[0].FilePath)
}

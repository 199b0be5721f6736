package hubcheck

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/hubcheck/internal/persistence"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Hub.APIKey = "dev-key"
	cfg.Hub.APISecret = "dev-secret"
	cfg.Hub.DBPath = filepath.Join(dir, "hub.db")
	cfg.Cache.DSN = "sqlite://" + filepath.Join(dir, "cache.db")
	cfg.Workflow.Pacing = 0
	return cfg
}

func newRunner(t *testing.T, cfg *Config, opts RunnerOptions) *LocalRunner {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r, err := NewLocalRunner(context.Background(), cfg, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestLocalRunner_RunsWorkflowToCompletion(t *testing.T) {
	cfg := testConfig(t)
	metrics := &BasicMetrics{}
	r := newRunner(t, cfg, RunnerOptions{Observer: metrics})

	require.NoError(t, r.Engine.Run(context.Background()))

	s := r.Engine.Snapshot()
	assert.True(t, s.Done())
	for _, step := range s.Steps {
		assert.Equal(t, StatusSuccess, step.Status, step.Key)
	}
	assert.True(t, strings.HasPrefix(s.BucketURL, "https://"))
	assert.Contains(t, s.BucketURL, cfg.Hub.GatewaySuffix)

	snap := metrics.Snapshot()
	assert.EqualValues(t, 1, snap.WorkflowsCompleted)
	assert.EqualValues(t, 5, snap.StepsSucceeded)
}

func TestLocalRunner_SecondRunReusesCachedState(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	first := newRunner(t, cfg, RunnerOptions{})
	require.NoError(t, first.Engine.Run(ctx))
	before, err := first.Status(ctx)
	require.NoError(t, err)
	firstURL := first.Engine.Snapshot().BucketURL
	require.NoError(t, first.Close())

	second := newRunner(t, cfg, RunnerOptions{})
	require.NoError(t, second.Engine.Run(ctx))
	after, err := second.Status(ctx)
	require.NoError(t, err)

	assert.Equal(t, before.PublicKey, after.PublicKey)
	assert.Equal(t, before.ThreadID, after.ThreadID)
	assert.Equal(t, firstURL, second.Engine.Snapshot().BucketURL)
}

func TestLocalRunner_Status(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()
	r := newRunner(t, cfg, RunnerOptions{})

	empty, err := r.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, CacheStatus{}, empty)

	require.NoError(t, r.Engine.Run(ctx))

	st, err := r.Status(ctx)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(st.PublicKey, "b"))
	assert.False(t, st.SessionExpiry.IsZero())
	assert.True(t, st.HasToken)
	assert.NotEmpty(t, st.ThreadID)
	assert.Equal(t, "confirmed", st.ThreadState)
}

func TestLocalRunner_ClearCache(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()
	r := newRunner(t, cfg, RunnerOptions{})
	require.NoError(t, r.Engine.Run(ctx))

	require.NoError(t, r.ClearCache(ctx))

	st, err := r.Status(ctx)
	require.NoError(t, err)
	assert.Empty(t, st.PublicKey)
}

func TestLocalRunner_VersionBumpHidesOldEntries(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()
	r := newRunner(t, cfg, RunnerOptions{})
	require.NoError(t, r.Engine.Run(ctx))
	old, err := r.Status(ctx)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	cfg.Cache.Version = 2
	bumped := newRunner(t, cfg, RunnerOptions{})
	st, err := bumped.Status(ctx)
	require.NoError(t, err)
	assert.Empty(t, st.PublicKey)

	require.NoError(t, bumped.Engine.Run(ctx))
	st, err = bumped.Status(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, old.PublicKey, st.PublicKey)
}

func TestLocalRunner_InjectedCacheIsNotClosed(t *testing.T) {
	cfg := testConfig(t)
	cache := persistence.NewMemoryCache()

	r, err := NewLocalRunner(context.Background(), cfg, RunnerOptions{
		Cache:  cache,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	require.NoError(t, r.Engine.Run(context.Background()))
	require.NoError(t, r.Close())

	assert.Positive(t, cache.Len())
}

func TestNewLocalRunner_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Hub.APIKey = ""

	_, err := NewLocalRunner(context.Background(), cfg, RunnerOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hub.api_key")
}

func TestNewLocalRunner_UnsupportedCacheScheme(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.DSN = "etcd://localhost"

	_, err := NewLocalRunner(context.Background(), cfg, RunnerOptions{})
	assert.ErrorIs(t, err, persistence.ErrUnsupportedScheme)
}

package watch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/ridgeline/pkg/commit"
	"github.com/cuemby/ridgeline/pkg/types"
)

func newTestEngine(t *testing.T) *commit.Engine {
	t.Helper()
	e := commit.New(t.TempDir())
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func mustCreateRepo(t *testing.T, e *commit.Engine, project, repo string) {
	t.Helper()
	_, err := e.CreateRepository(project, repo, "alice")
	require.NoError(t, err)
}

func TestWatchRepositoryReturnsImmediatelyWhenAlreadyBehind(t *testing.T) {
	e := newTestEngine(t)
	mustCreateRepo(t, e, "acme", "configs")

	_, err := e.Push("acme", "configs", types.HeadRevision, "alice", "add", []types.Change{
		{Op: types.OpUpsertJSON, Path: "/a.json", Content: json.RawMessage(`{"a":1}`)},
	}, false)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	result, ok, err := WatchRepository(ctx, e, "acme", "configs", types.Revision(1), "/**", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, types.Revision(2), result.Revision)
}

func TestWatchRepositoryWakesOnLaterPush(t *testing.T) {
	e := newTestEngine(t)
	mustCreateRepo(t, e, "acme", "configs")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	var result Result
	var ok bool
	var watchErr error
	go func() {
		result, ok, watchErr = WatchRepository(ctx, e, "acme", "configs", types.Revision(1), "/**", 5*time.Second)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	_, err := e.Push("acme", "configs", types.HeadRevision, "alice", "add", []types.Change{
		{Op: types.OpUpsertJSON, Path: "/a.json", Content: json.RawMessage(`{"a":1}`)},
	}, false)
	require.NoError(t, err)

	<-done
	require.NoError(t, watchErr)
	assert.True(t, ok)
	assert.Equal(t, types.Revision(2), result.Revision)
}

func TestWatchRepositoryTimesOutWithoutMatch(t *testing.T) {
	e := newTestEngine(t)
	mustCreateRepo(t, e, "acme", "configs")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, ok, err := WatchRepository(ctx, e, "acme", "configs", types.Revision(1), "/**", 100*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWatchRepositoryIgnoresNonMatchingPattern(t *testing.T) {
	e := newTestEngine(t)
	mustCreateRepo(t, e, "acme", "configs")

	_, err := e.Push("acme", "configs", types.HeadRevision, "alice", "add", []types.Change{
		{Op: types.OpUpsertJSON, Path: "/other.json", Content: json.RawMessage(`{"a":1}`)},
	}, false)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, ok, err := WatchRepository(ctx, e, "acme", "configs", types.Revision(1), "/watched/**", 100*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWatchFileReturnsEntryOnMatch(t *testing.T) {
	e := newTestEngine(t)
	mustCreateRepo(t, e, "acme", "configs")

	_, err := e.Push("acme", "configs", types.HeadRevision, "alice", "add", []types.Change{
		{Op: types.OpUpsertJSON, Path: "/a.json", Content: json.RawMessage(`{"a":1}`)},
	}, false)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	result, ok, err := WatchFile(ctx, e, "acme", "configs", types.Revision(1), types.Query{Path: "/a.json", Type: types.QueryIdentity}, time.Second, false)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"a":1}`, string(result.Entry.Content))
}

func TestWatchFileKeepsWaitingOnEntryNotFoundWhenNotErroring(t *testing.T) {
	e := newTestEngine(t)
	mustCreateRepo(t, e, "acme", "configs")

	_, err := e.Push("acme", "configs", types.HeadRevision, "alice", "remove unrelated", []types.Change{
		{Op: types.OpUpsertJSON, Path: "/unrelated.json", Content: json.RawMessage(`{"a":1}`)},
	}, false)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, ok, err := WatchFile(ctx, e, "acme", "configs", types.Revision(1), types.Query{Path: "/missing.json", Type: types.QueryIdentity}, 150*time.Millisecond, false)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWatcherDeliversInitialObservationOnce(t *testing.T) {
	calls := 0
	poll := func(ctx context.Context, lastKnown types.Revision) (Observation, bool, error) {
		calls++
		if calls == 1 {
			return Observation{Revision: types.Revision(1), Value: "v1"}, false, nil
		}
		<-ctx.Done()
		return Observation{}, false, ctx.Err()
	}

	w := New(poll)
	w.Start()
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	obs, err := w.AwaitInitial(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v1", obs.Value)

	obs2, err := w.AwaitInitial(ctx)
	require.NoError(t, err)
	assert.Equal(t, obs, obs2)
}

func TestWatcherListenerInvokedImmediatelyIfValueExists(t *testing.T) {
	poll := func(ctx context.Context, lastKnown types.Revision) (Observation, bool, error) {
		if lastKnown == 0 {
			return Observation{Revision: types.Revision(1), Value: "v1"}, false, nil
		}
		<-ctx.Done()
		return Observation{}, false, ctx.Err()
	}
	w := New(poll)
	w.Start()
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := w.AwaitInitial(ctx)
	require.NoError(t, err)

	var mu sync.Mutex
	var got []string
	w.Watch(func(obs Observation) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, obs.Value.(string))
	})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "v1", got[0])
}

func TestWatcherListenerPanicIsRecovered(t *testing.T) {
	var mu sync.Mutex
	notified := 0
	poll := func(ctx context.Context, lastKnown types.Revision) (Observation, bool, error) {
		mu.Lock()
		n := notified
		mu.Unlock()
		if n >= 2 {
			<-ctx.Done()
			return Observation{}, false, ctx.Err()
		}
		return Observation{Revision: types.Revision(n + 1), Value: n}, false, nil
	}
	w := New(poll)

	w.Watch(func(obs Observation) {
		mu.Lock()
		notified++
		mu.Unlock()
		panic("listener boom")
	})
	w.Start()
	defer w.Close()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return notified >= 2
	}, time.Second, 10*time.Millisecond)
}

func TestWatcherBackoffRetriesAfterPollError(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	poll := func(ctx context.Context, lastKnown types.Revision) (Observation, bool, error) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n == 1 {
			return Observation{}, false, errors.New("transient")
		}
		return Observation{Revision: types.Revision(1), Value: "recovered"}, false, nil
	}
	w := New(poll)
	w.Start()
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	obs, err := w.AwaitInitial(ctx)
	require.NoError(t, err)
	assert.Equal(t, "recovered", obs.Value)
}

func TestWatcherCloseUnblocksPendingAwaitInitial(t *testing.T) {
	poll := func(ctx context.Context, lastKnown types.Revision) (Observation, bool, error) {
		<-ctx.Done()
		return Observation{}, false, ctx.Err()
	}
	w := New(poll)
	w.Start()

	errCh := make(chan error, 1)
	go func() {
		_, err := w.AwaitInitial(context.Background())
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	w.Close()

	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("AwaitInitial did not unblock after Close")
	}
}

func TestWatcherLatestOrReturnsDefaultBeforeFirstObservation(t *testing.T) {
	poll := func(ctx context.Context, lastKnown types.Revision) (Observation, bool, error) {
		<-ctx.Done()
		return Observation{}, false, ctx.Err()
	}
	w := New(poll)
	w.Start()
	defer w.Close()

	def := Observation{Revision: 0, Value: "fallback"}
	assert.Equal(t, def, w.LatestOr(def))

	_, ok := w.Latest()
	assert.False(t, ok)
}

package mirror

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/ridgeline/pkg/types"
)

type panickyListener struct{}

func (panickyListener) OnStart(string)                { panic("boom") }
func (panickyListener) OnComplete(types.MirrorResult) { panic("boom") }
func (panickyListener) OnError(string, error)          { panic("boom") }

func TestListenerBrokerRecoversFromPanickingListener(t *testing.T) {
	broker := newListenerBroker()
	broker.register(panickyListener{})

	recorder := &recordingListener{}
	broker.register(recorder)

	assert.NotPanics(t, func() {
		broker.notifyStart("t1")
		broker.notifyComplete(types.MirrorResult{TaskID: "t1", Status: types.MirrorSuccess})
		broker.notifyError("t1", assert.AnError)
	})

	assert.Equal(t, []string{"t1"}, recorder.starts)
	require.Len(t, recorder.completes, 1)
	assert.Equal(t, []string{"t1"}, recorder.errors)
}

func TestMirrorAccessControllerFirstMatchWins(t *testing.T) {
	access := NewMirrorAccessController(
		AccessRule{Order: 10, Pattern: "https://github.com/acme/*", Allow: true},
		AccessRule{Order: 5, Pattern: "https://github.com/acme/secret", Allow: false},
	)

	assert.False(t, access.Allowed("https://github.com/acme/secret"))
	assert.True(t, access.Allowed("https://github.com/acme/public"))
}

func TestMirrorAccessControllerDeniesWithNoMatch(t *testing.T) {
	access := NewMirrorAccessController(AccessRule{Order: 1, Pattern: "https://github.com/acme/*", Allow: true})
	assert.False(t, access.Allowed("https://example.com/other"))
}

func TestStaticCredentialResolverResolvesKnownRef(t *testing.T) {
	resolver := StaticCredentialResolver{"prod": {Kind: types.CredentialAccessToken, Secret: "tok"}}

	cred, err := resolver.Resolve("prod")
	require.NoError(t, err)
	assert.Equal(t, types.CredentialAccessToken, cred.Kind)

	_, err = resolver.Resolve("missing")
	assert.Error(t, err)

	cred, err = resolver.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, types.CredentialNone, cred.Kind)
}

type fakeTask struct {
	result types.MirrorResult
	err    error
}

func (f *fakeTask) Run(ctx context.Context) (types.MirrorResult, error) {
	return f.result, f.err
}

type recordingListener struct {
	mu        sync.Mutex
	starts    []string
	completes []types.MirrorResult
	errors    []string
}

func (l *recordingListener) OnStart(taskID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.starts = append(l.starts, taskID)
}

func (l *recordingListener) OnComplete(result types.MirrorResult) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.completes = append(l.completes, result)
}

func (l *recordingListener) OnError(taskID string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, taskID)
}

func newTestScheduler(t *testing.T, factory TaskFactory) (*Scheduler, *recordingListener) {
	t.Helper()
	access := NewMirrorAccessController(AccessRule{Order: 1, Pattern: "**", Allow: true})
	listener := &recordingListener{}
	sched := NewScheduler("", "", nil, access, factory, nil, StaticCredentialResolver{})
	sched.AddListener(listener)
	return sched, listener
}

func TestRunNowInvokesFactoryAndNotifiesListeners(t *testing.T) {
	factory := func(cfg types.MirrorTaskConfig, cred types.Credential, store LocalStore) (Task, error) {
		return &fakeTask{result: types.MirrorResult{TaskID: cfg.ID, Status: types.MirrorSuccess, Description: "ok"}}, nil
	}
	sched, listener := newTestScheduler(t, factory)

	cfg := types.MirrorTaskConfig{ID: "t1", Enabled: true, Schedule: "@every 1h", RemoteURI: "https://example.com/repo.git"}
	require.NoError(t, sched.AddTask(cfg))

	result, err := sched.RunNow(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, types.MirrorSuccess, result.Status)

	assert.Equal(t, []string{"t1"}, listener.starts)
	require.Len(t, listener.completes, 1)
	assert.Equal(t, types.MirrorSuccess, listener.completes[0].Status)
}

func TestRunNowDeniesDisallowedRemote(t *testing.T) {
	called := false
	factory := func(cfg types.MirrorTaskConfig, cred types.Credential, store LocalStore) (Task, error) {
		called = true
		return &fakeTask{}, nil
	}
	access := NewMirrorAccessController(AccessRule{Order: 1, Pattern: "https://allowed.example/*", Allow: true})
	sched := NewScheduler("", "", nil, access, factory, nil, StaticCredentialResolver{})

	cfg := types.MirrorTaskConfig{ID: "t1", Enabled: true, Schedule: "@every 1h", RemoteURI: "https://denied.example/repo.git"}
	require.NoError(t, sched.AddTask(cfg))

	result, err := sched.RunNow(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, types.MirrorFailed, result.Status)
	assert.False(t, called)
}

func TestShouldRunHereZonePinning(t *testing.T) {
	sched := NewScheduler("us-east", "us-east", []string{"us-east", "us-west"}, NewMirrorAccessController(), nil, nil, nil)

	assert.True(t, sched.shouldRunHere(types.MirrorTaskConfig{Zone: ""}))
	assert.True(t, sched.shouldRunHere(types.MirrorTaskConfig{Zone: "us-east"}))
	assert.False(t, sched.shouldRunHere(types.MirrorTaskConfig{Zone: "us-west"}))
	assert.False(t, sched.shouldRunHere(types.MirrorTaskConfig{Zone: "eu-central"}))
}

func TestAddTaskRejectsInvalidSchedule(t *testing.T) {
	sched, _ := newTestScheduler(t, nil)
	err := sched.AddTask(types.MirrorTaskConfig{ID: "bad", Enabled: true, Schedule: "not a cron expression"})
	assert.Error(t, err)
}

func TestRemoveTaskStopsFutureRuns(t *testing.T) {
	runs := 0
	var mu sync.Mutex
	factory := func(cfg types.MirrorTaskConfig, cred types.Credential, store LocalStore) (Task, error) {
		mu.Lock()
		runs++
		mu.Unlock()
		return &fakeTask{result: types.MirrorResult{Status: types.MirrorSuccess}}, nil
	}
	sched, _ := newTestScheduler(t, factory)
	cfg := types.MirrorTaskConfig{ID: "t1", Enabled: true, Schedule: "@every 1h", RemoteURI: "https://example.com/repo.git"}
	require.NoError(t, sched.AddTask(cfg))

	sched.RemoveTask("t1")

	_, err := sched.RunNow(context.Background(), "t1")
	assert.Error(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, runs)
}

package watch

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/cuemby/ridgeline/pkg/log"
	"github.com/cuemby/ridgeline/pkg/types"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 30 * time.Second
)

// Observation is one value a Watcher has retrieved, paired with the
// revision it was observed at.
type Observation struct {
	Revision types.Revision
	Value    interface{}
}

// Listener is notified of every new Observation a Watcher retrieves.
// Listener invocations are serialized per watcher and a panic inside one is
// recovered and logged rather than propagated.
type Listener func(Observation)

// PollFunc performs one long-poll round trip: given the last known
// revision, it returns the next Observation, or notModified=true on
// timeout with no change. WatchFile/WatchRepository results are adapted
// into a PollFunc by callers that own the transport (in-process engine
// calls, or an HTTP client in a full deployment).
type PollFunc func(ctx context.Context, lastKnown types.Revision) (Observation, bool, error)

type watcherState int32

const (
	stateInitial watcherState = iota
	stateStarted
	stateStopped
)

// Watcher is the derived, reusable long-lived client-side primitive
// described by the watch layer: it owns a single poll loop, caches the
// latest observation, and fans out to registered listeners. Modeled on the
// broker's subscribe/broadcast shape (snapshot the listener list, notify
// outside the lock) rather than the broker's pub/sub transport, since a
// Watcher drives its own poll loop instead of reacting to publishes.
type Watcher struct {
	poll PollFunc

	mu        sync.Mutex
	state     watcherState
	latest    *Observation
	listeners []Listener
	initialCh chan struct{}

	cancel context.CancelFunc
}

// New creates a Watcher that is not yet polling; call Start to begin.
func New(poll PollFunc) *Watcher {
	return &Watcher{poll: poll, initialCh: make(chan struct{})}
}

// Start transitions Initial -> Started and begins the poll loop. A second
// call is a no-op.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.state != stateInitial {
		w.mu.Unlock()
		return
	}
	w.state = stateStarted
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.mu.Unlock()

	go w.run(ctx)
}

func (w *Watcher) run(ctx context.Context) {
	var lastKnown types.Revision
	backoff := initialBackoff

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		obs, notModified, err := w.poll(ctx, lastKnown)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			jitter := time.Duration(rand.Int63n(int64(backoff) + 1))
			select {
			case <-time.After(backoff + jitter):
			case <-ctx.Done():
				return
			}
			if backoff *= 2; backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		backoff = initialBackoff
		if notModified {
			continue
		}

		lastKnown = obs.Revision
		w.store(obs)
	}
}

func (w *Watcher) store(obs Observation) {
	w.mu.Lock()
	w.latest = &obs
	listeners := append([]Listener(nil), w.listeners...)
	select {
	case <-w.initialCh:
	default:
		close(w.initialCh)
	}
	w.mu.Unlock()

	for _, l := range listeners {
		invokeListener(l, obs)
	}
}

func invokeListener(l Listener, obs Observation) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("watch: listener panicked, continuing")
		}
	}()
	l(obs)
}

// AwaitInitial blocks until the first successful observation (idempotent:
// a later call still returns the original first value), or returns an
// error if timeout elapses first or the watcher is closed before one
// arrives.
func (w *Watcher) AwaitInitial(ctx context.Context) (Observation, error) {
	w.mu.Lock()
	if w.latest != nil {
		obs := *w.latest
		w.mu.Unlock()
		return obs, nil
	}
	initialCh := w.initialCh
	w.mu.Unlock()

	select {
	case <-initialCh:
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.latest == nil {
			return Observation{}, context.Canceled // closed before any observation
		}
		return *w.latest, nil
	case <-ctx.Done():
		return Observation{}, ctx.Err()
	}
}

// Latest returns the most recently observed value, or ok=false if none yet.
func (w *Watcher) Latest() (Observation, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.latest == nil {
		return Observation{}, false
	}
	return *w.latest, true
}

// LatestOr returns the most recently observed value, or def if none yet.
// Unlike Latest, it never fails.
func (w *Watcher) LatestOr(def Observation) Observation {
	if obs, ok := w.Latest(); ok {
		return obs
	}
	return def
}

// Watch registers listener; if a value has already been observed, listener
// is invoked once synchronously before Watch returns.
func (w *Watcher) Watch(listener Listener) {
	w.mu.Lock()
	w.listeners = append(w.listeners, listener)
	current := w.latest
	w.mu.Unlock()

	if current != nil {
		invokeListener(listener, *current)
	}
}

// Close transitions Started -> Stopped, cancels any in-flight wait, and
// unblocks any pending AwaitInitial.
func (w *Watcher) Close() {
	w.mu.Lock()
	if w.state == stateStopped {
		w.mu.Unlock()
		return
	}
	w.state = stateStopped
	cancel := w.cancel
	select {
	case <-w.initialCh:
	default:
		close(w.initialCh)
	}
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

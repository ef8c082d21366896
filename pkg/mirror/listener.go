package mirror

import (
	"sync"

	"github.com/cuemby/ridgeline/pkg/log"
	"github.com/cuemby/ridgeline/pkg/types"
)

// Listener observes a mirror task's lifecycle. Implementations must not
// block: onComplete/onError notifications are delivered synchronously to
// every registered listener from the task's own goroutine.
type Listener interface {
	OnStart(taskID string)
	OnComplete(result types.MirrorResult)
	OnError(taskID string, err error)
}

// listenerBroker fans a task run's lifecycle out to every registered
// Listener, snapshotting the registry under its mutex and invoking
// listeners outside it — the same shape pkg/watch's Watcher uses, itself
// grounded on pkg/events.Broker's subscribe/broadcast pattern.
type listenerBroker struct {
	mu        sync.Mutex
	listeners []Listener
}

func newListenerBroker() *listenerBroker {
	return &listenerBroker{}
}

func (b *listenerBroker) register(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

func (b *listenerBroker) snapshot() []Listener {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Listener, len(b.listeners))
	copy(out, b.listeners)
	return out
}

func (b *listenerBroker) notifyStart(taskID string) {
	for _, l := range b.snapshot() {
		invoke(func() { l.OnStart(taskID) })
	}
}

func (b *listenerBroker) notifyComplete(result types.MirrorResult) {
	for _, l := range b.snapshot() {
		invoke(func() { l.OnComplete(result) })
	}
}

func (b *listenerBroker) notifyError(taskID string, err error) {
	for _, l := range b.snapshot() {
		invoke(func() { l.OnError(taskID, err) })
	}
}

func invoke(fn func()) {
	defer func() {
		if recover() != nil {
			log.Error("mirror: listener panicked, continuing")
		}
	}()
	fn()
}

// Package watch implements the two layers of Ridgeline's watch model.
//
// The server side (watch.go) is stateless: WatchRepository and WatchFile
// each perform a single long-poll round trip against a pkg/commit.Engine,
// blocking until a matching commit lands or a wait budget elapses.
//
//	client                         WatchFile/WatchRepository                 Engine
//	   |  lastKnown=N, wait=30s               |                                |
//	   |------------------------------------->|                                |
//	   |                                       |--- Head() ------------------->|
//	   |                                       |<---- head ---------------------|
//	   |                                       |  head == N? -> AwaitHeadChange |
//	   |                                       |--- (blocks on waitCh/timeout) |
//	   |                                       |  head advanced -> History()   |
//	   |                                       |--- match pattern? ----------->|
//	   |<---- Result{rev, entry}, ok=true -----|                                |
//
// AwaitHeadChange is backed by repoHandle's broadcast channel in
// pkg/commit, the same close-and-replace rendezvous idiom pkg/events uses
// to fan a publish out to every subscriber without holding a lock across
// delivery — adapted here from an event bus to a single wake-up signal,
// since a waiter only needs to know "something changed", not what.
//
// The client side (watcher.go) is the derived Watcher: a long-lived poll
// loop wrapped around a PollFunc, caching the latest Observation and
// notifying registered Listeners. Its listener registry and
// snapshot-then-notify delivery mirror pkg/events.Broker.broadcast (copy
// the subscriber list under the lock, invoke callbacks outside it), while
// its retry loop adds the jittered exponential backoff a single long-poll
// client needs on transient errors that a fire-and-forget publish never
// does.
package watch

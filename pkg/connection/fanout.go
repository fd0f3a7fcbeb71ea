// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package connection

import (
	"runtime/debug"
	"sync"
	"time"

	"github.com/Thermoquad/webastostat/pkg/webasto"
	"github.com/sirupsen/logrus"
)

// Listener receives snapshot changes. Implementations must be comparable
// (typically a pointer) since listeners are registered by identity.
type Listener interface {
	SnapshotChanged(webasto.Snapshot)
}

type funcListener struct {
	fn func(webasto.Snapshot)
}

func (f *funcListener) SnapshotChanged(s webasto.Snapshot) { f.fn(s) }

// OnChange wraps fn as a Listener. Every call returns a distinct listener.
func OnChange(fn func(webasto.Snapshot)) Listener {
	return &funcListener{fn: fn}
}

// Subscription is the handle returned when registering a listener. It owns
// the listener's delivery goroutine and a one-slot mailbox holding the newest
// undelivered snapshot.
type Subscription struct {
	fanout   *Fanout
	listener Listener

	mu      sync.Mutex
	latest  *webasto.Snapshot
	stopped bool

	wake     chan struct{}
	quit     chan struct{}
	quitOnce sync.Once
	exited   chan struct{}
}

// Unsubscribe removes the listener. Calling it more than once is harmless.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.fanout == nil {
		return
	}
	s.fanout.removeSubscription(s)
}

// offer replaces any pending snapshot with snap
func (s *Subscription) offer(snap webasto.Snapshot) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if s.latest == nil {
		s.fanout.wg.Add(1)
	}
	s.latest = &snap
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) take() (webasto.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return webasto.Snapshot{}, false
	}
	snap := *s.latest
	s.latest = nil
	return snap, true
}

// stop refuses further offers and ends the delivery goroutine. A pending
// snapshot is still delivered unless drop is set.
func (s *Subscription) stop(drop bool) {
	s.mu.Lock()
	s.stopped = true
	if drop && s.latest != nil {
		s.latest = nil
		s.fanout.wg.Done()
	}
	s.mu.Unlock()
	s.quitOnce.Do(func() { close(s.quit) })
}

// run delivers snapshots one at a time, always the newest pending one
func (s *Subscription) run() {
	defer close(s.exited)
	for {
		select {
		case <-s.wake:
		case <-s.quit:
		}
		for {
			snap, ok := s.take()
			if !ok {
				break
			}
			s.fanout.deliver(s.listener, snap)
		}
		select {
		case <-s.quit:
			return
		default:
		}
	}
}

// Fanout delivers committed snapshots to every registered listener. Each
// listener is called from its own goroutine, one call at a time. A listener
// still busy when several updates arrive is next handed only the newest, so
// deliveries never go backwards and a slow listener never queues work.
type Fanout struct {
	log logrus.FieldLogger

	mu     sync.Mutex
	subs   map[Listener]*Subscription
	closed bool
	wg     sync.WaitGroup // pending and in-flight deliveries
}

// NewFanout creates an empty fan-out
func NewFanout(log logrus.FieldLogger) *Fanout {
	if log == nil {
		log = discardLogger()
	}
	return &Fanout{
		log:  log,
		subs: make(map[Listener]*Subscription),
	}
}

// Add registers l. Registering the same listener again returns the
// existing subscription. A nil listener is ignored.
func (f *Fanout) Add(l Listener) *Subscription {
	if l == nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if sub, ok := f.subs[l]; ok {
		return sub
	}
	sub := &Subscription{
		fanout:   f,
		listener: l,
		wake:     make(chan struct{}, 1),
		quit:     make(chan struct{}),
		exited:   make(chan struct{}),
	}
	f.subs[l] = sub
	if f.closed {
		sub.stopped = true
		close(sub.exited)
		return sub
	}
	go sub.run()
	return sub
}

// Remove unregisters l if present. A snapshot not yet handed to it is dropped.
func (f *Fanout) Remove(l Listener) {
	if l == nil {
		return
	}
	f.mu.Lock()
	sub, ok := f.subs[l]
	delete(f.subs, l)
	f.mu.Unlock()

	if ok {
		sub.stop(true)
	}
}

func (f *Fanout) removeSubscription(sub *Subscription) {
	f.mu.Lock()
	current := f.subs[sub.listener] == sub
	if current {
		delete(f.subs, sub.listener)
	}
	f.mu.Unlock()

	if current {
		sub.stop(true)
	}
}

// Len returns the number of registered listeners
func (f *Fanout) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Notify hands s to every listener. Each listener gets its own copy so a
// listener that mutates it cannot affect another.
func (f *Fanout) Notify(s webasto.Snapshot) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	subs := f.subscriptionsLocked()
	f.mu.Unlock()

	for _, sub := range subs {
		sub.offer(s.Clone())
	}
}

func (f *Fanout) subscriptionsLocked() []*Subscription {
	subs := make([]*Subscription, 0, len(f.subs))
	for _, sub := range f.subs {
		subs = append(subs, sub)
	}
	return subs
}

func (f *Fanout) deliver(l Listener, s webasto.Snapshot) {
	defer f.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			f.log.WithFields(logrus.Fields{
				"panic": r,
				"stack": string(debug.Stack()),
			}).Error("listener panicked")
		}
	}()
	l.SnapshotChanged(s)
}

// Wait blocks until every pending and in-flight notification has returned
func (f *Fanout) Wait() {
	f.wg.Wait()
}

// Close stops further notifications, lets each listener finish its pending
// snapshot and waits up to timeout for the delivery goroutines to exit. It
// reports whether they all did. A goroutine stuck in its listener exits when
// the listener returns.
func (f *Fanout) Close(timeout time.Duration) bool {
	f.mu.Lock()
	f.closed = true
	subs := f.subscriptionsLocked()
	f.mu.Unlock()

	for _, sub := range subs {
		sub.stop(false)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for _, sub := range subs {
		select {
		case <-sub.exited:
		case <-timer.C:
			return false
		}
	}
	return true
}

// waitTimeout waits for wg up to timeout. When it times out the helper
// goroutine stays parked until wg completes, so it is only used for
// goroutines that are already being torn down.
func waitTimeout(wg *sync.WaitGroup, timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

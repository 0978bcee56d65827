// Package clock implements the simulator's discrete-event virtual clock.
//
// All simulated components run as goroutines, but ordering is governed
// entirely by virtual time: the scheduler advances "now" only once every
// currently runnable task has parked itself (via Sleep or a queue Get),
// so two tasks never observe each other mid-step. This is the "cooperative
// single-threaded" execution model the simulator requires, implemented on
// top of real goroutines with an activity-counting rendezvous instead of
// a generator-based event loop.
package clock

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// timerEntry is one pending wake-up in the event heap.
type timerEntry struct {
	at   float64
	seq  uint64
	wake chan struct{}
}

type eventHeap []*timerEntry

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}
func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x any)   { *h = append(*h, x.(*timerEntry)) }
func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Scheduler is the virtual-time event loop. It is not safe to call Run
// from more than one goroutine; Spawn, Sleep, Park and Resume are safe to
// call from any task goroutine.
type Scheduler struct {
	mu       sync.Mutex
	now      float64
	h        eventHeap
	seq      uint64
	activity sync.WaitGroup

	realtime bool
	rtFactor float64
}

// New creates a scheduler. When realtime is true, Run sleeps the wall
// clock between events scaled by rtFactor wall-seconds-per-virtual-second
// (rtFactor of 0.5 runs twice as fast as real time); realtime is normally
// only used for interactive/demo runs, not batch scenario sweeps.
func New(realtime bool, rtFactor float64) *Scheduler {
	if rtFactor <= 0 {
		rtFactor = 1
	}
	return &Scheduler{realtime: realtime, rtFactor: rtFactor}
}

// Now returns the current virtual time in seconds.
func (s *Scheduler) Now() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// TaskHandle lets the owner of a spawned task cancel it. Interrupt is
// idempotent: cancelling an already-interrupted task is a no-op.
type TaskHandle struct {
	cancel context.CancelFunc
}

// Interrupt delivers a cancellation signal. It is picked up the next time
// the task suspends on Sleep or a queue Get, per the simulator's
// cancellation model — it does not preempt code running between
// suspension points.
func (h *TaskHandle) Interrupt() {
	if h == nil {
		return
	}
	h.cancel()
}

// Spawn starts fn as a new task. The task is considered "runnable" until
// it returns or parks (Sleep/Park); Run will not advance virtual time
// while any task is runnable.
func (s *Scheduler) Spawn(fn func(ctx context.Context)) *TaskHandle {
	ctx, cancel := context.WithCancel(context.Background())
	s.activity.Add(1)
	go func() {
		defer s.activity.Done()
		fn(ctx)
	}()
	return &TaskHandle{cancel: cancel}
}

// Park marks the calling task as suspended. Every Park must be paired
// with a later Resume once the task is runnable again. Sleep and the
// netlink queue's Get call these for you; application code normally
// never calls Park/Resume directly.
func (s *Scheduler) Park() { s.activity.Done() }

// Resume marks the calling task as runnable again.
func (s *Scheduler) Resume() { s.activity.Add(1) }

// schedule registers a new timer dt virtual-seconds from now and returns
// the channel that will be closed when it fires.
func (s *Scheduler) schedule(dt float64) chan struct{} {
	if dt < 0 {
		dt = 0
	}
	ch := make(chan struct{})
	s.mu.Lock()
	s.seq++
	heap.Push(&s.h, &timerEntry{at: s.now + dt, seq: s.seq, wake: ch})
	s.mu.Unlock()
	return ch
}

// Sleep suspends the calling task for dt virtual seconds, or until ctx is
// cancelled (interrupted), whichever happens first.
func (s *Scheduler) Sleep(ctx context.Context, dt float64) error {
	ch := s.schedule(dt)
	s.Park()
	select {
	case <-ch:
		// Run already did s.activity.Add(1) before closing ch, to keep
		// the waitgroup from bottoming out before we resume; don't
		// double-count it here.
		return nil
	case <-ctx.Done():
		s.Resume()
		return ctx.Err()
	}
}

// Run drives the event loop until no task is runnable and no timer is
// pending, or until virtual time reaches limit (a negative limit means
// unbounded). It must be called after the initial tasks have been
// spawned, from the goroutine that owns the simulation's lifetime.
func (s *Scheduler) Run(limit float64) {
	for {
		s.activity.Wait()

		s.mu.Lock()
		if len(s.h) == 0 {
			s.mu.Unlock()
			return
		}
		next := s.h[0]
		if limit >= 0 && next.at > limit {
			s.now = limit
			s.mu.Unlock()
			return
		}
		heap.Pop(&s.h)
		prevNow := s.now
		s.now = next.at
		s.mu.Unlock()

		if s.realtime {
			dt := next.at - prevNow
			if dt > 0 {
				time.Sleep(time.Duration(dt * s.rtFactor * float64(time.Second)))
			}
		}

		s.activity.Add(1)
		close(next.wake)
	}
}

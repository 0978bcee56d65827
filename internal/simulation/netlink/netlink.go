// Package netlink models the point-to-point link between a simulated
// miner and the pool (or between the pool and a translating proxy): a
// pair of FIFO queues, one per direction, each message delayed by a
// sampled one-way latency before the receiver can read it.
//
// No bytes are actually serialized; messages travel as Go values. This
// mirrors the simulator's scope — network effects (latency, ordering)
// are modeled, wire encoding is not.
package netlink

import (
	"container/list"
	"context"
	"sync"

	"github.com/braiins-sim/stratum-poolsim/internal/simulation/clock"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/rng"
)

// LatencyModel samples a one-way delivery delay in seconds.
type LatencyModel struct {
	MeanSeconds   float64
	StddevSeconds float64
}

// Sample draws a delay from the model using src. A zero-value model
// always returns zero delay (no added latency).
func (m LatencyModel) Sample(src rng.Source) float64 {
	if m.MeanSeconds <= 0 && m.StddevSeconds <= 0 {
		return 0
	}
	return src.Normal(m.MeanSeconds, m.StddevSeconds)
}

// Queue is a FIFO channel of messages delayed by a latency model.
// Delivery order is preserved even when individual delays vary: a
// message whose sampled arrival is earlier than one already in flight
// is still queued behind it and held until that message's arrival time,
// since real in-order transport (TCP) would never reorder bytes on one
// connection.
type Queue struct {
	sched   *clock.Scheduler
	rng     rng.Source
	latency LatencyModel

	mu      sync.Mutex
	items   *list.List // of queuedMessage, ordered by arrival time
	waiters []chan struct{}
}

type queuedMessage struct {
	arrivesAt float64
	value     any
}

// NewQueue creates a queue driven by sched and delayed per latency,
// drawing samples from src.
func NewQueue(sched *clock.Scheduler, src rng.Source, latency LatencyModel) *Queue {
	return &Queue{sched: sched, rng: src, latency: latency, items: list.New()}
}

// Put enqueues v, to be deliverable no earlier than the sampled
// latency from now. Put never blocks.
func (q *Queue) Put(v any) {
	delay := q.latency.Sample(q.rng)
	arrivesAt := q.sched.Now() + delay

	q.mu.Lock()
	back := q.items.Back()
	if back == nil || back.Value.(queuedMessage).arrivesAt <= arrivesAt {
		q.items.PushBack(queuedMessage{arrivesAt: arrivesAt, value: v})
	} else {
		// This message's sampled latency is shorter than the previous
		// one's: hold it back to the previous arrival time so delivery
		// stays in enqueue order.
		q.items.PushBack(queuedMessage{arrivesAt: back.Value.(queuedMessage).arrivesAt, value: v})
	}
	q.mu.Unlock()

	q.sched.Spawn(func(ctx context.Context) {
		if arrivesAt > q.sched.Now() {
			_ = q.sched.Sleep(ctx, arrivesAt-q.sched.Now())
		}
		q.notify()
	})
}

func (q *Queue) notify() {
	q.mu.Lock()
	var w chan struct{}
	if len(q.waiters) > 0 {
		w = q.waiters[0]
		q.waiters = q.waiters[1:]
	}
	q.mu.Unlock()
	if w != nil {
		close(w)
	}
}

// Get blocks the calling task until a message has arrived (its sampled
// latency has elapsed) or ctx is cancelled.
func (q *Queue) Get(ctx context.Context) (any, error) {
	for {
		q.mu.Lock()
		front := q.items.Front()
		if front != nil && front.Value.(queuedMessage).arrivesAt <= q.sched.Now() {
			q.items.Remove(front)
			q.mu.Unlock()
			return front.Value.(queuedMessage).value, nil
		}
		ch := make(chan struct{})
		q.waiters = append(q.waiters, ch)
		q.mu.Unlock()

		q.sched.Park()
		select {
		case <-ch:
			q.sched.Resume()
		case <-ctx.Done():
			q.sched.Resume()
			var zero any
			return zero, ctx.Err()
		}
	}
}

// Link is a bidirectional pair of queues connecting two endpoints,
// named A and B from the perspective of whoever constructed it (e.g.
// miner and pool).
type Link struct {
	AToB *Queue
	BToA *Queue
}

// NewLink creates a link with independent latency models in each
// direction (pass the same model twice for a symmetric link).
func NewLink(sched *clock.Scheduler, src rng.Source, aToB, bToA LatencyModel) *Link {
	return &Link{
		AToB: NewQueue(sched, src, aToB),
		BToA: NewQueue(sched, src, bToA),
	}
}

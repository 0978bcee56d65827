// Package hashratemeter estimates a miner's instantaneous hashrate from
// the stream of shares it submits, the way a pool's vardiff controller
// does: by counting shares (weighted by the difficulty they were
// submitted at) over a rolling window of virtual time.
//
// The meter tracks two states. While active, shares fall into fixed-size
// time slots and the oldest slot ages out as the window slides. When a
// miner goes idle (no shares for a while) the meter moves to on_hold:
// virtual time keeps advancing for every other component, but this
// meter "freezes" its own clock so an idle spell doesn't get averaged
// into the speed estimate as a string of zero-share slots and crater the
// reported hashrate. The meter resumes from where it left off as soon as
// a new share arrives.
package hashratemeter

import "math"

// Diff1Target is the theoretical number of hashes needed, on average, to
// find a difficulty-1 share: 2^32.
const Diff1Target = 4294967296.0

type slot struct {
	start  float64
	weight float64 // sum of (difficulty) over shares landing in this slot
	count  int     // number of shares landing in this slot
}

// Meter is a rolling-window hashrate estimator driven by virtual time.
// It is not safe for concurrent use; callers serialize access the way
// every other simulation component does, via the single owning task.
type Meter struct {
	slotWidth  float64
	slotCount  int
	holdAfter  float64 // seconds of inactivity before freezing
	slots      []slot
	active     bool
	onHold     bool
	windowTime float64 // virtual time the meter became active
	lastShare  float64
}

// New creates a meter with slotCount slots of slotWidth seconds each
// (so the rolling window spans slotCount*slotWidth seconds), freezing
// after holdAfter seconds without a share.
func New(slotWidth float64, slotCount int, holdAfter float64) *Meter {
	if slotCount < 1 {
		slotCount = 1
	}
	return &Meter{
		slotWidth: slotWidth,
		slotCount: slotCount,
		holdAfter: holdAfter,
		slots:     make([]slot, 0, slotCount),
	}
}

// advance rolls the window forward to now, dropping slots that have
// aged out, unless the meter is on hold (in which case virtual time is
// not allowed to dilute the window).
func (m *Meter) advance(now float64) {
	if m.onHold {
		return
	}
	if !m.active {
		m.active = true
		m.windowTime = now
		return
	}
	cutoff := now - float64(m.slotCount)*m.slotWidth
	kept := m.slots[:0]
	for _, s := range m.slots {
		if s.start >= cutoff {
			kept = append(kept, s)
		}
	}
	m.slots = kept
}

// Record registers a share of the given difficulty observed at virtual
// time now, and takes the meter off hold if it had frozen.
func (m *Meter) Record(now float64, difficulty float64) {
	if m.onHold {
		m.onHold = false
	}
	m.advance(now)
	m.lastShare = now

	slotStart := math.Floor(now/m.slotWidth) * m.slotWidth
	if n := len(m.slots); n > 0 && m.slots[n-1].start == slotStart {
		m.slots[n-1].weight += difficulty
		m.slots[n-1].count++
		return
	}
	m.slots = append(m.slots, slot{start: slotStart, weight: difficulty, count: 1})
}

// Tick lets the meter observe the passage of virtual time without a
// share arriving, so it can decide whether to move to on_hold. Callers
// invoke this from their own periodic or vardiff task.
func (m *Meter) Tick(now float64) {
	if !m.active || m.onHold {
		return
	}
	if now-m.lastShare >= m.holdAfter {
		m.onHold = true
		return
	}
	m.advance(now)
}

// windowSpan returns the number of seconds elapsed since the meter
// became active, capped at the configured window width (on hold: the
// span the current slots cover, up to the last share).
func (m *Meter) windowSpan(now float64) float64 {
	full := float64(m.slotCount) * m.slotWidth
	if m.onHold {
		return math.Min(m.lastShare-m.earliestSlot(), full) + m.slotWidth
	}
	elapsed := now - m.windowTime
	return math.Min(elapsed, full)
}

func (m *Meter) earliestSlot() float64 {
	if len(m.slots) == 0 {
		return m.lastShare
	}
	earliest := m.slots[0].start
	for _, s := range m.slots[1:] {
		if s.start < earliest {
			earliest = s.start
		}
	}
	return earliest
}

// Hashrate returns the estimated hashes/second over the rolling window
// as of virtual time now. It accounts for a partially filled window at
// startup by dividing by the elapsed time rather than the full window
// width. Returns 0 (unknown) when the meter is idle or the observed
// span is under one second — too short a span to divide by without
// producing a spurious spike.
func (m *Meter) Hashrate(now float64) float64 {
	if !m.active {
		return 0
	}
	if !m.onHold {
		m.advance(now)
	}
	var total float64
	for _, s := range m.slots {
		total += s.weight
	}
	if total == 0 {
		return 0
	}
	span := m.windowSpan(now)
	if span < 1 {
		return 0
	}
	return total * Diff1Target / span
}

// SubmitsPerSecond returns the share-submission rate over the rolling
// window, independent of difficulty weighting — the rate the vardiff
// controller targets.
func (m *Meter) SubmitsPerSecond(now float64) float64 {
	if !m.active {
		return 0
	}
	if !m.onHold {
		m.advance(now)
	}
	var count int
	for _, s := range m.slots {
		count += s.count
	}
	if count == 0 {
		return 0
	}
	span := m.windowSpan(now)
	if span < 1 {
		return 0
	}
	return float64(count) / span
}

// OnHold reports whether the meter has frozen due to inactivity.
func (m *Meter) OnHold() bool { return m.onHold }

// Active reports whether the meter has observed at least one share.
func (m *Meter) Active() bool { return m.active }

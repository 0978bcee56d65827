// Package session implements MiningSession: the per-channel (V2) or
// per-connection (V1) state that holds a current target, a job
// registry, and — when enabled — the vardiff control loop that tunes
// the target to track a desired submit rate.
package session

import (
	"context"
	"math"

	"github.com/braiins-sim/stratum-poolsim/internal/simulation/clock"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/hashratemeter"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/job"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/target"
)

// Session is a single mining session. Between construction and Run, no
// jobs are mined — a session only starts issuing work (and, if enabled,
// adjusting difficulty) once Run is called.
type Session struct {
	Name                 string
	CurrentTarget        target.Target
	EnableVardiff        bool
	WindowSeconds        float64
	DesiredSubmitsPerSec float64
	Meter                *hashratemeter.Meter
	Registry             *job.Registry

	// OnVardiffChange fires after every vardiff adjustment with the
	// session itself, so the owning channel/connection can re-issue a
	// job at the new difficulty.
	OnVardiffChange func(*Session)

	sched       *clock.Scheduler
	vardiffTask *clock.TaskHandle
	running     bool
	terminated  bool
}

// New constructs a session bound to sched, starting at initial target.
// If enableVardiff is false, windowSeconds/desiredSubmitsPerSec are
// unused and no hashrate meter is created.
func New(sched *clock.Scheduler, name string, initial target.Target, enableVardiff bool, windowSeconds, desiredSubmitsPerSec float64) *Session {
	s := &Session{
		Name:                 name,
		CurrentTarget:        initial,
		EnableVardiff:        enableVardiff,
		WindowSeconds:        windowSeconds,
		DesiredSubmitsPerSec: desiredSubmitsPerSec,
		Registry:             job.NewRegistry(),
		sched:                sched,
	}
	if enableVardiff {
		granularity := windowSeconds / 10
		if granularity <= 0 {
			granularity = windowSeconds
		}
		slots := int(math.Ceil(windowSeconds / granularity))
		if slots < 1 {
			slots = 1
		}
		s.Meter = hashratemeter.New(granularity, slots, windowSeconds*4)
	}
	return s
}

// LookupJob classifies jobUID against this session's registry,
// returning the job's target when it is known (valid or stale) so the
// pool can compute the share's difficulty for accounting even on a
// stale classification.
func (s *Session) LookupJob(jobUID uint64) (target.Target, job.Validity) {
	j, v := s.Registry.Lookup(jobUID)
	if j == nil {
		return target.Target{}, v
	}
	return j.DiffTarget, v
}

// Measure records a share of the given difficulty against this
// session's hashrate meter, if vardiff is enabled. It is a no-op
// otherwise, so callers never need to check EnableVardiff themselves.
func (s *Session) Measure(diff float64) {
	if s.Meter == nil {
		return
	}
	s.Meter.Record(s.sched.Now(), diff)
}

// Run activates the session, starting its vardiff loop if enabled.
// Calling Run more than once is a no-op.
func (s *Session) Run() {
	if s.running || s.terminated {
		return
	}
	s.running = true
	if s.EnableVardiff {
		s.vardiffTask = s.sched.Spawn(s.vardiffLoop)
	}
}

func (s *Session) vardiffLoop(ctx context.Context) {
	for {
		if err := s.sched.Sleep(ctx, s.WindowSeconds); err != nil {
			return
		}
		r := s.Meter.SubmitsPerSecond(s.sched.Now())
		var f float64
		if r == 0 {
			f = 0.5
		} else {
			f = r / s.DesiredSubmitsPerSec
		}
		if f < 0.25 {
			f = 0.25
		}
		if f > 4 {
			f = 4
		}
		s.CurrentTarget = s.CurrentTarget.DivByFactor(f)
		if s.OnVardiffChange != nil {
			s.OnVardiffChange(s)
		}
	}
}

// Terminate cancels the vardiff loop. It is idempotent: terminating an
// already-terminated session does nothing.
func (s *Session) Terminate() {
	if s.terminated {
		return
	}
	s.terminated = true
	if s.vardiffTask != nil {
		s.vardiffTask.Interrupt()
		s.vardiffTask = nil
	}
}

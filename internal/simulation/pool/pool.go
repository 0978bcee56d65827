// Package pool implements the pool core: the shared aggregate state
// every connection-processor submits shares against, the block clock
// that periodically retires jobs pool-wide, and the accepted/stale
// hashrate meters fed by the classification in ProcessSubmit.
package pool

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sync"

	"github.com/braiins-sim/stratum-poolsim/internal/simulation/bus"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/clock"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/hashratemeter"
	simjob "github.com/braiins-sim/stratum-poolsim/internal/simulation/job"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/rng"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/target"
)

// Processor is the interface every bound connection processor (V1 or
// V2, direct or translated) exposes to the pool so the block clock can
// drive it.
type Processor interface {
	OnNewBlock()
}

// Config carries the pool's construction parameters, mirroring
// spec.md's defaults.
type Config struct {
	Name                 string
	InitialDifficulty    float64 // default 100000
	Extranonce2Size      int     // default 8
	AvgBlockTimeSeconds  float64 // default 60
	EnableVardiff        bool
	DesiredSubmitsPerSec float64 // default 0.3
	SimulateLuck         bool
}

// DefaultConfig returns a Config with spec.md's stated defaults, with
// Name left for the caller to fill in.
func DefaultConfig(name string) Config {
	return Config{
		Name:                 name,
		InitialDifficulty:    100000,
		Extranonce2Size:      8,
		AvgBlockTimeSeconds:  60,
		EnableVardiff:        true,
		DesiredSubmitsPerSec: 0.3,
		SimulateLuck:         true,
	}
}

// Pool is the shared, single-connection-processor-mutated aggregate
// state of a mining pool. Every mutating method is only ever called
// from the single scheduler-driven cooperative execution context, so
// no locking is needed for the counters themselves; the processor map
// uses a mutex only because processors may register/unregister from
// goroutines spawned independently of the block clock's own task.
type Pool struct {
	Config
	DefaultTarget target.Target

	AcceptedSubmits int64
	AcceptedShares  float64
	StaleSubmits    int64
	StaleShares     float64
	RejectedSubmits int64

	MeterAccepted *hashratemeter.Meter
	MeterStale    *hashratemeter.Meter

	PrevHash string

	sched *clock.Scheduler
	rng   rng.Source
	sink  bus.Sink

	mu         sync.Mutex
	processors map[string]Processor

	blockClock  *clock.TaskHandle
	speedLogger *clock.TaskHandle
}

// New constructs a pool and immediately spawns its block clock and
// aggregate speed logger, per spec.md §4.4.
func New(sched *clock.Scheduler, src rng.Source, sink bus.Sink, cfg Config) *Pool {
	if sink == nil {
		sink = bus.Discard{}
	}
	p := &Pool{
		Config:        cfg,
		DefaultTarget: target.FromDifficulty(cfg.InitialDifficulty),
		MeterAccepted: hashratemeter.New(6, 10, 3600),
		MeterStale:    hashratemeter.New(6, 10, 3600),
		sched:         sched,
		rng:           src,
		sink:          sink,
		processors:    make(map[string]Processor),
	}
	p.PrevHash = p.generatePrevHash()
	p.blockClock = sched.Spawn(p.runBlockClock)
	p.speedLogger = sched.Spawn(p.runSpeedLogger)
	return p
}

func (p *Pool) generatePrevHash() string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(p.sched.Now()*1e6))
	h := sha256.Sum256(buf[:])
	return hex.EncodeToString(h[:])
}

// RegisterProcessor binds a connection processor to this pool's block
// clock under connID, so new-block broadcasts reach it.
func (p *Pool) RegisterProcessor(connID string, proc Processor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processors[connID] = proc
}

// UnregisterProcessor drops a processor on disconnect.
func (p *Pool) UnregisterProcessor(connID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.processors, connID)
}

func (p *Pool) runBlockClock(ctx context.Context) {
	for {
		var delay float64
		if p.SimulateLuck {
			delay = p.rng.Exponential(1.0 / p.AvgBlockTimeSeconds)
		} else {
			delay = p.AvgBlockTimeSeconds
		}
		if err := p.sched.Sleep(ctx, delay); err != nil {
			return
		}
		p.PrevHash = p.generatePrevHash()
		p.sink.Publish(bus.Event{
			Topic:   bus.TopicPool,
			Time:    p.sched.Now(),
			Message: "new block: " + p.PrevHash,
		})

		p.mu.Lock()
		procs := make([]Processor, 0, len(p.processors))
		for _, proc := range p.processors {
			procs = append(procs, proc)
		}
		p.mu.Unlock()
		for _, proc := range procs {
			proc.OnNewBlock()
		}
	}
}

func (p *Pool) runSpeedLogger(ctx context.Context) {
	for {
		if err := p.sched.Sleep(ctx, 60); err != nil {
			return
		}
		now := p.sched.Now()
		p.sink.Publish(bus.Event{
			Topic: bus.TopicPool,
			Time:  now,
			Message: "aggregate speed",
			Aux: map[string]float64{
				"accepted_hashrate": p.MeterAccepted.Hashrate(now),
				"stale_hashrate":    p.MeterStale.Hashrate(now),
			},
		})
	}
}

// SessionCounters is the minimal surface ProcessSubmit needs from a
// session: its job registry (for classification) and, when vardiff is
// enabled, its own hashrate meter.
type SessionCounters interface {
	LookupJob(jobUID uint64) (target.Target, simjob.Validity)
	Measure(diff float64)
}

// ProcessSubmit classifies a submitted share against sess's job
// registry and updates the pool's (and the session's) counters
// accordingly, per spec.md §4.4's three-way classification:
// unknown job → rejected; valid job → accepted; known-but-retired job
// → stale.
func (p *Pool) ProcessSubmit(jobUID uint64, sess SessionCounters, onAccept func(target.Target), onReject func(*target.Target)) {
	tgt, validity := sess.LookupJob(jobUID)
	switch validity {
	case simjob.Unknown:
		p.RejectedSubmits++
		onReject(nil)
	case simjob.Valid:
		diff := tgt.Difficulty()
		p.AcceptedSubmits++
		p.AcceptedShares += diff
		p.MeterAccepted.Record(p.sched.Now(), diff)
		sess.Measure(diff)
		onAccept(tgt)
	case simjob.Stale:
		diff := tgt.Difficulty()
		p.StaleSubmits++
		p.StaleShares += diff
		p.MeterStale.Record(p.sched.Now(), diff)
		onReject(&tgt)
	}
}

// Terminate cancels the block clock and speed logger.
func (p *Pool) Terminate() {
	if p.blockClock != nil {
		p.blockClock.Interrupt()
		p.blockClock = nil
	}
	if p.speedLogger != nil {
		p.speedLogger.Interrupt()
		p.speedLogger = nil
	}
}

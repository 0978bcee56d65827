package stratumv1

import (
	"context"
	"fmt"
	"sync"

	"github.com/braiins-sim/stratum-poolsim/internal/simulation/bus"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/clock"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/hashratemeter"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/job"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/rng"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/session"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/target"
)

// MinerState is the miner-side per-connection state, per spec.md §4.6:
// INIT → AUTHORIZED | SUBSCRIBED → AUTHORIZED_AND_SUBSCRIBED → RUNNING.
// Ordinal comparison (>= MinerStateSubscribed) is how mining eligibility
// is tested, matching the spec's "mining is allowed once the state is
// >= SUBSCRIBED" rule literally.
type MinerState int

const (
	MinerStateInit MinerState = iota
	MinerStateAuthorized
	MinerStateSubscribed
	MinerStateAuthorizedAndSubscribed
	MinerStateRunning
)

// MinerConn is the miner-side connection processor: it authenticates,
// subscribes, and runs a hashrate-driven share-discovery loop against
// whatever job the pool has most recently handed it.
type MinerConn struct {
	Name            string
	sched           *clock.Scheduler
	rngSrc          rng.Source
	outbound        send
	inbound         recv
	sink            bus.Sink
	speedHashesPerS float64

	sess *session.Session

	mu          sync.Mutex
	state       MinerState
	nextReqID   uint64
	pending     map[uint64]string // reqID -> "authorize" | "submit"
	currentJob  *job.Job
	queuedJob   *job.Job
	flushCancel context.CancelFunc
}

// NewMinerConn constructs a miner-side V1 connection processor with a
// default difficulty chosen so the expected submit rate matches
// desiredSubmitsPerSec, per spec.md §4.6.
func NewMinerConn(sched *clock.Scheduler, src rng.Source, name string, speedGhps float64, desiredSubmitsPerSec float64, outbound send, inbound recv, sink bus.Sink) *MinerConn {
	if sink == nil {
		sink = bus.Discard{}
	}
	speedHashesPerS := speedGhps * 1e9
	if desiredSubmitsPerSec <= 0 {
		desiredSubmitsPerSec = 0.3
	}
	defaultDiff := speedHashesPerS / (hashratemeter.Diff1Target * desiredSubmitsPerSec)
	mc := &MinerConn{
		Name:            name,
		sched:           sched,
		rngSrc:          src,
		outbound:        outbound,
		inbound:         inbound,
		sink:            sink,
		speedHashesPerS: speedHashesPerS,
		pending:         make(map[uint64]string),
	}
	mc.sess = session.New(sched, name, target.FromDifficulty(defaultDiff), false, 10, desiredSubmitsPerSec)
	return mc
}

// Start spawns the receive loop and the mining loop.
func (mc *MinerConn) Start() {
	mc.sched.Spawn(mc.runLoop)
	mc.sched.Spawn(mc.miningLoop)

	mc.send(&Authorize{ReqID: mc.allocReqID("authorize"), Username: mc.Name})
	mc.send(&Subscribe{ReqID: mc.allocReqID("subscribe"), UserAgent: "poolsim/1.0"})
}

func (mc *MinerConn) allocReqID(kind string) uint64 {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.nextReqID++
	id := mc.nextReqID
	mc.pending[id] = kind
	return id
}

func (mc *MinerConn) send(msg Message) {
	mc.outbound.Put(msg)
}

func (mc *MinerConn) runLoop(ctx context.Context) {
	for {
		raw, err := mc.inbound.Get(ctx)
		if err != nil {
			mc.sink.Publish(bus.Event{Topic: bus.TopicStratumV1, ConnectionID: mc.Name, Message: "DISCONNECTED"})
			mc.Terminate()
			return
		}
		msg, ok := raw.(Message)
		if !ok {
			continue
		}
		if derr := DispatchToMiner(msg, mc); derr != nil {
			mc.sink.Publish(bus.Event{Topic: bus.TopicStratumV1, ConnectionID: mc.Name, Message: "unrecognized message"})
		}
	}
}

// HandleConfigureResponse implements MinerHandler.
func (*MinerConn) HandleConfigureResponse(*ConfigureResponse) error { return nil }

// HandleSubscribeResponse implements MinerHandler.
func (mc *MinerConn) HandleSubscribeResponse(m *SubscribeResponse) error {
	mc.mu.Lock()
	switch mc.state {
	case MinerStateInit:
		mc.state = MinerStateSubscribed
	case MinerStateAuthorized:
		mc.state = MinerStateAuthorizedAndSubscribed
	}
	promoted := mc.state == MinerStateAuthorizedAndSubscribed
	mc.mu.Unlock()
	if promoted {
		mc.promoteToRunning()
	}
	return nil
}

// HandleSetDifficulty implements MinerHandler.
func (mc *MinerConn) HandleSetDifficulty(m *SetDifficulty) error {
	mc.sess.CurrentTarget = target.FromDifficulty(m.Difficulty)
	return nil
}

// HandleNotify implements MinerHandler.
func (mc *MinerConn) HandleNotify(m *Notify) error {
	mc.mu.Lock()
	allowed := mc.state >= MinerStateSubscribed
	mc.mu.Unlock()
	if !allowed {
		return nil
	}
	if m.CleanJobs {
		mc.sess.Registry.RetireAll()
	}
	j := addWithUID(mc.sess.Registry, m.JobID, m.PrevHash, m.CleanJobs, mc.sess.CurrentTarget)
	mc.adoptJob(j, m.CleanJobs)
	return nil
}

// HandleOkResult implements MinerHandler.
func (mc *MinerConn) HandleOkResult(m *OkResult) error {
	mc.mu.Lock()
	kind := mc.pending[m.ReqID]
	delete(mc.pending, m.ReqID)
	if kind == "authorize" {
		switch mc.state {
		case MinerStateInit:
			mc.state = MinerStateAuthorized
		case MinerStateSubscribed:
			mc.state = MinerStateAuthorizedAndSubscribed
		}
	}
	promoted := mc.state == MinerStateAuthorizedAndSubscribed
	mc.mu.Unlock()
	if promoted {
		mc.promoteToRunning()
	}
	return nil
}

// HandleErrorResult implements MinerHandler; logged, not fatal.
func (mc *MinerConn) HandleErrorResult(m *ErrorResult) error {
	mc.mu.Lock()
	delete(mc.pending, m.ReqID)
	mc.mu.Unlock()
	mc.sink.Publish(bus.Event{
		Topic:        bus.TopicStratumV1,
		ConnectionID: mc.Name,
		Time:         mc.sched.Now(),
		Message:      fmt.Sprintf("error result: %s", m.Message),
	})
	return nil
}

func (mc *MinerConn) promoteToRunning() {
	mc.mu.Lock()
	if mc.state == MinerStateAuthorizedAndSubscribed {
		mc.state = MinerStateRunning
	}
	mc.mu.Unlock()
	mc.sess.Run()
}

func (mc *MinerConn) adoptJob(j *job.Job, flush bool) {
	mc.mu.Lock()
	if flush || mc.currentJob == nil {
		mc.currentJob = j
		mc.queuedJob = nil
		cancel := mc.flushCancel
		mc.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		return
	}
	mc.queuedJob = j
	mc.mu.Unlock()
}

func (mc *MinerConn) miningLoop(ctx context.Context) {
	for {
		mc.mu.Lock()
		j := mc.currentJob
		if j == nil {
			mc.mu.Unlock()
			if err := mc.sched.Sleep(ctx, 0.05); err != nil {
				return
			}
			continue
		}
		diff := mc.sess.CurrentTarget.Difficulty()
		childCtx, cancel := context.WithCancel(ctx)
		mc.flushCancel = cancel
		mc.mu.Unlock()

		rate := mc.speedHashesPerS / (diff * hashratemeter.Diff1Target)
		delay := mc.rngSrc.Exponential(rate)
		err := mc.sched.Sleep(childCtx, delay)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			mc.mu.Lock()
			if mc.queuedJob != nil {
				mc.currentJob = mc.queuedJob
				mc.queuedJob = nil
			}
			mc.mu.Unlock()
			continue
		}
		mc.submitShare(j)
	}
}

func (mc *MinerConn) submitShare(j *job.Job) {
	reqID := mc.allocReqID("submit")
	mc.send(&Submit{ReqID: reqID, Username: mc.Name, JobID: j.UID, Nonce: 0, Ntime: uint64(mc.sched.Now())})
}

// Terminate cancels the session and its mining loop.
func (mc *MinerConn) Terminate() {
	mc.sess.Terminate()
}

// addWithUID mirrors job.Registry.Add but with a caller-supplied uid,
// used on the miner side where the job identity is dictated by the
// pool's Notify rather than locally assigned.
func addWithUID(r *job.Registry, uid uint64, prevHash string, cleanJobs bool, diffTarget target.Target) *job.Job {
	return r.AddWithUID(uid, prevHash, cleanJobs, diffTarget)
}

package stratumv1

import (
	"context"
	"fmt"

	"github.com/braiins-sim/stratum-poolsim/internal/simulation/bus"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/clock"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/pool"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/session"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/target"
)

// State is the pool-side per-connection state, per spec.md §4.5:
// INIT → (Authorize?) → (Subscribe?) → SUBSCRIBED → RUNNING.
type State int

const (
	StateInit State = iota
	StateAuthorized
	StateSubscribed
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateAuthorized:
		return "AUTHORIZED"
	case StateSubscribed:
		return "SUBSCRIBED"
	case StateRunning:
		return "RUNNING"
	default:
		return "UNKNOWN"
	}
}

// PoolConn is the pool-side connection processor for one V1 miner
// connection. It implements pool.Processor so the pool's block clock
// can drive OnNewBlock.
type PoolConn struct {
	ConnID   string
	sched    *clock.Scheduler
	pool     *pool.Pool
	outbound send
	inbound  recv
	sink     bus.Sink

	sess        *session.Session
	state       State
	authorized  []string
	extranonce1 string
}

// send/recv abstract the netlink.Queue directions so tests can supply
// an in-memory substitute without depending on the netlink package.
type send interface{ Put(v any) }
type recv interface {
	Get(ctx context.Context) (any, error)
}

// NewPoolConn constructs a pool-side V1 connection processor and
// creates (but does not yet run) its mining session.
func NewPoolConn(sched *clock.Scheduler, p *pool.Pool, connID string, outbound send, inbound recv, sink bus.Sink) *PoolConn {
	if sink == nil {
		sink = bus.Discard{}
	}
	pc := &PoolConn{
		ConnID:      connID,
		sched:       sched,
		pool:        p,
		outbound:    outbound,
		inbound:     inbound,
		sink:        sink,
		extranonce1: extranonce1For(connID),
	}
	pc.sess = session.New(sched, connID, p.DefaultTarget, p.EnableVardiff, 10, p.DesiredSubmitsPerSec)
	pc.sess.OnVardiffChange = pc.onVardiffChange
	p.RegisterProcessor(connID, pc)
	return pc
}

func extranonce1For(connID string) string {
	// A fixed 8-byte (16 hex char) extranonce1 derived from the
	// connection id, not randomness — the simulator doesn't need
	// extranonce collision resistance, just a stable identifier.
	h := uint64(0)
	for i := 0; i < len(connID); i++ {
		h = h*31 + uint64(connID[i])
	}
	return fmt.Sprintf("%016x", h)
}

func (pc *PoolConn) send(msg Message) {
	pc.outbound.Put(msg)
}

// Session exposes the connection's mining session, so callers outside
// the package can observe vardiff-driven target changes.
func (pc *PoolConn) Session() *session.Session {
	return pc.sess
}

// Run starts the connection's receive loop as a scheduler task.
func (pc *PoolConn) Run() *clock.TaskHandle {
	return pc.sched.Spawn(pc.runLoop)
}

func (pc *PoolConn) runLoop(ctx context.Context) {
	for {
		raw, err := pc.inbound.Get(ctx)
		if err != nil {
			pc.sink.Publish(bus.Event{Topic: bus.TopicStratumV1, ConnectionID: pc.ConnID, Message: "DISCONNECTED"})
			pc.Terminate()
			return
		}
		msg, ok := raw.(Message)
		if !ok {
			continue
		}
		if derr := DispatchToPool(msg, pc); derr != nil {
			pc.sink.Publish(bus.Event{Topic: bus.TopicStratumV1, ConnectionID: pc.ConnID, Message: "unrecognized message"})
			if sub, ok := msg.(*Submit); ok {
				pc.send(&ErrorResult{ReqID: sub.ReqID, Code: -2, Message: "Unrecognized message"})
			}
		}
	}
}

// HandleConfigure implements PoolHandler.
func (pc *PoolConn) HandleConfigure(m *Configure) error {
	pc.send(&ConfigureResponse{ReqID: m.ReqID})
	return nil
}

// HandleAuthorize implements PoolHandler. Authorize is legal in any
// state; username validation is out of scope (spec.md §9 open
// question — left as an accept-all policy).
func (pc *PoolConn) HandleAuthorize(m *Authorize) error {
	pc.authorized = append(pc.authorized, m.Username)
	pc.sink.Publish(bus.Event{
		Topic:        bus.TopicStratumV1,
		ConnectionID: pc.ConnID,
		Time:         pc.sched.Now(),
		Message:      fmt.Sprintf("authorize request for %s", m.Username),
	})
	pc.send(&OkResult{ReqID: m.ReqID})
	return nil
}

// HandleSubscribe implements PoolHandler.
func (pc *PoolConn) HandleSubscribe(m *Subscribe) error {
	if pc.state != StateInit && pc.state != StateAuthorized {
		pc.send(&ErrorResult{ReqID: m.ReqID, Code: -2, Message: fmt.Sprintf("Subscribe not expected when in: %s", pc.state)})
		return nil
	}
	pc.send(&SubscribeResponse{ReqID: m.ReqID, Extranonce1: pc.extranonce1, Extranonce2Size: pc.pool.Extranonce2Size})
	pc.state = StateSubscribed
	pc.sess.Run()
	pc.state = StateRunning
	return nil
}

// HandleSubmit implements PoolHandler.
func (pc *PoolConn) HandleSubmit(m *Submit) error {
	pc.pool.ProcessSubmit(m.JobID, pc.sess,
		func(target.Target) {
			pc.send(&OkResult{ReqID: m.ReqID})
		},
		func(*target.Target) {
			pc.send(&ErrorResult{ReqID: m.ReqID, Code: -3, Message: "Too low difficulty"})
		},
	)
	return nil
}

// issueJob creates a new job in the session's registry at the
// session's current target and notifies the miner.
func (pc *PoolConn) issueJob(cleanJobs bool) {
	j := pc.sess.Registry.Add(pc.pool.PrevHash, cleanJobs, pc.sess.CurrentTarget)
	pc.send(&Notify{JobID: j.UID, PrevHash: j.PrevHash, CleanJobs: cleanJobs})
}

// onVardiffChange implements spec.md §4.5's vardiff-change handling:
// SetDifficulty followed immediately by a non-retiring Notify.
func (pc *PoolConn) onVardiffChange(s *session.Session) {
	pc.send(&SetDifficulty{Difficulty: s.CurrentTarget.Difficulty()})
	pc.issueJob(false)
}

// OnNewBlock implements pool.Processor: retire all jobs and broadcast
// a clean-jobs Notify at the session's current target.
func (pc *PoolConn) OnNewBlock() {
	pc.sess.Registry.RetireAll()
	pc.issueJob(true)
}

// Terminate cancels the session and unregisters this processor from
// the pool's block clock.
func (pc *PoolConn) Terminate() {
	pc.sess.Terminate()
	pc.pool.UnregisterProcessor(pc.ConnID)
}

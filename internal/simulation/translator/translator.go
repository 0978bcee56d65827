// Package translator implements the V2-downstream / V1-upstream proxy:
// a single component that speaks Stratum V2 to a miner and Stratum V1
// to a pool, translating one channel's messages into the other
// protocol's terms, per spec.md §4.9.
package translator

import (
	"context"
	"fmt"
	"sync"

	"github.com/braiins-sim/stratum-poolsim/internal/simulation/bus"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/clock"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/stratumv1"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/stratumv2"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/target"
)

type send interface{ Put(v any) }
type recv interface {
	Get(ctx context.Context) (any, error)
}

// state is the translator's own per-connection state machine, mirroring
// the original V2-to-V1 proxy's INIT -> V1_CONFIGURE -> CONNECTION_SETUP
// -> OPEN_MINING_CHANNEL_PENDING -> OPERATIONAL progression.
type state int

const (
	stateInit state = iota
	stateV1Configuring
	stateConnectionSetup
	stateChannelPending
	stateOperational
)

// Translator bridges one downstream (miner-facing) V2 connection to
// one upstream (pool-facing) V1 connection. It never mines itself and
// holds no job registry of its own — job identity and difficulty
// simply pass through in whatever form each protocol expects.
type Translator struct {
	Name  string
	sched *clock.Scheduler
	sink  bus.Sink

	downOut send // to the V2 miner
	downIn  recv // from the V2 miner
	upOut   send // to the V1 pool
	upIn    recv // from the V1 pool

	mu             sync.Mutex
	st             state
	channelID      uint32
	extended       bool
	reqID          uint32
	extranonce1    string
	currentTarget  target.Target
	v1Authorized   bool
	v1Subscribed   bool
	seqNum         uint32
	nextUpReqID    uint64
	upPending      map[uint64]string
}

// New constructs a translator wired between a V2 downstream link and a
// V1 upstream link.
func New(sched *clock.Scheduler, name string, downOut send, downIn recv, upOut send, upIn recv, sink bus.Sink) *Translator {
	if sink == nil {
		sink = bus.Discard{}
	}
	return &Translator{
		Name:      name,
		sched:     sched,
		sink:      sink,
		downOut:   downOut,
		downIn:    downIn,
		upOut:     upOut,
		upIn:      upIn,
		upPending: make(map[uint64]string),
	}
}

// Run spawns the two receive loops (one per protocol side).
func (t *Translator) Run() {
	t.sched.Spawn(t.downLoop)
	t.sched.Spawn(t.upLoop)
}

func (t *Translator) sendDown(msg stratumv2.Message) { t.downOut.Put(msg) }
func (t *Translator) sendUp(msg stratumv1.Message)    { t.upOut.Put(msg) }

func (t *Translator) allocUpReqID(kind string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextUpReqID++
	id := t.nextUpReqID
	t.upPending[id] = kind
	return id
}

func (t *Translator) downLoop(ctx context.Context) {
	for {
		raw, err := t.downIn.Get(ctx)
		if err != nil {
			t.sink.Publish(bus.Event{Topic: bus.TopicTranslator, ConnectionID: t.Name, Message: "downstream DISCONNECTED"})
			return
		}
		msg, ok := raw.(stratumv2.Message)
		if !ok {
			continue
		}
		if derr := stratumv2.DispatchToPool(msg, t); derr != nil {
			t.sink.Publish(bus.Event{Topic: bus.TopicTranslator, ConnectionID: t.Name, Message: "unrecognized v2 message"})
		}
	}
}

func (t *Translator) upLoop(ctx context.Context) {
	for {
		raw, err := t.upIn.Get(ctx)
		if err != nil {
			t.sink.Publish(bus.Event{Topic: bus.TopicTranslator, ConnectionID: t.Name, Message: "upstream DISCONNECTED"})
			return
		}
		msg, ok := raw.(stratumv1.Message)
		if !ok {
			continue
		}
		if derr := stratumv1.DispatchToMiner(msg, t); derr != nil {
			t.sink.Publish(bus.Event{Topic: bus.TopicTranslator, ConnectionID: t.Name, Message: "unrecognized v1 message"})
		}
	}
}

// --- stratumv2.PoolHandler: messages arriving from the downstream V2 miner ---

// HandleSetupConnection kicks off the upstream V1 handshake (Configure)
// before answering the miner's SetupConnection.
func (t *Translator) HandleSetupConnection(m *stratumv2.SetupConnection) error {
	t.mu.Lock()
	if t.st != stateInit {
		t.mu.Unlock()
		t.sendDown(&stratumv2.SetupConnectionError{Reason: "connection can only be set up once"})
		return nil
	}
	t.st = stateV1Configuring
	t.mu.Unlock()
	t.sendUp(&stratumv1.Configure{ReqID: t.allocUpReqID("configure")})
	return nil
}

// HandleOpenStandardMiningChannel starts the upstream authorize +
// subscribe sequence that the V1 protocol needs before it can hand out
// an extranonce1/difficulty pair for the new channel.
func (t *Translator) HandleOpenStandardMiningChannel(m *stratumv2.OpenStandardMiningChannel) error {
	return t.openChannel(m.ReqID, m.User, false)
}

// HandleOpenExtendedMiningChannel implements stratumv2.PoolHandler;
// extended channels are translated the same way as standard ones since
// the upstream V1 protocol has no notion of extended channels itself.
func (t *Translator) HandleOpenExtendedMiningChannel(m *stratumv2.OpenExtendedMiningChannel) error {
	return t.openChannel(m.ReqID, m.User, true)
}

func (t *Translator) openChannel(reqID uint32, user string, extended bool) error {
	t.mu.Lock()
	t.st = stateChannelPending
	t.reqID = reqID
	t.extended = extended
	t.channelID = reqID // reusing the request id as a stand-in unique channel id
	t.mu.Unlock()

	t.sendUp(&stratumv1.Authorize{ReqID: t.allocUpReqID("authorize"), Username: user})
	t.sendUp(&stratumv1.Subscribe{ReqID: t.allocUpReqID("subscribe"), UserAgent: "poolsim-translator/1.0"})
	return nil
}

// HandleUpdateChannel implements stratumv2.PoolHandler; the V1
// protocol has no analogous message, so this only logs.
func (t *Translator) HandleUpdateChannel(m *stratumv2.UpdateChannel) error {
	t.sink.Publish(bus.Event{Topic: bus.TopicTranslator, ConnectionID: t.Name, Time: t.sched.Now(), Message: "update channel (no v1 equivalent)"})
	return nil
}

// HandleCloseChannel implements stratumv2.PoolHandler.
func (t *Translator) HandleCloseChannel(m *stratumv2.CloseChannel) error {
	return nil
}

// HandleSubmitSharesStandard implements stratumv2.PoolHandler.
func (t *Translator) HandleSubmitSharesStandard(m *stratumv2.SubmitSharesStandard) error {
	return t.submitUp(m.SequenceNum, m.JobID, m.Nonce, m.Ntime)
}

// HandleSubmitSharesExtended implements stratumv2.PoolHandler.
func (t *Translator) HandleSubmitSharesExtended(m *stratumv2.SubmitSharesExtended) error {
	return t.submitUp(m.SequenceNum, m.JobID, m.Nonce, m.Ntime)
}

func (t *Translator) submitUp(seq uint32, jobUID, nonce uint64, ntime uint32) error {
	t.mu.Lock()
	t.seqNum = seq
	t.mu.Unlock()
	t.sendUp(&stratumv1.Submit{
		ReqID:    t.allocUpReqID("submit"),
		Username: t.Name,
		JobID:    jobUID,
		Nonce:    nonce,
		Ntime:    uint64(ntime),
	})
	return nil
}

// --- stratumv1.MinerHandler: messages arriving from the upstream V1 pool ---

// HandleConfigureResponse implements stratumv1.MinerHandler.
func (t *Translator) HandleConfigureResponse(*stratumv1.ConfigureResponse) error {
	t.mu.Lock()
	if t.st == stateV1Configuring {
		t.st = stateConnectionSetup
	}
	t.mu.Unlock()
	t.sendDown(&stratumv2.SetupConnectionSuccess{UsedVersion: 2})
	return nil
}

// HandleSubscribeResponse implements stratumv1.MinerHandler.
func (t *Translator) HandleSubscribeResponse(m *stratumv1.SubscribeResponse) error {
	t.mu.Lock()
	t.extranonce1 = m.Extranonce1
	t.v1Subscribed = true
	ready := t.v1Authorized && t.st == stateChannelPending
	t.mu.Unlock()
	if ready {
		t.completeChannelOpen()
	}
	return nil
}

// HandleSetDifficulty implements stratumv1.MinerHandler: forward as a
// SetTarget on the already-open downstream channel.
func (t *Translator) HandleSetDifficulty(m *stratumv1.SetDifficulty) error {
	tgt := target.FromDifficulty(m.Difficulty)
	t.mu.Lock()
	t.currentTarget = tgt
	channelID := t.channelID
	t.mu.Unlock()
	t.sendDown(&stratumv2.SetTarget{ChannelID: channelID, MaxTarget: tgt})
	return nil
}

// HandleNotify implements stratumv1.MinerHandler, translating a V1
// Notify into a SetNewPrevHash + NewMiningJob pair, per the original
// proxy's handle_notify (always a non-future job; the translator
// doesn't pre-arm future jobs of its own since V1 has no such concept
// upstream).
func (t *Translator) HandleNotify(m *stratumv1.Notify) error {
	t.mu.Lock()
	channelID := t.channelID
	extended := t.extended
	t.mu.Unlock()

	t.sendDown(&stratumv2.SetNewPrevHash{ChannelID: channelID, JobID: m.JobID, PrevHash: m.PrevHash})
	if extended {
		t.sendDown(&stratumv2.NewExtendedMiningJob{ChannelID: channelID, JobID: m.JobID, FutureJob: false})
		return nil
	}
	t.sendDown(&stratumv2.NewMiningJob{ChannelID: channelID, JobID: m.JobID, FutureJob: false})
	return nil
}

// HandleOkResult implements stratumv1.MinerHandler.
func (t *Translator) HandleOkResult(m *stratumv1.OkResult) error {
	t.mu.Lock()
	kind := t.upPending[m.ReqID]
	delete(t.upPending, m.ReqID)
	t.mu.Unlock()

	switch kind {
	case "authorize":
		t.mu.Lock()
		t.v1Authorized = true
		ready := t.v1Subscribed && t.st == stateChannelPending
		t.mu.Unlock()
		if ready {
			t.completeChannelOpen()
		}
	case "submit":
		t.mu.Lock()
		channelID, seq := t.channelID, t.seqNum
		t.mu.Unlock()
		t.sendDown(&stratumv2.SubmitSharesSuccess{ChannelID: channelID, LastSequenceNumber: seq, NewSubmitsAcceptedCount: 1})
	}
	return nil
}

// HandleErrorResult implements stratumv1.MinerHandler.
func (t *Translator) HandleErrorResult(m *stratumv1.ErrorResult) error {
	t.mu.Lock()
	kind := t.upPending[m.ReqID]
	delete(t.upPending, m.ReqID)
	t.mu.Unlock()

	switch kind {
	case "authorize", "subscribe":
		t.mu.Lock()
		reqID := t.reqID
		t.mu.Unlock()
		t.sendDown(&stratumv2.OpenMiningChannelError{ReqID: reqID, Reason: m.Message})
	case "submit":
		t.mu.Lock()
		channelID, seq := t.channelID, t.seqNum
		t.mu.Unlock()
		t.sendDown(&stratumv2.SubmitSharesError{ChannelID: channelID, SequenceNum: seq, Reason: m.Message})
	default:
		t.sink.Publish(bus.Event{
			Topic:        bus.TopicTranslator,
			ConnectionID: t.Name,
			Time:         t.sched.Now(),
			Message:      fmt.Sprintf("upstream error: %s", m.Message),
		})
	}
	return nil
}

func (t *Translator) completeChannelOpen() {
	t.mu.Lock()
	t.st = stateOperational
	reqID, channelID, extranonce1, tgt, extended := t.reqID, t.channelID, t.extranonce1, t.currentTarget, t.extended
	t.mu.Unlock()

	if extended {
		t.sendDown(&stratumv2.OpenExtendedMiningChannelSuccess{
			ReqID:            reqID,
			ChannelID:        channelID,
			Target:           tgt,
			ExtranoncePrefix: extranonce1,
			Extranonce2Size:  8,
		})
		return
	}
	t.sendDown(&stratumv2.OpenStandardMiningChannelSuccess{
		ReqID:            reqID,
		ChannelID:        channelID,
		Target:           tgt,
		ExtranoncePrefix: extranonce1,
	})
}

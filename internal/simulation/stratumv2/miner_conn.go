package stratumv2

import (
	"context"
	"fmt"
	"sync"

	"github.com/braiins-sim/stratum-poolsim/internal/simulation/bus"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/clock"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/hashratemeter"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/rng"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/target"
)

// MinerState is the miner-side per-connection state, per spec.md §4.8:
// a connection is set up once, then a single channel is opened and
// mined on until close.
type MinerState int

const (
	MinerStateInit MinerState = iota
	MinerStateSetup
	MinerStateChannelOpen
)

// MinerConn is the miner-side V2 connection processor. It opens a
// single channel (standard or extended, chosen at construction) and
// runs a hashrate-driven share-discovery loop against whatever job is
// current on that channel, adopting future jobs only once a
// SetNewPrevHash promotes them — mirroring the real pipeline's
// separation between job template delivery and job activation.
type MinerConn struct {
	Name            string
	Extended        bool
	sched           *clock.Scheduler
	rngSrc          rng.Source
	outbound        send
	inbound         recv
	sink            bus.Sink
	speedHashesPerS float64

	mu          sync.Mutex
	state       MinerState
	nextReqID   uint32
	channelID   uint32
	hasChannel  bool
	currentTarget target.Target
	currentJobUID uint64
	haveCurrent   bool
	futureJobUID  uint64
	haveFuture    bool
	extranonce2Size int
	flushCancel     context.CancelFunc
	seq             uint32
}

// NewMinerConn constructs a miner-side V2 connection processor.
func NewMinerConn(sched *clock.Scheduler, src rng.Source, name string, speedGhps float64, extended bool, outbound send, inbound recv, sink bus.Sink) *MinerConn {
	if sink == nil {
		sink = bus.Discard{}
	}
	return &MinerConn{
		Name:            name,
		Extended:        extended,
		sched:           sched,
		rngSrc:          src,
		outbound:        outbound,
		inbound:         inbound,
		sink:            sink,
		speedHashesPerS: speedGhps * 1e9,
	}
}

// Start spawns the receive loop and mining loop, then kicks off the
// setup handshake.
func (mc *MinerConn) Start() {
	mc.sched.Spawn(mc.runLoop)
	mc.sched.Spawn(mc.miningLoop)
	mc.send(&SetupConnection{Protocol: "MINING", MinVersion: 2, MaxVersion: 2, Device: DeviceInfo{Vendor: "poolsim", DeviceID: mc.Name}})
}

func (mc *MinerConn) send(msg Message) {
	mc.outbound.Put(msg)
}

func (mc *MinerConn) allocReqID() uint32 {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.nextReqID++
	return mc.nextReqID
}

func (mc *MinerConn) runLoop(ctx context.Context) {
	for {
		raw, err := mc.inbound.Get(ctx)
		if err != nil {
			mc.sink.Publish(bus.Event{Topic: bus.TopicStratumV2, ConnectionID: mc.Name, Message: "DISCONNECTED"})
			return
		}
		msg, ok := raw.(Message)
		if !ok {
			continue
		}
		if derr := DispatchToMiner(msg, mc); derr != nil {
			mc.sink.Publish(bus.Event{Topic: bus.TopicStratumV2, ConnectionID: mc.Name, Message: "unrecognized message"})
		}
	}
}

// HandleSetupConnectionSuccess implements MinerHandler: open the
// configured channel kind with a max target generous enough never to
// constrain the pool's own assignment.
func (mc *MinerConn) HandleSetupConnectionSuccess(*SetupConnectionSuccess) error {
	mc.mu.Lock()
	mc.state = MinerStateSetup
	mc.mu.Unlock()

	maxTarget := target.FromDifficulty(1)
	if mc.Extended {
		mc.send(&OpenExtendedMiningChannel{
			ReqID:             mc.allocReqID(),
			User:              mc.Name,
			NominalHashrate:   mc.speedHashesPerS,
			MaxTarget:         maxTarget,
			MinExtranonceSize: 8,
		})
		return nil
	}
	mc.send(&OpenStandardMiningChannel{
		ReqID:           mc.allocReqID(),
		User:            mc.Name,
		NominalHashrate: mc.speedHashesPerS,
		MaxTarget:       maxTarget,
	})
	return nil
}

// HandleSetupConnectionError implements MinerHandler; logged, fatal to
// further progress but not to the process.
func (mc *MinerConn) HandleSetupConnectionError(m *SetupConnectionError) error {
	mc.sink.Publish(bus.Event{Topic: bus.TopicStratumV2, ConnectionID: mc.Name, Message: fmt.Sprintf("setup error: %s", m.Reason)})
	return nil
}

// HandleOpenStandardMiningChannelSuccess implements MinerHandler.
func (mc *MinerConn) HandleOpenStandardMiningChannelSuccess(m *OpenStandardMiningChannelSuccess) error {
	mc.mu.Lock()
	mc.state = MinerStateChannelOpen
	mc.channelID = m.ChannelID
	mc.hasChannel = true
	mc.currentTarget = m.Target
	mc.mu.Unlock()
	return nil
}

// HandleOpenExtendedMiningChannelSuccess implements MinerHandler.
func (mc *MinerConn) HandleOpenExtendedMiningChannelSuccess(m *OpenExtendedMiningChannelSuccess) error {
	mc.mu.Lock()
	mc.state = MinerStateChannelOpen
	mc.channelID = m.ChannelID
	mc.hasChannel = true
	mc.currentTarget = m.Target
	mc.extranonce2Size = m.Extranonce2Size
	mc.mu.Unlock()
	return nil
}

// HandleOpenMiningChannelError implements MinerHandler.
func (mc *MinerConn) HandleOpenMiningChannelError(m *OpenMiningChannelError) error {
	mc.sink.Publish(bus.Event{Topic: bus.TopicStratumV2, ConnectionID: mc.Name, Message: fmt.Sprintf("channel open error: %s", m.Reason)})
	return nil
}

// HandleNewMiningJob implements MinerHandler. A non-future job becomes
// current immediately, cancelling the in-flight mining attempt; a
// future job is stored and only adopted once promoted.
func (mc *MinerConn) HandleNewMiningJob(m *NewMiningJob) error {
	return mc.adoptJobMessage(m.JobID, m.FutureJob)
}

// HandleNewExtendedMiningJob implements MinerHandler.
func (mc *MinerConn) HandleNewExtendedMiningJob(m *NewExtendedMiningJob) error {
	return mc.adoptJobMessage(m.JobID, m.FutureJob)
}

func (mc *MinerConn) adoptJobMessage(jobUID uint64, future bool) error {
	mc.mu.Lock()
	if future {
		mc.futureJobUID = jobUID
		mc.haveFuture = true
		mc.mu.Unlock()
		return nil
	}
	mc.currentJobUID = jobUID
	mc.haveCurrent = true
	cancel := mc.flushCancel
	mc.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// HandleSetNewPrevHash implements MinerHandler: promote the pre-armed
// future job (per spec.md §4.7) to current, flushing any in-flight
// mining attempt against the old one.
func (mc *MinerConn) HandleSetNewPrevHash(m *SetNewPrevHash) error {
	mc.mu.Lock()
	if mc.haveFuture && mc.futureJobUID == m.JobID {
		mc.currentJobUID = mc.futureJobUID
		mc.haveFuture = false
	} else {
		mc.currentJobUID = m.JobID
	}
	mc.haveCurrent = true
	cancel := mc.flushCancel
	mc.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// HandleSetTarget implements MinerHandler.
func (mc *MinerConn) HandleSetTarget(m *SetTarget) error {
	mc.mu.Lock()
	mc.currentTarget = m.MaxTarget
	mc.mu.Unlock()
	return nil
}

// HandleSubmitSharesSuccess implements MinerHandler; no action needed.
func (*MinerConn) HandleSubmitSharesSuccess(*SubmitSharesSuccess) error { return nil }

// HandleSubmitSharesError implements MinerHandler; logged, not fatal.
func (mc *MinerConn) HandleSubmitSharesError(m *SubmitSharesError) error {
	mc.sink.Publish(bus.Event{Topic: bus.TopicStratumV2, ConnectionID: mc.Name, Message: fmt.Sprintf("submit error: %s", m.Reason)})
	return nil
}

func (mc *MinerConn) miningLoop(ctx context.Context) {
	for {
		mc.mu.Lock()
		if !mc.hasChannel || !mc.haveCurrent {
			mc.mu.Unlock()
			if err := mc.sched.Sleep(ctx, 0.05); err != nil {
				return
			}
			continue
		}
		jobUID := mc.currentJobUID
		diff := mc.currentTarget.Difficulty()
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
			continue
		}
		mc.submitShare(jobUID)
	}
}

func (mc *MinerConn) submitShare(jobUID uint64) {
	mc.mu.Lock()
	mc.seq++
	seq := mc.seq
	channelID := mc.channelID
	extended := mc.Extended
	size := mc.extranonce2Size
	mc.mu.Unlock()

	if extended {
		mc.send(&SubmitSharesExtended{
			ChannelID:   channelID,
			SequenceNum: seq,
			JobID:       jobUID,
			Nonce:       0,
			Ntime:       uint32(mc.sched.Now()),
			Extranonce2: fmt.Sprintf("%0*x", size*2, 0),
		})
		return
	}
	mc.send(&SubmitSharesStandard{
		ChannelID:   channelID,
		SequenceNum: seq,
		JobID:       jobUID,
		Nonce:       0,
		Ntime:       uint32(mc.sched.Now()),
	})
}

// Terminate stops this connection; a no-op beyond what closing the
// underlying link already does, kept for interface symmetry with the
// pool-side manager.
func (mc *MinerConn) Terminate() {}

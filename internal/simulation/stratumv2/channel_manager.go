package stratumv2

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/braiins-sim/stratum-poolsim/internal/simulation/bus"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/clock"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/job"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/pool"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/session"
	"github.com/braiins-sim/stratum-poolsim/internal/simulation/target"
	"github.com/braiins-sim/stratum-poolsim/internal/stratum/merkle"
)

// send/recv abstract the netlink.Queue directions, mirroring stratumv1's
// own local interfaces so each protocol package stays independently
// testable without importing netlink directly.
type send interface{ Put(v any) }
type recv interface {
	Get(ctx context.Context) (any, error)
}

const extraTxCount = 3 // simulated non-coinbase transactions per job's merkle branch

// channelState is the pool's bookkeeping for one open V2 channel: its
// own mining session (target, vardiff, job registry) plus the
// future-job pipeline described in spec.md §4.7 — at most one job is
// pre-armed as "future" ahead of SetNewPrevHash promoting it.
type channelState struct {
	id               uint32
	extended         bool
	extranoncePrefix string
	extranonce2Size  int
	sess             *session.Session

	currentJobUID uint64
	futureJobUID  uint64
	hasFuture     bool
}

// ChannelManager is the pool-side V2 connection processor. One manager
// owns every channel opened on a single connection and implements
// pool.Processor so the pool's block clock can drive new-block
// handling across all of them.
type ChannelManager struct {
	ConnID   string
	sched    *clock.Scheduler
	pool     *pool.Pool
	outbound send
	inbound  recv
	sink     bus.Sink
	merkle   *merkle.Builder

	mu           sync.Mutex
	setupDone    bool
	channels     map[uint32]*channelState
	nextChanID   uint32
}

// NewChannelManager constructs a pool-side V2 connection processor and
// registers it with p's block clock.
func NewChannelManager(sched *clock.Scheduler, p *pool.Pool, connID string, outbound send, inbound recv, sink bus.Sink) *ChannelManager {
	if sink == nil {
		sink = bus.Discard{}
	}
	cm := &ChannelManager{
		ConnID:   connID,
		sched:    sched,
		pool:     p,
		outbound: outbound,
		inbound:  inbound,
		sink:     sink,
		merkle:   merkle.NewBuilder(),
		channels: make(map[uint32]*channelState),
	}
	p.RegisterProcessor(connID, cm)
	return cm
}

func (cm *ChannelManager) send(msg Message) {
	cm.outbound.Put(msg)
}

// Run starts the connection's receive loop as a scheduler task.
func (cm *ChannelManager) Run() *clock.TaskHandle {
	return cm.sched.Spawn(cm.runLoop)
}

func (cm *ChannelManager) runLoop(ctx context.Context) {
	for {
		raw, err := cm.inbound.Get(ctx)
		if err != nil {
			cm.sink.Publish(bus.Event{Topic: bus.TopicStratumV2, ConnectionID: cm.ConnID, Message: "DISCONNECTED"})
			cm.Terminate()
			return
		}
		msg, ok := raw.(Message)
		if !ok {
			continue
		}
		if derr := DispatchToPool(msg, cm); derr != nil {
			cm.sink.Publish(bus.Event{Topic: bus.TopicStratumV2, ConnectionID: cm.ConnID, Message: "unrecognized message"})
		}
	}
}

// HandleSetupConnection implements PoolHandler. A connection may only
// set itself up once; a second attempt is rejected.
func (cm *ChannelManager) HandleSetupConnection(m *SetupConnection) error {
	cm.mu.Lock()
	if cm.setupDone {
		cm.mu.Unlock()
		cm.send(&SetupConnectionError{Reason: "connection already set up"})
		return nil
	}
	cm.setupDone = true
	cm.mu.Unlock()
	cm.send(&SetupConnectionSuccess{UsedVersion: m.MaxVersion, Flags: m.Flags})
	return nil
}

func extranoncePrefixFor(connID string, channelID uint32) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s-%d", connID, channelID)))
	return fmt.Sprintf("%x", h[:4])
}

// HandleOpenStandardMiningChannel implements PoolHandler.
func (cm *ChannelManager) HandleOpenStandardMiningChannel(m *OpenStandardMiningChannel) error {
	ch := cm.openChannel(false, 0)
	cm.send(&OpenStandardMiningChannelSuccess{
		ReqID:            m.ReqID,
		ChannelID:        ch.id,
		Target:           ch.sess.CurrentTarget,
		ExtranoncePrefix: ch.extranoncePrefix,
	})
	cm.issueCurrentAndFutureJob(ch)
	return nil
}

// HandleOpenExtendedMiningChannel implements PoolHandler.
func (cm *ChannelManager) HandleOpenExtendedMiningChannel(m *OpenExtendedMiningChannel) error {
	if m.MinExtranonceSize > cm.pool.Extranonce2Size {
		cm.send(&OpenMiningChannelError{ReqID: m.ReqID, Reason: "min_extranonce_size exceeds extranonce2_size"})
		return nil
	}
	size := m.MinExtranonceSize
	if size <= 0 {
		size = cm.pool.Extranonce2Size
	}
	ch := cm.openChannel(true, size)
	cm.send(&OpenExtendedMiningChannelSuccess{
		ReqID:            m.ReqID,
		ChannelID:        ch.id,
		Target:           ch.sess.CurrentTarget,
		ExtranoncePrefix: ch.extranoncePrefix,
		Extranonce2Size:  ch.extranonce2Size,
	})
	cm.issueCurrentAndFutureJob(ch)
	return nil
}

func (cm *ChannelManager) openChannel(extended bool, extranonce2Size int) *channelState {
	cm.mu.Lock()
	cm.nextChanID++
	id := cm.nextChanID
	cm.mu.Unlock()

	sess := session.New(cm.sched, fmt.Sprintf("%s#%d", cm.ConnID, id), cm.pool.DefaultTarget, cm.pool.EnableVardiff, 10, cm.pool.DesiredSubmitsPerSec)
	ch := &channelState{
		id:               id,
		extended:         extended,
		extranoncePrefix: extranoncePrefixFor(cm.ConnID, id),
		extranonce2Size:  extranonce2Size,
		sess:             sess,
	}
	sess.OnVardiffChange = func(s *session.Session) {
		cm.send(&SetTarget{ChannelID: ch.id, MaxTarget: s.CurrentTarget})
	}
	sess.Run()

	cm.mu.Lock()
	cm.channels[id] = ch
	cm.mu.Unlock()
	return ch
}

// HandleUpdateChannel implements PoolHandler; the simulator doesn't
// enforce per-channel max-target bounds, so this only logs.
func (cm *ChannelManager) HandleUpdateChannel(m *UpdateChannel) error {
	cm.sink.Publish(bus.Event{Topic: bus.TopicStratumV2, ConnectionID: cm.ConnID, Time: cm.sched.Now(), Message: "update channel", Aux: m.ChannelID})
	return nil
}

// HandleCloseChannel implements PoolHandler.
func (cm *ChannelManager) HandleCloseChannel(m *CloseChannel) error {
	cm.mu.Lock()
	ch, ok := cm.channels[m.ChannelID]
	if ok {
		delete(cm.channels, m.ChannelID)
	}
	cm.mu.Unlock()
	if ok {
		ch.sess.Terminate()
	}
	return nil
}

// HandleSubmitSharesStandard implements PoolHandler.
func (cm *ChannelManager) HandleSubmitSharesStandard(m *SubmitSharesStandard) error {
	return cm.processSubmit(m.ChannelID, m.SequenceNum, m.JobID)
}

// HandleSubmitSharesExtended implements PoolHandler.
func (cm *ChannelManager) HandleSubmitSharesExtended(m *SubmitSharesExtended) error {
	return cm.processSubmit(m.ChannelID, m.SequenceNum, m.JobID)
}

func (cm *ChannelManager) processSubmit(channelID, seq uint32, jobUID uint64) error {
	cm.mu.Lock()
	ch, ok := cm.channels[channelID]
	cm.mu.Unlock()
	if !ok {
		cm.send(&SubmitSharesError{ChannelID: channelID, SequenceNum: seq, Reason: "unknown channel"})
		return nil
	}
	cm.pool.ProcessSubmit(jobUID, ch.sess,
		func(target.Target) {
			cm.send(&SubmitSharesSuccess{ChannelID: channelID, LastSequenceNumber: seq, NewSubmitsAcceptedCount: 1})
		},
		func(*target.Target) {
			cm.send(&SubmitSharesError{ChannelID: channelID, SequenceNum: seq, Reason: "too low difficulty or stale job"})
		},
	)
	return nil
}

// issueCurrentAndFutureJob arms the initial current/future pair for a
// freshly opened channel, per spec.md §4.7: NewMiningJob(future=true,
// J0), SetNewPrevHash(J0) promoting it to current, then a fresh
// NewMiningJob(future=true, J1) re-arming the pipeline.
func (cm *ChannelManager) issueCurrentAndFutureJob(ch *channelState) {
	j0 := cm.newJob(ch, true)
	cm.sendJobMessage(ch, j0, true)

	cm.send(&SetNewPrevHash{ChannelID: ch.id, JobID: j0.UID, PrevHash: cm.pool.PrevHash})
	ch.currentJobUID = j0.UID

	future := cm.newJob(ch, true)
	cm.sendJobMessage(ch, future, true)
	ch.futureJobUID = future.UID
	ch.hasFuture = true
}

func (cm *ChannelManager) newJob(ch *channelState, future bool) *job.Job {
	prevHash := ""
	if !future {
		prevHash = cm.pool.PrevHash
	}
	return ch.sess.Registry.Add(prevHash, false, ch.sess.CurrentTarget)
}

func (cm *ChannelManager) sendJobMessage(ch *channelState, j *job.Job, future bool) {
	if !ch.extended {
		hashes := fakeTxHashes(cm.ConnID, j.UID, extraTxCount)
		branch := cm.merkle.BuildBranch(hashes)
		coinbase := hashes[0]
		root := cm.merkle.ComputeRoot(coinbase, branch)
		cm.send(&NewMiningJob{ChannelID: ch.id, JobID: j.UID, FutureJob: future, MerkleRoot: fmt.Sprintf("%x", root)})
		return
	}
	hashes := fakeTxHashes(cm.ConnID, j.UID, extraTxCount)
	branch := cm.merkle.BuildBranch(hashes)
	cm.send(&NewExtendedMiningJob{
		ChannelID:  ch.id,
		JobID:      j.UID,
		FutureJob:  future,
		MerklePath: cm.merkle.BranchToHex(branch),
		CBPrefix:   ch.extranoncePrefix,
	})
}

func fakeTxHashes(connID string, jobUID uint64, n int) [][]byte {
	hashes := make([][]byte, n)
	for i := 0; i < n; i++ {
		h := sha256.Sum256([]byte(fmt.Sprintf("%s-%d-%d", connID, jobUID, i)))
		hashes[i] = h[:]
	}
	return hashes
}

// OnNewBlock implements pool.Processor: promote every channel's
// pre-armed future job to current via SetNewPrevHash, then arm a new
// future job behind it.
func (cm *ChannelManager) OnNewBlock() {
	cm.mu.Lock()
	channels := make([]*channelState, 0, len(cm.channels))
	for _, ch := range cm.channels {
		channels = append(channels, ch)
	}
	cm.mu.Unlock()

	for _, ch := range channels {
		if ch.hasFuture {
			// Retire everything older than the job being promoted, but
			// not the job itself — RetireAll would also invalidate it,
			// since its uid was handed out before this point.
			ch.sess.Registry.RetireBefore(ch.futureJobUID)
			cm.send(&SetNewPrevHash{ChannelID: ch.id, JobID: ch.futureJobUID, PrevHash: cm.pool.PrevHash})
			ch.currentJobUID = ch.futureJobUID
			ch.hasFuture = false
		} else {
			ch.sess.Registry.RetireAll()
			current := cm.newJob(ch, false)
			cm.sendJobMessage(ch, current, false)
			ch.currentJobUID = current.UID
		}
		future := cm.newJob(ch, true)
		cm.sendJobMessage(ch, future, true)
		ch.futureJobUID = future.UID
		ch.hasFuture = true
	}
}

// Terminate tears down every channel's session and unregisters this
// processor from the pool's block clock.
func (cm *ChannelManager) Terminate() {
	cm.mu.Lock()
	channels := make([]*channelState, 0, len(cm.channels))
	for _, ch := range cm.channels {
		channels = append(channels, ch)
	}
	cm.channels = make(map[uint32]*channelState)
	cm.mu.Unlock()
	for _, ch := range channels {
		ch.sess.Terminate()
	}
	cm.pool.UnregisterProcessor(cm.ConnID)
}

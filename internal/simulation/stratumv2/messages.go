// Package stratumv2 implements the Stratum V2 mining-protocol message
// family (in-memory, unencoded — wire (de)serialization is out of
// scope) and the pool-side channel manager / miner-side state machine
// that exchange them, per spec.md §4.7/§4.8.
package stratumv2

import "github.com/braiins-sim/stratum-poolsim/internal/simulation/target"

// Kind discriminates the V2 message set for tagged-union dispatch.
type Kind int

const (
	KindSetupConnection Kind = iota
	KindSetupConnectionSuccess
	KindSetupConnectionError
	KindOpenStandardMiningChannel
	KindOpenStandardMiningChannelSuccess
	KindOpenExtendedMiningChannel
	KindOpenExtendedMiningChannelSuccess
	KindOpenMiningChannelError
	KindUpdateChannel
	KindUpdateChannelError
	KindCloseChannel
	KindSetExtranoncePrefix
	KindSubmitSharesStandard
	KindSubmitSharesExtended
	KindSubmitSharesSuccess
	KindSubmitSharesError
	KindNewMiningJob
	KindNewExtendedMiningJob
	KindSetNewPrevHash
	KindSetCustomMiningJob
	KindSetCustomMiningJobSuccess
	KindSetCustomMiningJobError
	KindSetTarget
	KindReconnect
	KindSetGroupChannel
)

// Message is the common interface every V2 wire message implements.
type Message interface {
	Kind() Kind
}

// ChannelFlag is a bitmask of SetupConnection/channel capability
// flags. Only the subset spec.md names is modeled.
type ChannelFlag uint32

const (
	FlagSupportsExtendedChannels ChannelFlag = 1 << iota
	FlagRequiresStandardJobs
)

// DeviceInfo carries the miner device fields SetupConnection reports,
// per spec.md §4.8.
type DeviceInfo struct {
	Vendor          string
	HardwareVersion string
	Firmware        string
	DeviceID        string
}

// SetupConnection is sent once per connection to negotiate protocol
// version and flags.
type SetupConnection struct {
	Protocol    string // "MINING"
	MinVersion  uint16
	MaxVersion  uint16
	Flags       ChannelFlag
	EndpointHost string
	EndpointPort uint16
	Device      DeviceInfo
}

func (*SetupConnection) Kind() Kind { return KindSetupConnection }

// SetupConnectionSuccess answers a SetupConnection.
type SetupConnectionSuccess struct {
	UsedVersion uint16
	Flags       ChannelFlag
}

func (*SetupConnectionSuccess) Kind() Kind { return KindSetupConnectionSuccess }

// SetupConnectionError rejects a SetupConnection (e.g. a second one on
// the same connection).
type SetupConnectionError struct {
	Reason string
}

func (*SetupConnectionError) Kind() Kind { return KindSetupConnectionError }

// OpenStandardMiningChannel requests a new standard channel.
type OpenStandardMiningChannel struct {
	ReqID           uint32
	User            string
	NominalHashrate float64 // hashes/sec
	MaxTarget       target.Target
}

func (*OpenStandardMiningChannel) Kind() Kind { return KindOpenStandardMiningChannel }

// OpenStandardMiningChannelSuccess answers with the assigned channel
// and its starting target.
type OpenStandardMiningChannelSuccess struct {
	ReqID     uint32
	ChannelID uint32
	Target    target.Target
	ExtranoncePrefix string
}

func (*OpenStandardMiningChannelSuccess) Kind() Kind { return KindOpenStandardMiningChannelSuccess }

// OpenExtendedMiningChannel requests a new extended channel, carrying
// the miner's minimum acceptable extranonce2 size.
type OpenExtendedMiningChannel struct {
	ReqID             uint32
	User              string
	NominalHashrate   float64
	MaxTarget         target.Target
	MinExtranonceSize int
}

func (*OpenExtendedMiningChannel) Kind() Kind { return KindOpenExtendedMiningChannel }

// OpenExtendedMiningChannelSuccess answers an extended channel open.
type OpenExtendedMiningChannelSuccess struct {
	ReqID             uint32
	ChannelID         uint32
	Target            target.Target
	ExtranoncePrefix  string
	Extranonce2Size   int
}

func (*OpenExtendedMiningChannelSuccess) Kind() Kind { return KindOpenExtendedMiningChannelSuccess }

// OpenMiningChannelError rejects either channel-open request.
type OpenMiningChannelError struct {
	ReqID  uint32
	Reason string
}

func (*OpenMiningChannelError) Kind() Kind { return KindOpenMiningChannelError }

// UpdateChannel lets a miner update its declared hashrate/max target.
type UpdateChannel struct {
	ChannelID       uint32
	NominalHashrate float64
	MaxTarget       target.Target
}

func (*UpdateChannel) Kind() Kind { return KindUpdateChannel }

// UpdateChannelError rejects an UpdateChannel.
type UpdateChannelError struct {
	ChannelID uint32
	Reason    string
}

func (*UpdateChannelError) Kind() Kind { return KindUpdateChannelError }

// CloseChannel tears down a channel explicitly.
type CloseChannel struct {
	ChannelID uint32
	Reason    string
}

func (*CloseChannel) Kind() Kind { return KindCloseChannel }

// SetExtranoncePrefix reassigns a channel's extranonce prefix.
type SetExtranoncePrefix struct {
	ChannelID uint32
	Prefix    string
}

func (*SetExtranoncePrefix) Kind() Kind { return KindSetExtranoncePrefix }

// SubmitSharesStandard is a share submission on a standard channel.
type SubmitSharesStandard struct {
	ChannelID     uint32
	SequenceNum   uint32
	JobID         uint64
	Nonce         uint64
	Ntime         uint32
	Version       uint32
}

func (*SubmitSharesStandard) Kind() Kind { return KindSubmitSharesStandard }

// SubmitSharesExtended is a share submission on an extended channel,
// additionally carrying the miner-chosen extranonce2.
type SubmitSharesExtended struct {
	ChannelID   uint32
	SequenceNum uint32
	JobID       uint64
	Nonce       uint64
	Ntime       uint32
	Version     uint32
	Extranonce2 string
}

func (*SubmitSharesExtended) Kind() Kind { return KindSubmitSharesExtended }

// SubmitSharesSuccess acknowledges one or more accepted shares.
type SubmitSharesSuccess struct {
	ChannelID              uint32
	LastSequenceNumber     uint32
	NewSubmitsAcceptedCount uint32
	NewSharesSum           float64
}

func (*SubmitSharesSuccess) Kind() Kind { return KindSubmitSharesSuccess }

// SubmitSharesError reports a rejected submission.
type SubmitSharesError struct {
	ChannelID   uint32
	SequenceNum uint32
	Reason      string
}

func (*SubmitSharesError) Kind() Kind { return KindSubmitSharesError }

// NewMiningJob announces a standard-channel job.
type NewMiningJob struct {
	ChannelID  uint32
	JobID      uint64
	FutureJob  bool
	MerkleRoot string
}

func (*NewMiningJob) Kind() Kind { return KindNewMiningJob }

// NewExtendedMiningJob announces an extended-channel job, carrying the
// merkle path and coinbase prefix/suffix placeholders.
type NewExtendedMiningJob struct {
	ChannelID  uint32
	JobID      uint64
	FutureJob  bool
	MerklePath []string
	CBPrefix   string
	CBSuffix   string
}

func (*NewExtendedMiningJob) Kind() Kind { return KindNewExtendedMiningJob }

// SetNewPrevHash switches a channel onto a (possibly previously
// future) job as the new current one.
type SetNewPrevHash struct {
	ChannelID     uint32
	JobID         uint64
	PrevHash      string
	MinNtime      uint32
	MaxNtimeOffset uint32
}

func (*SetNewPrevHash) Kind() Kind { return KindSetNewPrevHash }

// SetCustomMiningJob lets a miner propose its own job template.
type SetCustomMiningJob struct {
	ChannelID uint32
	ReqID     uint32
}

func (*SetCustomMiningJob) Kind() Kind { return KindSetCustomMiningJob }

// SetCustomMiningJobSuccess accepts a custom job.
type SetCustomMiningJobSuccess struct {
	ChannelID uint32
	ReqID     uint32
	JobID     uint64
}

func (*SetCustomMiningJobSuccess) Kind() Kind { return KindSetCustomMiningJobSuccess }

// SetCustomMiningJobError rejects a custom job.
type SetCustomMiningJobError struct {
	ChannelID uint32
	ReqID     uint32
	Reason    string
}

func (*SetCustomMiningJobError) Kind() Kind { return KindSetCustomMiningJobError }

// SetTarget updates a channel's target directly (vardiff), carrying a
// full 256-bit target rather than a raw difficulty float, per
// spec.md's own resolution of its target/difficulty ambiguity.
type SetTarget struct {
	ChannelID uint32
	MaxTarget target.Target
}

func (*SetTarget) Kind() Kind { return KindSetTarget }

// Reconnect asks the miner to reconnect elsewhere; modeled for
// completeness, never emitted by this simulator's own components.
type Reconnect struct {
	NewHost string
	NewPort uint16
}

func (*Reconnect) Kind() Kind { return KindReconnect }

// SetGroupChannel groups standard channels under one identifier;
// modeled for completeness, not exercised by spec.md's scenarios.
type SetGroupChannel struct {
	GroupChannelID uint32
	ChannelIDs     []uint32
}

func (*SetGroupChannel) Kind() Kind { return KindSetGroupChannel }

package stratumv2

import "errors"

// ErrNoHandler is returned by Dispatch* when msg's concrete type has no
// corresponding handler method — the caller logs it on the bus rather
// than treat it as fatal.
var ErrNoHandler = errors.New("stratumv2: no handler for message")

// PoolHandler is implemented by the pool-side channel manager.
type PoolHandler interface {
	HandleSetupConnection(*SetupConnection) error
	HandleOpenStandardMiningChannel(*OpenStandardMiningChannel) error
	HandleOpenExtendedMiningChannel(*OpenExtendedMiningChannel) error
	HandleUpdateChannel(*UpdateChannel) error
	HandleCloseChannel(*CloseChannel) error
	HandleSubmitSharesStandard(*SubmitSharesStandard) error
	HandleSubmitSharesExtended(*SubmitSharesExtended) error
}

// DispatchToPool type-switches msg onto the matching PoolHandler method.
func DispatchToPool(msg Message, h PoolHandler) error {
	switch m := msg.(type) {
	case *SetupConnection:
		return h.HandleSetupConnection(m)
	case *OpenStandardMiningChannel:
		return h.HandleOpenStandardMiningChannel(m)
	case *OpenExtendedMiningChannel:
		return h.HandleOpenExtendedMiningChannel(m)
	case *UpdateChannel:
		return h.HandleUpdateChannel(m)
	case *CloseChannel:
		return h.HandleCloseChannel(m)
	case *SubmitSharesStandard:
		return h.HandleSubmitSharesStandard(m)
	case *SubmitSharesExtended:
		return h.HandleSubmitSharesExtended(m)
	default:
		return ErrNoHandler
	}
}

// MinerHandler is implemented by the miner-side V2 connection.
type MinerHandler interface {
	HandleSetupConnectionSuccess(*SetupConnectionSuccess) error
	HandleSetupConnectionError(*SetupConnectionError) error
	HandleOpenStandardMiningChannelSuccess(*OpenStandardMiningChannelSuccess) error
	HandleOpenExtendedMiningChannelSuccess(*OpenExtendedMiningChannelSuccess) error
	HandleOpenMiningChannelError(*OpenMiningChannelError) error
	HandleNewMiningJob(*NewMiningJob) error
	HandleNewExtendedMiningJob(*NewExtendedMiningJob) error
	HandleSetNewPrevHash(*SetNewPrevHash) error
	HandleSetTarget(*SetTarget) error
	HandleSubmitSharesSuccess(*SubmitSharesSuccess) error
	HandleSubmitSharesError(*SubmitSharesError) error
}

// DispatchToMiner type-switches msg onto the matching MinerHandler method.
func DispatchToMiner(msg Message, h MinerHandler) error {
	switch m := msg.(type) {
	case *SetupConnectionSuccess:
		return h.HandleSetupConnectionSuccess(m)
	case *SetupConnectionError:
		return h.HandleSetupConnectionError(m)
	case *OpenStandardMiningChannelSuccess:
		return h.HandleOpenStandardMiningChannelSuccess(m)
	case *OpenExtendedMiningChannelSuccess:
		return h.HandleOpenExtendedMiningChannelSuccess(m)
	case *OpenMiningChannelError:
		return h.HandleOpenMiningChannelError(m)
	case *NewMiningJob:
		return h.HandleNewMiningJob(m)
	case *NewExtendedMiningJob:
		return h.HandleNewExtendedMiningJob(m)
	case *SetNewPrevHash:
		return h.HandleSetNewPrevHash(m)
	case *SetTarget:
		return h.HandleSetTarget(m)
	case *SubmitSharesSuccess:
		return h.HandleSubmitSharesSuccess(m)
	case *SubmitSharesError:
		return h.HandleSubmitSharesError(m)
	default:
		return ErrNoHandler
	}
}

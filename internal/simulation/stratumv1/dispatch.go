package stratumv1

import "errors"

// ErrNoHandler is returned by Dispatch* when msg's concrete type has no
// corresponding handler method — a recoverable error the caller logs
// on the event bus rather than treats as fatal, per spec.md §4.3/§7.
var ErrNoHandler = errors.New("stratumv1: no handler for message kind")

// PoolHandler receives the subset of V1 messages a pool-side connection
// processor accepts from a miner.
type PoolHandler interface {
	HandleConfigure(*Configure) error
	HandleAuthorize(*Authorize) error
	HandleSubscribe(*Subscribe) error
	HandleSubmit(*Submit) error
}

// DispatchToPool routes msg to the matching PoolHandler method.
func DispatchToPool(msg Message, h PoolHandler) error {
	switch m := msg.(type) {
	case *Configure:
		return h.HandleConfigure(m)
	case *Authorize:
		return h.HandleAuthorize(m)
	case *Subscribe:
		return h.HandleSubscribe(m)
	case *Submit:
		return h.HandleSubmit(m)
	default:
		return ErrNoHandler
	}
}

// MinerHandler receives the subset of V1 messages a miner-side
// connection processor accepts from the pool.
type MinerHandler interface {
	HandleConfigureResponse(*ConfigureResponse) error
	HandleSubscribeResponse(*SubscribeResponse) error
	HandleSetDifficulty(*SetDifficulty) error
	HandleNotify(*Notify) error
	HandleOkResult(*OkResult) error
	HandleErrorResult(*ErrorResult) error
}

// DispatchToMiner routes msg to the matching MinerHandler method.
func DispatchToMiner(msg Message, h MinerHandler) error {
	switch m := msg.(type) {
	case *ConfigureResponse:
		return h.HandleConfigureResponse(m)
	case *SubscribeResponse:
		return h.HandleSubscribeResponse(m)
	case *SetDifficulty:
		return h.HandleSetDifficulty(m)
	case *Notify:
		return h.HandleNotify(m)
	case *OkResult:
		return h.HandleOkResult(m)
	case *ErrorResult:
		return h.HandleErrorResult(m)
	default:
		return ErrNoHandler
	}
}

// Package stratumv1 implements the Stratum V1 wire message set and the
// pool-side/miner-side connection processors that exchange them over a
// netlink.Queue pair, per spec.md §4.5/§4.6.
package stratumv1

// Kind discriminates the V1 message set, used for the tagged-union
// dispatch in Dispatch{ToPool,ToMiner}.
type Kind int

const (
	KindConfigure Kind = iota
	KindConfigureResponse
	KindAuthorize
	KindSubscribe
	KindSubscribeResponse
	KindSetDifficulty
	KindSubmit
	KindNotify
	KindOkResult
	KindErrorResult
)

// Message is the common interface every V1 wire message implements.
type Message interface {
	Kind() Kind
}

// Configure is sent by the miner to negotiate protocol extensions; the
// simulator does not model any specific extension, only the
// request/response round trip.
type Configure struct {
	ReqID uint64
}

func (*Configure) Kind() Kind { return KindConfigure }

// ConfigureResponse answers a Configure.
type ConfigureResponse struct {
	ReqID uint64
}

func (*ConfigureResponse) Kind() Kind { return KindConfigureResponse }

// Authorize is a miner's worker-login request.
type Authorize struct {
	ReqID    uint64
	Username string
	Password string
}

func (*Authorize) Kind() Kind { return KindAuthorize }

// Subscribe requests a session and the extranonce assignment.
type Subscribe struct {
	ReqID     uint64
	UserAgent string
}

func (*Subscribe) Kind() Kind { return KindSubscribe }

// SubscribeResponse answers Subscribe with the session's extranonce.
type SubscribeResponse struct {
	ReqID           uint64
	Extranonce1     string
	Extranonce2Size int
}

func (*SubscribeResponse) Kind() Kind { return KindSubscribeResponse }

// SetDifficulty updates the miner's target ahead of the next Notify.
type SetDifficulty struct {
	Difficulty float64
}

func (*SetDifficulty) Kind() Kind { return KindSetDifficulty }

// Submit is a miner's share submission.
type Submit struct {
	ReqID    uint64
	Username string
	JobID    uint64
	Nonce    uint64
	Ntime    uint64
}

func (*Submit) Kind() Kind { return KindSubmit }

// Notify announces a job, optionally retiring all prior jobs
// (CleanJobs).
type Notify struct {
	JobID     uint64
	PrevHash  string
	CleanJobs bool
}

func (*Notify) Kind() Kind { return KindNotify }

// OkResult is a generic success response correlated by ReqID.
type OkResult struct {
	ReqID uint64
}

func (*OkResult) Kind() Kind { return KindOkResult }

// ErrorResult is a generic failure response correlated by ReqID.
type ErrorResult struct {
	ReqID   uint64
	Code    int
	Message string
}

func (*ErrorResult) Kind() Kind { return KindErrorResult }

// Package job implements the mining job registry: the set of block
// templates a session currently considers valid, with the monotonic
// identity scheme the pool uses to retire stale jobs in O(1).
package job

import (
	"sync"

	"github.com/braiins-sim/stratum-poolsim/internal/simulation/target"
)

// Job is one mining job offered to a session. PrevHash is an opaque
// simulation payload — there is no real block template, only enough
// structure to decide whether a submitted share references a
// still-valid job.
type Job struct {
	UID        uint64
	PrevHash   string
	CleanJobs  bool
	DiffTarget target.Target // target this job was issued at
}

// Validity classifies a job uid against a registry's watermark.
type Validity int

const (
	// Unknown means the uid was never issued by this registry —
	// submits against it are rejected, not stale.
	Unknown Validity = iota
	// Stale means the uid was issued but has since been retired.
	Stale
	// Valid means the uid is issued and still current.
	Valid
)

// Registry tracks the jobs a session has issued and their validity
// watermark. Jobs with UID < MinValidUID (the watermark set by
// RetireAll) are considered stale even though they have not been
// individually removed — this is what gives retirement O(1) cost
// instead of O(n) per-job invalidation.
type Registry struct {
	mu          sync.Mutex
	nextUID     uint64
	jobs        map[uint64]*Job
	minValidUID uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[uint64]*Job)}
}

// Add registers a new job and assigns it the next monotonic UID.
func (r *Registry) Add(prevHash string, cleanJobs bool, diffTarget target.Target) *Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextUID++
	j := &Job{UID: r.nextUID, PrevHash: prevHash, CleanJobs: cleanJobs, DiffTarget: diffTarget}
	r.jobs[j.UID] = j
	return j
}

// AddWithUID registers a job under a caller-supplied uid instead of
// assigning the next monotonic one — used on the receiving side of a
// protocol message that dictates the uid itself (e.g. a V1 miner
// mirroring the pool's job_id). It advances nextUID if uid is ahead of
// it, preserving the registry's monotonic-assignment invariant for any
// future local Add call.
func (r *Registry) AddWithUID(uid uint64, prevHash string, cleanJobs bool, diffTarget target.Target) *Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	j := &Job{UID: uid, PrevHash: prevHash, CleanJobs: cleanJobs, DiffTarget: diffTarget}
	r.jobs[uid] = j
	if uid > r.nextUID {
		r.nextUID = uid
	}
	return j
}

// Lookup classifies uid as Unknown, Stale, or Valid, returning the job
// itself whenever it is known (Stale or Valid) so callers can still
// read its DiffTarget for stale-share accounting.
func (r *Registry) Lookup(uid uint64) (*Job, Validity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[uid]
	if !ok {
		return nil, Unknown
	}
	if uid < r.minValidUID {
		return j, Stale
	}
	return j, Valid
}

// Get returns the job for uid and whether it is still valid (both
// present and at or above the retirement watermark).
func (r *Registry) Get(uid uint64) (*Job, bool) {
	j, v := r.Lookup(uid)
	return j, v == Valid
}

// Contains reports whether uid refers to a currently valid job, without
// returning it.
func (r *Registry) Contains(uid uint64) bool {
	_, ok := r.Get(uid)
	return ok
}

// RetireAll invalidates every job issued so far in O(1), by raising the
// watermark past the highest UID handed out. Jobs added afterwards are
// valid again regardless of their UID, since UIDs are never reused.
func (r *Registry) RetireAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.minValidUID = r.nextUID + 1
}

// RetireBefore raises the watermark to uid, retiring every job with a
// smaller uid while leaving uid itself (and anything newer) valid. It
// is a no-op if the watermark is already at or past uid. This is what
// a future-job pipeline needs: the job being promoted to current must
// survive the same retirement that invalidates everything older.
func (r *Registry) RetireBefore(uid uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if uid > r.minValidUID {
		r.minValidUID = uid
	}
}

// Prune drops entries for retired jobs from the underlying map so a
// long-running session doesn't accumulate unbounded stale job state.
// It is safe to call periodically; it never affects validity, only
// memory.
func (r *Registry) Prune() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for uid := range r.jobs {
		if uid < r.minValidUID {
			delete(r.jobs, uid)
		}
	}
}

package crawler

import "sync"

// visitState is the lifecycle of one URL in the Registry.
type visitState int

const (
	// stateUnclaimed means the URL is known but no task owns it yet.
	stateUnclaimed visitState = iota

	// stateClaimed means exactly one task owns the URL and is fetching it.
	stateClaimed

	// stateDone means the URL's fetch completed, successfully or not.
	stateDone
)

// Registry is the concurrent URL set shared by every task of a crawl.
// Each URL moves through unclaimed, claimed, done exactly once; the
// unclaimed-to-claimed transition is the deduplication point.
//
// Design decision: We guard a plain map with a mutex rather than using
// sync.Map because:
//  1. Claim is a check-and-set, which sync.Map cannot express atomically
//     without a retry loop
//  2. The critical sections are a few map operations, far cheaper than
//     the network fetches they guard
//  3. A mutex makes the linearizability argument trivial to review
type Registry struct {
	mu     sync.Mutex
	states map[string]visitState
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{states: make(map[string]visitState)}
}

// Register inserts url as unclaimed if it has never been seen.
// It returns true on first insertion and false if the URL is already
// known in any state. Discoverers use this to decide whether a link
// joins the next wave: no matter how many pages link to a URL, only the
// first Register wins, so the URL is scheduled exactly once.
func (r *Registry) Register(url string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.states[url]; ok {
		return false
	}
	r.states[url] = stateUnclaimed
	return true
}

// Claim atomically transitions url from absent or unclaimed to claimed
// and returns true. It returns false if the URL was already claimed or
// done. At most one caller ever receives true for a given URL; a caller
// that loses the claim must treat the URL as someone else's work.
func (r *Registry) Claim(url string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.states[url]
	if ok && state != stateUnclaimed {
		return false
	}
	r.states[url] = stateClaimed
	return true
}

// Done marks url's fetch as complete. Success and exhausted retries
// both count; done means no task will touch the URL again.
func (r *Registry) Done(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.states[url] = stateDone
}

// RegistryStats is a point-in-time census of the registry.
type RegistryStats struct {
	// Known is the number of URLs ever registered or claimed.
	Known int

	// Claimed is the number of URLs currently being fetched.
	Claimed int

	// Done is the number of URLs whose fetch has completed.
	Done int
}

// Stats counts the URLs in each state.
func (r *Registry) Stats() RegistryStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := RegistryStats{Known: len(r.states)}
	for _, state := range r.states {
		switch state {
		case stateClaimed:
			stats.Claimed++
		case stateDone:
			stats.Done++
		}
	}
	return stats
}

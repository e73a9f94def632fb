package hybrid

import "github.com/poiesic/auditel/core"

// Monitor provides hooks to observe a hybrid search.
// Implement this interface to track the stages of a request.
//
// The local and web stages run concurrently, so AfterLocalSearch,
// AfterWebSearch and WebSearchFailed may be called from different
// goroutines. Implementations must be safe for concurrent use.
type Monitor interface {
	Start(query, category string, useWeb bool)
	AfterLocalSearch(hits []core.SearchHit)
	AfterWebSearch(bundle *core.ResultBundle)
	WebSearchFailed(err error)
	Finish(result *core.HybridResult)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_, _ string, _ bool)           {}
func (n *noopMonitor) AfterLocalSearch(_ []core.SearchHit) {}
func (n *noopMonitor) AfterWebSearch(_ *core.ResultBundle) {}
func (n *noopMonitor) WebSearchFailed(_ error)             {}
func (n *noopMonitor) Finish(_ *core.HybridResult)         {}

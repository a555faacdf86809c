package reconcile

import (
	"sync"

	"github.com/trezcool/darasa/core/change"
)

type (
	// Resolution is a pending request that reached a terminal status.
	Resolution struct {
		Request change.ChangeRequest
		Outcome change.Status
	}

	// Notifier receives the two notification tiers. PendingCount is a
	// recomputed-every-tick gauge; ResolutionAlert fires once per genuine
	// pending-to-terminal transition.
	Notifier interface {
		PendingCount(mt change.ModelType, n int)
		ResolutionAlert(res Resolution)
	}

	// Dispatcher fans resolutions out to notifiers at most once per
	// (request id, outcome). The dedup record is owned here so pollers stay
	// stateless about what was already announced.
	Dispatcher struct {
		mu        sync.Mutex
		notifiers []Notifier
		seen      map[dispatchKey]bool
	}

	dispatchKey struct {
		id      int
		outcome change.Status
	}
)

func NewDispatcher(notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{
		notifiers: notifiers,
		seen:      make(map[dispatchKey]bool),
	}
}

// Dispatch announces a resolution, reporting whether the alert actually fired.
// A repeat of an already-announced (id, outcome) pair is a no-op.
func (d *Dispatcher) Dispatch(res Resolution) bool {
	key := dispatchKey{id: res.Request.ID, outcome: res.Outcome}

	d.mu.Lock()
	if d.seen[key] {
		d.mu.Unlock()
		return false
	}
	d.seen[key] = true
	notifiers := d.notifiers
	d.mu.Unlock()

	for _, n := range notifiers {
		n.ResolutionAlert(res)
	}
	return true
}

// Counts pushes the per-type pending gauges to every notifier.
func (d *Dispatcher) Counts(counts map[change.ModelType]int) {
	d.mu.Lock()
	notifiers := d.notifiers
	d.mu.Unlock()

	for _, n := range notifiers {
		for mt, c := range counts {
			n.PendingCount(mt, c)
		}
	}
}

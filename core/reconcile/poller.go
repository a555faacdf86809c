package reconcile

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/change"
	"github.com/trezcool/darasa/core/draft"
	"github.com/trezcool/darasa/core/record"
)

// Consumer configures one polling loop. Each view of the app runs its own,
// with its own cadence; the originals are 30s for attendance and marks, 15s
// for fees and 10s for test marks.
type Consumer struct {
	Name     string
	Types    []change.ModelType
	Scope    draft.ScopeKey
	Interval time.Duration
	// Timeout bounds one tick's requests and must stay strictly shorter than
	// Interval so a slow tick cannot pile onto the next one.
	Timeout time.Duration
}

// Poller periodically reconciles one consumer's view against the ledger:
// pending badge counts every tick, then the approved/rejected deltas past the
// watermark, each dispatched once and folded into the draft cache.
//
// Backpressure is skip-if-busy: at most one tick is ever in flight, later
// firings while one runs are dropped. Stop bumps a generation counter and a
// tick that outlives its generation discards its results unapplied.
type Poller struct {
	cons   Consumer
	ledger change.Ledger
	store  record.Store
	cache  *draft.Cache
	disp   *Dispatcher
	mark   *Watermark
	logger core.Logger

	inFlight int32
	gen      int64

	// first successful tick only establishes the watermark; resolutions that
	// predate the consumer's existence are not announced. Only ever touched by
	// the single in-flight tick.
	baselined bool
}

func NewPoller(cons Consumer, ledger change.Ledger, store record.Store, cache *draft.Cache,
	disp *Dispatcher, logger core.Logger) *Poller {

	if cons.Timeout <= 0 || cons.Timeout >= cons.Interval {
		cons.Timeout = cons.Interval / 2
	}
	return &Poller{
		cons:   cons,
		ledger: ledger,
		store:  store,
		cache:  cache,
		disp:   disp,
		mark:   NewWatermark(),
		logger: logger,
	}
}

// Watermark exposes the consumer's cursor, mainly for inspection in tests.
func (p *Poller) Watermark() change.Cursor { return p.mark.Cursor() }

// Run ticks until ctx is done. It never returns an error: a failed tick is
// logged and retried at the next interval, the loop itself stays up.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cons.Interval)
	defer ticker.Stop()

	p.fire(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.fire(ctx)
		}
	}
}

// Stop invalidates any in-flight tick. A subsequent Run (or RunOnce) starts a
// fresh generation; stale results are dropped before touching shared state.
func (p *Poller) Stop() {
	atomic.AddInt64(&p.gen, 1)
}

// RunOnce performs a single synchronous tick, honoring the in-flight gate.
// Reports whether the tick ran (false means one was already in flight).
func (p *Poller) RunOnce(ctx context.Context) bool {
	if !atomic.CompareAndSwapInt32(&p.inFlight, 0, 1) {
		return false
	}
	defer atomic.StoreInt32(&p.inFlight, 0)
	p.tick(ctx, atomic.LoadInt64(&p.gen))
	return true
}

func (p *Poller) fire(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&p.inFlight, 0, 1) {
		p.logger.Debug("poll tick skipped, previous still in flight", map[string]interface{}{"consumer": p.cons.Name})
		return
	}
	gen := atomic.LoadInt64(&p.gen)
	go func() {
		defer atomic.StoreInt32(&p.inFlight, 0)
		p.tick(ctx, gen)
	}()
}

func (p *Poller) stale(gen int64) bool {
	return atomic.LoadInt64(&p.gen) != gen
}

func (p *Poller) tick(ctx context.Context, gen int64) {
	ctx, cancel := context.WithTimeout(ctx, p.cons.Timeout)
	defer cancel()

	pending, err := p.ledger.ListPending(ctx, p.cons.Types...)
	if err != nil {
		p.logger.Error("listing pending requests", err, map[string]interface{}{"consumer": p.cons.Name})
		return
	}
	counts := make(map[change.ModelType]int, len(p.cons.Types))
	for _, mt := range p.cons.Types {
		counts[mt] = 0
	}
	for _, req := range pending {
		counts[req.ModelType]++
	}
	if p.stale(gen) {
		return
	}
	p.disp.Counts(counts)

	since := p.mark.Cursor()
	approved, err := p.ledger.ListApproved(ctx, since, p.cons.Types...)
	if err != nil {
		p.logger.Error("listing approved requests", err, map[string]interface{}{"consumer": p.cons.Name})
		return
	}
	rejected, err := p.ledger.ListRejected(ctx, since, p.cons.Types...)
	if err != nil {
		p.logger.Error("listing rejected requests", err, map[string]interface{}{"consumer": p.cons.Name})
		return
	}

	resolutions := make([]Resolution, 0, len(approved)+len(rejected))
	for _, req := range approved {
		if since.Newer(req) {
			resolutions = append(resolutions, Resolution{Request: req, Outcome: change.StatusApproved})
		}
	}
	for _, req := range rejected {
		if since.Newer(req) {
			resolutions = append(resolutions, Resolution{Request: req, Outcome: change.StatusRejected})
		}
	}

	if !p.baselined {
		// establish the cursor silently; history predating this consumer is
		// not news
		for _, res := range resolutions {
			p.mark.Observe(res.Request)
		}
		if !p.stale(gen) {
			p.baselined = true
		}
		return
	}

	for _, res := range resolutions {
		if p.stale(gen) {
			return
		}
		p.disp.Dispatch(res)
		if err := p.refresh(ctx, gen, res.Request); err != nil {
			p.logger.Error("refreshing resolved entity", err,
				map[string]interface{}{"consumer": p.cons.Name, "id": res.Request.ID})
			// watermark still advances: the dispatcher already announced it
			// and the next full refetch will heal the snapshot
		}
		p.mark.Observe(res.Request)
	}
}

// refresh refetches the committed state of a resolved request's target and
// folds the collapsed overlay into the draft cache.
func (p *Poller) refresh(ctx context.Context, gen int64, req change.ChangeRequest) error {
	ent, err := p.store.GetEntity(ctx, req.ModelType, req.ObjectID)
	if err != nil {
		if errors.Cause(err) == record.ErrNotFound {
			// approved deletes land here
			if !p.stale(gen) {
				p.cache.Drop(p.cons.Scope, req.ObjectID)
			}
			return nil
		}
		return err
	}
	if p.stale(gen) {
		return nil
	}
	view := record.Merge(ent, &req)
	if err := p.cache.ApplyRemoteUpdate(p.cons.Scope, req.ObjectID, view); err != nil {
		if errors.Cause(err) == draft.ErrNoScope {
			return nil // consumer's scope was never opened; nothing to update
		}
		return err
	}
	return nil
}

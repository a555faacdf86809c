package reconcile

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/trezcool/darasa/core/change"
	"github.com/trezcool/darasa/core/draft"
	"github.com/trezcool/darasa/core/record"
)

type (
	ledgerStub struct {
		mu       sync.Mutex
		pending  []change.ChangeRequest
		approved []change.ChangeRequest
		rejected []change.ChangeRequest

		onListApproved func()
		blockPending   chan struct{} // when set, ListPending waits on it
	}

	storeStub struct {
		mu       sync.Mutex
		entities map[string]record.Entity // "modelType:objectID"
	}

	nopLogger struct{}
)

func (nopLogger) Debug(msg string, args ...interface{}) {}
func (nopLogger) Info(msg string, args ...interface{})  {}
func (nopLogger) Warn(msg string, args ...interface{})  {}
func (nopLogger) Error(msg string, args ...interface{}) {}
func (nopLogger) Fatal(msg string, args ...interface{}) {}

func (l *ledgerStub) ListPending(ctx context.Context, types ...change.ModelType) ([]change.ChangeRequest, error) {
	if l.blockPending != nil {
		<-l.blockPending
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]change.ChangeRequest(nil), l.pending...), nil
}

func (l *ledgerStub) ListApproved(ctx context.Context, since change.Cursor, types ...change.ModelType) ([]change.ChangeRequest, error) {
	if l.onListApproved != nil {
		l.onListApproved()
	}
	return filterNewer(l, l.approved, since), nil
}

func (l *ledgerStub) ListRejected(ctx context.Context, since change.Cursor, types ...change.ModelType) ([]change.ChangeRequest, error) {
	return filterNewer(l, l.rejected, since), nil
}

func (l *ledgerStub) Submit(ctx context.Context, ncr change.NewChangeRequest) (change.ChangeRequest, error) {
	return change.ChangeRequest{}, nil
}

func filterNewer(l *ledgerStub, reqs []change.ChangeRequest, since change.Cursor) []change.ChangeRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []change.ChangeRequest
	for _, req := range reqs {
		if since.Newer(req) {
			out = append(out, req)
		}
	}
	return out
}

func (s *storeStub) GetEntity(ctx context.Context, mt change.ModelType, id string) (record.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ent, ok := s.entities[string(mt)+":"+id]; ok {
		return ent, nil
	}
	return record.Entity{}, record.ErrNotFound
}

func (s *storeStub) ListEntities(ctx context.Context, mt change.ModelType, q record.ScopeQuery) ([]record.Entity, error) {
	return nil, nil
}

var testScope = draft.ScopeKey{ClassID: 1, Gender: "male"}

func newTestPoller(ledger *ledgerStub, store *storeStub, notifier *notifierMock) (*Poller, *draft.Cache) {
	cache := draft.NewCache()
	cache.Select(testScope)
	cons := Consumer{
		Name:     "marks",
		Types:    []change.ModelType{change.Marks},
		Scope:    testScope,
		Interval: time.Minute,
	}
	return NewPoller(cons, ledger, store, cache, NewDispatcher(notifier), nopLogger{}), cache
}

func approvedReq(id int, seq int64, objectID string) change.ChangeRequest {
	now := time.Now().UTC()
	return change.ChangeRequest{
		ID:         id,
		Seq:        seq,
		ModelType:  change.Marks,
		ObjectID:   objectID,
		ChangeType: change.Update,
		OldData:    change.FieldSet{"marks": 60},
		NewData:    change.FieldSet{"marks": 75},
		Status:     change.StatusApproved,
		ReviewedAt: &now,
	}
}

func TestPoller_BaselineTick(t *testing.T) {
	ledger := &ledgerStub{approved: []change.ChangeRequest{approvedReq(1, 4, "s1")}}
	store := &storeStub{entities: map[string]record.Entity{}}
	notifier := newNotifierMock()
	p, _ := newTestPoller(ledger, store, notifier)

	if ok := p.RunOnce(context.Background()); !ok {
		t.Fatal("RunOnce() skipped")
	}

	// history predating the consumer is not announced, only the cursor moves
	if len(notifier.alerts) != 0 {
		t.Errorf("baseline dispatched %d alerts, want 0", len(notifier.alerts))
	}
	if got := p.Watermark().Seq; got != 4 {
		t.Errorf("Watermark().Seq = %d, want 4", got)
	}
}

func TestPoller_DispatchesNewResolutions(t *testing.T) {
	ledger := &ledgerStub{}
	store := &storeStub{entities: map[string]record.Entity{
		"marks:s1": {ID: "s1", Type: change.Marks, Fields: change.FieldSet{"marks": 75}},
	}}
	notifier := newNotifierMock()
	p, cache := newTestPoller(ledger, store, notifier)

	p.RunOnce(context.Background()) // baseline

	ledger.mu.Lock()
	ledger.approved = []change.ChangeRequest{approvedReq(1, 4, "s1")}
	ledger.mu.Unlock()

	p.RunOnce(context.Background())

	if len(notifier.alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(notifier.alerts))
	}
	if res := notifier.alerts[0]; res.Outcome != change.StatusApproved || res.Request.ID != 1 {
		t.Errorf("alert = %+v", res)
	}
	snap, ok := cache.Snapshot(testScope, "s1")
	if !ok {
		t.Fatal("snapshot not refreshed")
	}
	if got := snap.Fields["marks"].Committed; got != 75 {
		t.Errorf("snapshot marks = %v, want committed 75", got)
	}
	if snap.HasPending {
		t.Error("resolved overlay still pending")
	}
	if got := p.Watermark().Seq; got != 4 {
		t.Errorf("Watermark().Seq = %d, want 4", got)
	}

	// replaying the same window stays quiet
	p.RunOnce(context.Background())
	if len(notifier.alerts) != 1 {
		t.Errorf("replay dispatched again: %d alerts", len(notifier.alerts))
	}
}

func TestPoller_PendingCounts(t *testing.T) {
	ledger := &ledgerStub{pending: []change.ChangeRequest{
		{ID: 1, ModelType: change.Marks, ObjectID: "s1", Status: change.StatusPending},
		{ID: 2, ModelType: change.Marks, ObjectID: "s2", Status: change.StatusPending},
	}}
	store := &storeStub{entities: map[string]record.Entity{}}
	notifier := newNotifierMock()
	p, _ := newTestPoller(ledger, store, notifier)

	p.RunOnce(context.Background())

	if got := notifier.counts[change.Marks]; got != 2 {
		t.Errorf("counts[marks] = %d, want 2", got)
	}

	// counts are a gauge, recomputed every tick
	ledger.mu.Lock()
	ledger.pending = nil
	ledger.mu.Unlock()
	p.RunOnce(context.Background())
	if got := notifier.counts[change.Marks]; got != 0 {
		t.Errorf("counts[marks] = %d, want 0 after resolution", got)
	}
}

func TestPoller_ApprovedDeleteDropsEntity(t *testing.T) {
	ledger := &ledgerStub{}
	store := &storeStub{entities: map[string]record.Entity{}} // already gone upstream
	notifier := newNotifierMock()
	p, cache := newTestPoller(ledger, store, notifier)
	cache.Select(testScope, record.OverlayView{ObjectID: "s1", Type: change.Marks})

	p.RunOnce(context.Background()) // baseline

	del := approvedReq(1, 4, "s1")
	del.ChangeType = change.Delete
	ledger.mu.Lock()
	ledger.approved = []change.ChangeRequest{del}
	ledger.mu.Unlock()

	p.RunOnce(context.Background())

	if _, ok := cache.Snapshot(testScope, "s1"); ok {
		t.Error("deleted entity still cached")
	}
	if got := p.Watermark().Seq; got != 4 {
		t.Errorf("Watermark().Seq = %d, want 4", got)
	}
}

func TestPoller_SkipIfBusy(t *testing.T) {
	block := make(chan struct{})
	ledger := &ledgerStub{blockPending: block}
	store := &storeStub{entities: map[string]record.Entity{}}
	p, _ := newTestPoller(ledger, store, newNotifierMock())

	done := make(chan bool)
	go func() { done <- p.RunOnce(context.Background()) }()

	// wait for the first tick to be in flight
	time.Sleep(20 * time.Millisecond)
	if ok := p.RunOnce(context.Background()); ok {
		t.Error("RunOnce() ran while another tick was in flight")
	}

	close(block)
	if ok := <-done; !ok {
		t.Error("first RunOnce() did not run")
	}
}

func TestPoller_StaleGenerationDropped(t *testing.T) {
	ledger := &ledgerStub{}
	store := &storeStub{entities: map[string]record.Entity{
		"marks:s1": {ID: "s1", Type: change.Marks, Fields: change.FieldSet{"marks": 75}},
	}}
	notifier := newNotifierMock()
	p, _ := newTestPoller(ledger, store, notifier)

	p.RunOnce(context.Background()) // baseline

	ledger.mu.Lock()
	ledger.approved = []change.ChangeRequest{approvedReq(1, 4, "s1")}
	ledger.mu.Unlock()
	ledger.onListApproved = func() { p.Stop() } // consumer stopped mid-tick

	p.RunOnce(context.Background())

	if len(notifier.alerts) != 0 {
		t.Errorf("stale tick dispatched %d alerts, want 0", len(notifier.alerts))
	}
	if got := p.Watermark().Seq; got != 0 {
		t.Errorf("stale tick advanced watermark to %d", got)
	}
}

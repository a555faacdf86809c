package reconcile

import (
	"sync"

	"github.com/trezcool/darasa/core/change"
)

// Watermark is a consumer's monotonically non-decreasing resolution cursor.
// Observe advances it to the furthest resolved request seen; it never
// regresses, so replays of an already-processed window are harmless.
type Watermark struct {
	mu  sync.Mutex
	cur change.Cursor
}

func NewWatermark() *Watermark { return &Watermark{} }

func (w *Watermark) Observe(req change.ChangeRequest) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if req.Seq > w.cur.Seq {
		w.cur.Seq = req.Seq
	}
	if req.ReviewedAt != nil && req.ReviewedAt.After(w.cur.ReviewedAt) {
		w.cur.ReviewedAt = *req.ReviewedAt
	}
}

func (w *Watermark) Cursor() change.Cursor {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cur
}

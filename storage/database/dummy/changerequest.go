package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/darasa/core/change"
)

type changeRequestRepository struct {
	db *changeTable
}

var _ change.Repository = (*changeRequestRepository)(nil) // interface compliance check

func NewChangeRequestRepository(db *DB) change.Repository {
	return &changeRequestRepository{db: db.change}
}

func (repo *changeRequestRepository) query() []change.ChangeRequest {
	reqs := make([]change.ChangeRequest, 0, len(repo.db.table))
	for _, cr := range repo.db.table {
		reqs = append(reqs, *cr)
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].Seq < reqs[j].Seq })
	return reqs
}

// CreateChangeRequest stores a new pending request. An existing pending
// request on the same target is superseded in place: it keeps its id but takes
// the new submission's data and a fresh seq.
func (repo *changeRequestRepository) CreateChangeRequest(ctx context.Context, cr change.ChangeRequest) (change.ChangeRequest, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, existing := range repo.db.table {
		if existing.Status == change.StatusPending &&
			existing.ModelType == cr.ModelType && existing.ObjectID == cr.ObjectID {
			cr.ID = existing.ID
			repo.db.seq++
			cr.Seq = repo.db.seq
			repo.db.table[cr.ID] = &cr
			return cr, nil
		}
	}

	repo.db.pk++
	repo.db.seq++
	cr.ID = repo.db.pk
	cr.Seq = repo.db.seq
	repo.db.table[cr.ID] = &cr
	return cr, nil
}

func (repo *changeRequestRepository) GetChangeRequest(ctx context.Context, id int) (change.ChangeRequest, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if cr, ok := repo.db.table[id]; ok {
		return *cr, nil
	}
	return change.ChangeRequest{}, change.ErrRequestNotFound
}

func (repo *changeRequestRepository) QueryByStatus(ctx context.Context, status change.Status, since change.Cursor, types ...change.ModelType) ([]change.ChangeRequest, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var reqs []change.ChangeRequest
	for _, cr := range repo.query() {
		if cr.Status != status {
			continue
		}
		if len(types) > 0 && !typeMatch(cr.ModelType, types) {
			continue
		}
		if cr.IsTerminal() && !since.Newer(cr) && (since.Seq > 0 || !since.ReviewedAt.IsZero()) {
			continue
		}
		reqs = append(reqs, cr)
	}
	return reqs, nil
}

func (repo *changeRequestRepository) ReviewChangeRequest(ctx context.Context, cr change.ChangeRequest) (change.ChangeRequest, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	existing, ok := repo.db.table[cr.ID]
	if !ok {
		return change.ChangeRequest{}, change.ErrRequestNotFound
	}
	if existing.Status != change.StatusPending {
		return change.ChangeRequest{}, change.ErrAlreadyReviewed
	}
	// resolution gets its own cursor position
	repo.db.seq++
	cr.Seq = repo.db.seq
	repo.db.table[cr.ID] = &cr
	return cr, nil
}

func typeMatch(mt change.ModelType, types []change.ModelType) bool {
	for _, t := range types {
		if t == mt {
			return true
		}
	}
	return false
}

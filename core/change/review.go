package change

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var (
	ErrRequestNotFound  = errors.New("change request not found")
	ErrAlreadyReviewed  = errors.New("change request already reviewed")
	ErrReviewOwnRequest = errors.New("cannot review own change request")

	nowFunc = time.Now // mockable
)

type (
	// Repository is the persistence surface of the ledger itself, used by the
	// resolving authority. Create issues the id and seq and supersedes any
	// pending request on the same (model_type, object_id).
	Repository interface {
		CreateChangeRequest(ctx context.Context, cr ChangeRequest) (ChangeRequest, error)
		GetChangeRequest(ctx context.Context, id int) (ChangeRequest, error)
		QueryByStatus(ctx context.Context, status Status, since Cursor, types ...ModelType) ([]ChangeRequest, error)
		ReviewChangeRequest(ctx context.Context, cr ChangeRequest) (ChangeRequest, error)
	}

	// RecordWriter commits an approved request's data to the record store.
	RecordWriter interface {
		ApplyChange(ctx context.Context, req ChangeRequest) error
	}

	// ReviewService is the resolving authority: it lists the ledger and turns
	// pending requests terminal. Approval applies the proposed data to the
	// committed records before the request is marked; a failed apply leaves the
	// request pending.
	ReviewService struct {
		repo    Repository
		records RecordWriter
		logger  core.Logger
	}
)

func NewReviewService(repo Repository, records RecordWriter, logger core.Logger) *ReviewService {
	return &ReviewService{
		repo:    repo,
		records: records,
		logger:  logger,
	}
}

// ReviewService doubles as the in-process Ledger for the reference server's
// own submission gateway.
var _ Ledger = (*ReviewService)(nil)

func (svc *ReviewService) ListPending(ctx context.Context, types ...ModelType) ([]ChangeRequest, error) {
	return svc.repo.QueryByStatus(ctx, StatusPending, Cursor{}, types...)
}

func (svc *ReviewService) ListApproved(ctx context.Context, since Cursor, types ...ModelType) ([]ChangeRequest, error) {
	return svc.repo.QueryByStatus(ctx, StatusApproved, since, types...)
}

func (svc *ReviewService) ListRejected(ctx context.Context, since Cursor, types ...ModelType) ([]ChangeRequest, error) {
	return svc.repo.QueryByStatus(ctx, StatusRejected, since, types...)
}

func (svc *ReviewService) Submit(ctx context.Context, ncr NewChangeRequest) (ChangeRequest, error) {
	return svc.Create(ctx, ncr)
}

func (svc *ReviewService) Get(ctx context.Context, id int) (ChangeRequest, error) {
	return svc.repo.GetChangeRequest(ctx, id)
}

func (svc *ReviewService) ListByStatus(ctx context.Context, status Status, since Cursor, types ...ModelType) ([]ChangeRequest, error) {
	return svc.repo.QueryByStatus(ctx, status, since, types...)
}

// Create records a new submission on the ledger on behalf of the gateway.
func (svc *ReviewService) Create(ctx context.Context, ncr NewChangeRequest) (ChangeRequest, error) {
	cr := ChangeRequest{
		ModelType:   ncr.ModelType,
		ObjectID:    ncr.ObjectID,
		ChangeType:  ncr.ChangeType,
		OldData:     ncr.OldData,
		NewData:     ncr.NewData,
		Notes:       ncr.Notes,
		ClientRef:   ncr.ClientRef,
		RequestedBy: ncr.RequestedBy,
		Status:      StatusPending,
		RequestedAt: nowFunc().UTC(),
	}
	cr.Details = cr.Summary()
	return svc.repo.CreateChangeRequest(ctx, cr)
}

// Approve commits the request's proposed data and marks it approved.
func (svc *ReviewService) Approve(ctx context.Context, sess core.Session, id int, notes string) (ChangeRequest, error) {
	return svc.review(ctx, sess, id, StatusApproved, notes)
}

// Reject marks the request rejected; committed records stay untouched.
func (svc *ReviewService) Reject(ctx context.Context, sess core.Session, id int, notes string) (ChangeRequest, error) {
	return svc.review(ctx, sess, id, StatusRejected, notes)
}

func (svc *ReviewService) review(ctx context.Context, sess core.Session, id int, status Status, notes string) (ChangeRequest, error) {
	cr, err := svc.repo.GetChangeRequest(ctx, id)
	if err != nil {
		return ChangeRequest{}, err
	}
	if cr.IsTerminal() {
		return ChangeRequest{}, ErrAlreadyReviewed
	}
	if cr.RequestedBy != "" && cr.RequestedBy == sess.Username && !sess.IsAdmin {
		return ChangeRequest{}, ErrReviewOwnRequest
	}

	if status == StatusApproved {
		if err := svc.records.ApplyChange(ctx, cr); err != nil {
			return ChangeRequest{}, errors.Wrap(err, "applying approved change")
		}
	}

	now := nowFunc().UTC()
	cr.Status = status
	cr.Notes = notes
	cr.ReviewedBy = sess.Username
	cr.ReviewedAt = &now

	reviewed, err := svc.repo.ReviewChangeRequest(ctx, cr)
	if err != nil {
		return ChangeRequest{}, errors.Wrap(err, "recording review")
	}
	svc.logger.Info("change request reviewed",
		map[string]interface{}{"id": reviewed.ID, "status": reviewed.Status, "by": reviewed.ReviewedBy})
	return reviewed, nil
}

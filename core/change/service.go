package change

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var (
	// errors
	ErrObjectNotFound = errors.New("target object not found")
	ErrNoChanges      = errors.New("no changed fields; nothing to submit")
)

type (
	// Ledger is the read/write surface of the remote change-request ledger.
	// Approved and rejected lists are append-only from the consumer's point of
	// view; callers filter by cursor to avoid reprocessing seen resolutions.
	Ledger interface {
		ListPending(ctx context.Context, types ...ModelType) ([]ChangeRequest, error)
		ListApproved(ctx context.Context, since Cursor, types ...ModelType) ([]ChangeRequest, error)
		ListRejected(ctx context.Context, since Cursor, types ...ModelType) ([]ChangeRequest, error)
		// Submit creates a new pending request. A pending request already
		// targeting the same (model_type, object_id) is superseded by the new
		// submission.
		Submit(ctx context.Context, ncr NewChangeRequest) (ChangeRequest, error)
	}

	// ObjectSource yields the committed field snapshot of a tracked object.
	// The record store satisfies this; the gateway never trusts client-supplied
	// old data.
	ObjectSource interface {
		GetObjectFields(ctx context.Context, mt ModelType, objectID string) (FieldSet, error)
	}

	// Service is the submission gateway: it validates proposals, snapshots the
	// committed state they will overwrite and writes them to the ledger.
	Service struct {
		ledger   Ledger
		objects  ObjectSource
		validate *validator.Validate
		logger   core.Logger
	}
)

func NewService(ledger Ledger, objects ObjectSource, validate *validator.Validate, logger core.Logger) *Service {
	return &Service{
		ledger:   ledger,
		objects:  objects,
		validate: validate,
		logger:   logger,
	}
}

// Submit validates and issues a new change request on behalf of sess.
// Fail closed: no local optimistic state exists until the ledger write
// succeeds; any error here leaves the engine untouched.
func (svc *Service) Submit(ctx context.Context, sess core.Session, ncr NewChangeRequest) (ChangeRequest, error) {
	if err := ncr.Validate(svc.validate); err != nil {
		return ChangeRequest{}, err
	}

	switch ncr.ChangeType {
	case Update, Delete:
		fields, err := svc.objects.GetObjectFields(ctx, ncr.ModelType, ncr.ObjectID)
		if err != nil {
			if errors.Cause(err) == ErrObjectNotFound {
				return ChangeRequest{}, core.NewValidationError(
					ErrObjectNotFound,
					core.FieldError{Field: "object_id", Error: ErrObjectNotFound.Error()},
				)
			}
			return ChangeRequest{}, errors.Wrap(err, "fetching committed snapshot")
		}
		// authoritative snapshot of what this request will overwrite;
		// immutable once set, even if the base changes concurrently
		ncr.OldData = fields
	case Create:
		ncr.OldData = FieldSet{}
	}

	if ncr.ChangeType == Update && len(ChangedFields(ncr.OldData, ncr.NewData)) == 0 {
		return ChangeRequest{}, ErrNoChanges
	}

	if ncr.ClientRef == "" {
		ncr.ClientRef = uuid.New().String()
	}
	ncr.RequestedBy = sess.Username

	req, err := svc.ledger.Submit(ctx, ncr)
	if err != nil {
		return ChangeRequest{}, errors.Wrap(err, "submitting change request")
	}
	svc.logger.Debug("change request submitted",
		map[string]interface{}{"id": req.ID, "model_type": req.ModelType, "object_id": req.ObjectID})
	return req, nil
}

// PendingFor returns the pending requests indexed by object id, keeping only
// the newest request per object (the supersede rule makes older ones moot).
func (svc *Service) PendingFor(ctx context.Context, types ...ModelType) (map[string]ChangeRequest, error) {
	pending, err := svc.ledger.ListPending(ctx, types...)
	if err != nil {
		return nil, errors.Wrap(err, "listing pending requests")
	}
	byObject := make(map[string]ChangeRequest, len(pending))
	for _, req := range pending {
		key := string(req.ModelType) + ":" + req.ObjectID
		if prev, ok := byObject[key]; !ok || req.RequestedAt.After(prev.RequestedAt) {
			byObject[key] = req
		}
	}
	return byObject, nil
}

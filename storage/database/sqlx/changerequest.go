package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core/change"
)

type changeRequestRepository struct {
	db *sqlx.DB
}

var _ change.Repository = (*changeRequestRepository)(nil) // interface compliance check

func NewChangeRequestRepository(db *sqlx.DB) change.Repository {
	return &changeRequestRepository{db: db}
}

type changeRequestRow struct {
	ID          int         `db:"id"`
	Seq         int64       `db:"seq"`
	ModelType   string      `db:"model_type"`
	ObjectID    string      `db:"object_id"`
	ChangeType  string      `db:"change_type"`
	OldData     null.JSON   `db:"old_data"`
	NewData     null.JSON   `db:"new_data"`
	Status      string      `db:"status"`
	Details     string      `db:"details"`
	Notes       string      `db:"notes"`
	ClientRef   string      `db:"client_ref"`
	RequestedBy string      `db:"requested_by"`
	RequestedAt time.Time   `db:"requested_at"`
	ReviewedBy  string      `db:"reviewed_by"`
	ReviewedAt  null.Time   `db:"reviewed_at"`
}

func (row changeRequestRow) toChangeRequest() (change.ChangeRequest, error) {
	cr := change.ChangeRequest{
		ID:          row.ID,
		Seq:         row.Seq,
		ModelType:   change.ModelType(row.ModelType),
		ObjectID:    row.ObjectID,
		ChangeType:  change.ChangeType(row.ChangeType),
		Status:      change.Status(row.Status),
		Details:     row.Details,
		Notes:       row.Notes,
		ClientRef:   row.ClientRef,
		RequestedBy: row.RequestedBy,
		RequestedAt: row.RequestedAt,
		ReviewedBy:  row.ReviewedBy,
	}
	if row.ReviewedAt.Valid {
		t := row.ReviewedAt.Time
		cr.ReviewedAt = &t
	}
	if err := row.OldData.Unmarshal(&cr.OldData); err != nil {
		return cr, errors.Wrap(err, "decoding old_data")
	}
	if err := row.NewData.Unmarshal(&cr.NewData); err != nil {
		return cr, errors.Wrap(err, "decoding new_data")
	}
	return cr, nil
}

func jsonField(fs change.FieldSet) (null.JSON, error) {
	if fs == nil {
		fs = change.FieldSet{}
	}
	b, err := json.Marshal(fs)
	if err != nil {
		return null.JSON{}, errors.Wrap(err, "encoding field set")
	}
	return null.JSONFrom(b), nil
}

const changeRequestColumns = `id, seq, model_type, object_id, change_type, old_data, new_data,
	status, details, notes, client_ref, requested_by, requested_at, reviewed_by, reviewed_at`

// CreateChangeRequest inserts a pending request, superseding any pending
// request on the same target in place (same id, fresh seq and data).
func (repo *changeRequestRepository) CreateChangeRequest(ctx context.Context, cr change.ChangeRequest) (change.ChangeRequest, error) {
	oldData, err := jsonField(cr.OldData)
	if err != nil {
		return change.ChangeRequest{}, err
	}
	newData, err := jsonField(cr.NewData)
	if err != nil {
		return change.ChangeRequest{}, err
	}

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return change.ChangeRequest{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	var existingID int
	err = tx.GetContext(ctx, &existingID,
		`SELECT id FROM change_request WHERE status = 'pending' AND model_type = $1 AND object_id = $2 FOR UPDATE`,
		cr.ModelType, cr.ObjectID)

	var row changeRequestRow
	switch {
	case err == nil:
		err = tx.GetContext(ctx, &row, `
			UPDATE change_request
			SET seq          = nextval('change_request_seq_seq'),
			    change_type  = $2,
			    old_data     = $3,
			    new_data     = $4,
			    details      = $5,
			    notes        = $6,
			    client_ref   = $7,
			    requested_by = $8,
			    requested_at = $9
			WHERE id = $1
			RETURNING `+changeRequestColumns,
			existingID, cr.ChangeType, oldData, newData, cr.Details, cr.Notes,
			cr.ClientRef, cr.RequestedBy, cr.RequestedAt)
	case err == sql.ErrNoRows:
		err = tx.GetContext(ctx, &row, `
			INSERT INTO change_request
				(model_type, object_id, change_type, old_data, new_data, status, details, notes,
				 client_ref, requested_by, requested_at)
			VALUES ($1, $2, $3, $4, $5, 'pending', $6, $7, $8, $9, $10)
			RETURNING `+changeRequestColumns,
			cr.ModelType, cr.ObjectID, cr.ChangeType, oldData, newData, cr.Details, cr.Notes,
			cr.ClientRef, cr.RequestedBy, cr.RequestedAt)
	default:
		return change.ChangeRequest{}, errors.Wrap(err, "checking pending request")
	}
	if err != nil {
		return change.ChangeRequest{}, errors.Wrap(err, "creating change request")
	}
	if err = tx.Commit(); err != nil {
		return change.ChangeRequest{}, errors.Wrap(err, "committing transaction")
	}
	return row.toChangeRequest()
}

func (repo *changeRequestRepository) GetChangeRequest(ctx context.Context, id int) (change.ChangeRequest, error) {
	var row changeRequestRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT `+changeRequestColumns+` FROM change_request WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return change.ChangeRequest{}, change.ErrRequestNotFound
	}
	if err != nil {
		return change.ChangeRequest{}, errors.Wrap(err, "getting change request")
	}
	return row.toChangeRequest()
}

func (repo *changeRequestRepository) QueryByStatus(ctx context.Context, status change.Status, since change.Cursor, types ...change.ModelType) ([]change.ChangeRequest, error) {
	query := `SELECT ` + changeRequestColumns + ` FROM change_request WHERE status = ?`
	args := []interface{}{status}

	if since.Seq > 0 {
		query += ` AND seq > ?`
		args = append(args, since.Seq)
	}
	if len(types) > 0 {
		query += ` AND model_type IN (?)`
		args = append(args, typeStrings(types))
	}
	query += ` ORDER BY seq`

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}

	var rows []changeRequestRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying change requests")
	}
	reqs := make([]change.ChangeRequest, 0, len(rows))
	for _, row := range rows {
		cr, err := row.toChangeRequest()
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, cr)
	}
	return reqs, nil
}

func (repo *changeRequestRepository) ReviewChangeRequest(ctx context.Context, cr change.ChangeRequest) (change.ChangeRequest, error) {
	var row changeRequestRow
	err := repo.db.GetContext(ctx, &row, `
		UPDATE change_request
		SET seq         = nextval('change_request_seq_seq'),
		    status      = $2,
		    notes       = $3,
		    reviewed_by = $4,
		    reviewed_at = $5
		WHERE id = $1 AND status = 'pending'
		RETURNING `+changeRequestColumns,
		cr.ID, cr.Status, cr.Notes, cr.ReviewedBy, null.TimeFromPtr(cr.ReviewedAt))
	if err == sql.ErrNoRows {
		// either missing or already terminal
		if _, getErr := repo.GetChangeRequest(ctx, cr.ID); getErr != nil {
			return change.ChangeRequest{}, getErr
		}
		return change.ChangeRequest{}, change.ErrAlreadyReviewed
	}
	if err != nil {
		return change.ChangeRequest{}, errors.Wrap(err, "reviewing change request")
	}
	return row.toChangeRequest()
}

func typeStrings(types []change.ModelType) []string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		out = append(out, string(t))
	}
	return out
}

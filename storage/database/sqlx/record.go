package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core/change"
	"github.com/trezcool/darasa/core/record"
)

type recordRepository struct {
	db *sqlx.DB
}

var _ record.Repository = (*recordRepository)(nil) // interface compliance check

func NewRecordRepository(db *sqlx.DB) record.Repository {
	return &recordRepository{db: db}
}

type recordRow struct {
	ID       string    `db:"id"`
	Type     string    `db:"type"`
	OwnerKey string    `db:"owner_key"`
	ClassID  int       `db:"class_id"`
	Gender   string    `db:"gender"`
	Fields   null.JSON `db:"fields"`
}

func (row recordRow) toEntity() (record.Entity, error) {
	ent := record.Entity{
		ID:       row.ID,
		Type:     change.ModelType(row.Type),
		OwnerKey: row.OwnerKey,
	}
	if err := row.Fields.Unmarshal(&ent.Fields); err != nil {
		return ent, errors.Wrap(err, "decoding fields")
	}
	return ent, nil
}

func (repo *recordRepository) GetRecord(ctx context.Context, mt change.ModelType, id string) (record.Entity, error) {
	var row recordRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT id, type, owner_key, class_id, gender, fields FROM record WHERE type = $1 AND id = $2`, mt, id)
	if err == sql.ErrNoRows {
		return record.Entity{}, record.ErrNotFound
	}
	if err != nil {
		return record.Entity{}, errors.Wrap(err, "getting record")
	}
	return row.toEntity()
}

func (repo *recordRepository) QueryRecords(ctx context.Context, mt change.ModelType, q record.ScopeQuery) ([]record.Entity, error) {
	query := `SELECT id, type, owner_key, class_id, gender, fields FROM record WHERE type = $1`
	args := []interface{}{mt}

	if q.ClassID > 0 {
		args = append(args, q.ClassID)
		query += ` AND class_id = $2`
	}
	if q.Gender != "" {
		args = append(args, q.Gender)
		if q.ClassID > 0 {
			query += ` AND gender = $3`
		} else {
			query += ` AND gender = $2`
		}
	}
	query += ` ORDER BY id`

	var rows []recordRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying records")
	}
	ents := make([]record.Entity, 0, len(rows))
	for _, row := range rows {
		ent, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		ents = append(ents, ent)
	}
	return ents, nil
}

// UpsertRecord writes the committed state of an entity. The scope columns are
// denormalized out of the field set so listings can filter without unpacking
// the JSON.
func (repo *recordRepository) UpsertRecord(ctx context.Context, ent record.Entity) (record.Entity, error) {
	b, err := json.Marshal(ent.Fields)
	if err != nil {
		return record.Entity{}, errors.Wrap(err, "encoding fields")
	}
	classID := 0
	if f, ok := ent.Fields.Float("class_id"); ok {
		classID = int(f)
	}
	gender := ent.Fields.String("gender")

	_, err = repo.db.ExecContext(ctx, `
		INSERT INTO record (id, type, owner_key, class_id, gender, fields)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (type, id) DO UPDATE
		SET owner_key = EXCLUDED.owner_key,
		    class_id  = EXCLUDED.class_id,
		    gender    = EXCLUDED.gender,
		    fields    = EXCLUDED.fields`,
		ent.ID, ent.Type, ent.OwnerKey, classID, gender, null.JSONFrom(b))
	if err != nil {
		return record.Entity{}, errors.Wrap(err, "upserting record")
	}
	return ent, nil
}

func (repo *recordRepository) DeleteRecord(ctx context.Context, mt change.ModelType, id string) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM record WHERE type = $1 AND id = $2`, mt, id)
	return errors.Wrap(err, "deleting record")
}

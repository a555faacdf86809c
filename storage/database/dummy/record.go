package dummydb

import (
	"context"

	"github.com/trezcool/darasa/core/change"
	"github.com/trezcool/darasa/core/record"
)

type recordRepository struct {
	db *recordTable
}

var _ record.Repository = (*recordRepository)(nil) // interface compliance check

func NewRecordRepository(db *DB) record.Repository {
	return &recordRepository{db: db.record}
}

func key(mt change.ModelType, id string) string {
	return string(mt) + ":" + id
}

func (repo *recordRepository) GetRecord(ctx context.Context, mt change.ModelType, id string) (record.Entity, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if ent, ok := repo.db.table[key(mt, id)]; ok {
		out := *ent
		out.Fields = ent.Fields.Clone()
		return out, nil
	}
	return record.Entity{}, record.ErrNotFound
}

func (repo *recordRepository) QueryRecords(ctx context.Context, mt change.ModelType, q record.ScopeQuery) ([]record.Entity, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var ents []record.Entity
	for _, ent := range repo.db.table {
		if ent.Type != mt {
			continue
		}
		if q.ClassID > 0 {
			if classID, ok := ent.Fields.Float("class_id"); !ok || int(classID) != q.ClassID {
				continue
			}
		}
		if q.Gender != "" && ent.Fields.String("gender") != q.Gender {
			continue
		}
		out := *ent
		out.Fields = ent.Fields.Clone()
		ents = append(ents, out)
	}
	return ents, nil
}

func (repo *recordRepository) UpsertRecord(ctx context.Context, ent record.Entity) (record.Entity, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored := ent
	stored.Fields = ent.Fields.Clone()
	repo.db.table[key(ent.Type, ent.ID)] = &stored
	return ent, nil
}

func (repo *recordRepository) DeleteRecord(ctx context.Context, mt change.ModelType, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	delete(repo.db.table, key(mt, id))
	return nil
}

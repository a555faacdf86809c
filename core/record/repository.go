package record

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/change"
)

// Repository is the persistence surface of committed records, used by the
// resolving authority.
type Repository interface {
	GetRecord(ctx context.Context, mt change.ModelType, id string) (Entity, error)
	QueryRecords(ctx context.Context, mt change.ModelType, q ScopeQuery) ([]Entity, error)
	UpsertRecord(ctx context.Context, ent Entity) (Entity, error)
	DeleteRecord(ctx context.Context, mt change.ModelType, id string) error
}

// repositoryStore lets in-process callers use a Repository through the
// client-facing Store surface.
type repositoryStore struct {
	repo Repository
}

var _ Store = (*repositoryStore)(nil)

func NewRepositoryStore(repo Repository) Store {
	return &repositoryStore{repo: repo}
}

func (s *repositoryStore) GetEntity(ctx context.Context, mt change.ModelType, id string) (Entity, error) {
	return s.repo.GetRecord(ctx, mt, id)
}

func (s *repositoryStore) ListEntities(ctx context.Context, mt change.ModelType, q ScopeQuery) ([]Entity, error) {
	return s.repo.QueryRecords(ctx, mt, q)
}

// writer commits approved change requests onto the repository.
type writer struct {
	repo Repository
}

var _ change.RecordWriter = (*writer)(nil)

func NewWriter(repo Repository) change.RecordWriter {
	return &writer{repo: repo}
}

func (w *writer) ApplyChange(ctx context.Context, req change.ChangeRequest) error {
	switch req.ChangeType {
	case change.Create:
		_, err := w.repo.UpsertRecord(ctx, Entity{
			ID:     req.ObjectID,
			Type:   req.ModelType,
			Fields: req.NewData.Clone(),
		})
		return errors.Wrap(err, "creating record")

	case change.Update:
		ent, err := w.repo.GetRecord(ctx, req.ModelType, req.ObjectID)
		if err != nil {
			return errors.Wrap(err, "fetching record")
		}
		ent.Fields = req.Apply(ent.Fields)
		_, err = w.repo.UpsertRecord(ctx, ent)
		return errors.Wrap(err, "updating record")

	case change.Delete:
		return errors.Wrap(w.repo.DeleteRecord(ctx, req.ModelType, req.ObjectID), "deleting record")
	}
	return errors.Errorf("unknown change type %q", req.ChangeType)
}

package record

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/change"
)

var ErrNotFound = errors.New("record not found")

type (
	// Entity is a committed record of one of the tracked kinds. The record
	// store owns it; this core only reads and overlays it. The server may have
	// computed overlay hints already; Merge accepts either.
	Entity struct {
		ID       string           `json:"id"`
		Type     change.ModelType `json:"model_type"`
		OwnerKey string           `json:"owner_key,omitempty"`
		Fields   change.FieldSet  `json:"fields"`

		// server-computed overlay hints
		HasPendingChanges bool            `json:"has_pending_changes,omitempty"`
		PendingFields     change.FieldSet `json:"pending_fields,omitempty"`
	}

	// ScopeQuery narrows a record listing to one selection context.
	ScopeQuery struct {
		ClassID int    `json:"class_id"`
		Gender  string `json:"gender"`
	}

	// Store is the CRUD surface of the remote record store.
	Store interface {
		GetEntity(ctx context.Context, mt change.ModelType, id string) (Entity, error)
		ListEntities(ctx context.Context, mt change.ModelType, q ScopeQuery) ([]Entity, error)
	}
)

// objectSource adapts a Store to the submission gateway's snapshot lookup.
type objectSource struct {
	store Store
}

func NewObjectSource(store Store) change.ObjectSource {
	return &objectSource{store: store}
}

func (src *objectSource) GetObjectFields(ctx context.Context, mt change.ModelType, objectID string) (change.FieldSet, error) {
	ent, err := src.store.GetEntity(ctx, mt, objectID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return nil, change.ErrObjectNotFound
		}
		return nil, err
	}
	return ent.Fields.Clone(), nil
}

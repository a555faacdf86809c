package record

import (
	"github.com/trezcool/darasa/core/change"
)

type (
	// FieldOverlay pairs the committed and proposed value of one field.
	// Committed comes from the request's submission-time snapshot, not
	// necessarily the entity's current committed value: it is "what this
	// request will overwrite", by invariant.
	FieldOverlay struct {
		Committed  interface{} `json:"committed"`
		Pending    interface{} `json:"pending,omitempty"`
		HasPending bool        `json:"has_pending"`
	}

	// OverlayView is the displayable merge of an entity with at most one
	// pending change request. Derived, never persisted; recomputed on every
	// change of its inputs.
	OverlayView struct {
		ObjectID   string                  `json:"object_id"`
		Type       change.ModelType        `json:"model_type"`
		Fields     map[string]FieldOverlay `json:"fields"`
		HasPending bool                    `json:"has_pending"`
		RequestID  int                     `json:"request_id,omitempty"`
	}
)

// Merge combines a committed entity with zero-or-one pending request into a
// displayable value pair per field. A resolved (or absent) request collapses
// the overlay to committed values only; calling Merge again after resolution
// is the idempotent clearing step. Server-computed hints on the entity are
// honored only when no request is supplied, so both sources behave the same.
func Merge(ent Entity, req *change.ChangeRequest) OverlayView {
	view := OverlayView{
		ObjectID: ent.ID,
		Type:     ent.Type,
		Fields:   make(map[string]FieldOverlay, len(ent.Fields)),
	}
	for name, val := range ent.Fields {
		view.Fields[name] = FieldOverlay{Committed: val}
	}

	switch {
	case req != nil && req.IsPending() && req.ObjectID == ent.ID && req.ModelType == ent.Type:
		view.HasPending = true
		view.RequestID = req.ID
		for name, val := range req.NewData {
			committed, ok := req.OldData[name]
			if !ok {
				committed = ent.Fields[name]
			}
			view.Fields[name] = FieldOverlay{Committed: committed, Pending: val, HasPending: true}
		}
	case req == nil && ent.HasPendingChanges && len(ent.PendingFields) > 0:
		view.HasPending = true
		for name, val := range ent.PendingFields {
			view.Fields[name] = FieldOverlay{Committed: ent.Fields[name], Pending: val, HasPending: true}
		}
	}
	return view
}

// Committed returns the committed-only branch of the view.
func (v OverlayView) Committed() change.FieldSet {
	fields := make(change.FieldSet, len(v.Fields))
	for name, f := range v.Fields {
		fields[name] = f.Committed
	}
	return fields
}

// Effective returns the pending-preferred branch of the view.
func (v OverlayView) Effective() change.FieldSet {
	fields := make(change.FieldSet, len(v.Fields))
	for name, f := range v.Fields {
		if f.HasPending {
			fields[name] = f.Pending
		} else {
			fields[name] = f.Committed
		}
	}
	return fields
}

// DisplayValue resolves what the UI shows as the authoritative value for one
// field, per the model type's apply policy: the proposed value right away for
// ImmediateApply, the committed value (with the pending pair alongside) for
// Gated.
func (v OverlayView) DisplayValue(field string) interface{} {
	f, ok := v.Fields[field]
	if !ok {
		return nil
	}
	if f.HasPending && change.PolicyFor(v.Type) == change.ImmediateApply {
		return f.Pending
	}
	return f.Committed
}

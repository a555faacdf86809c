package change

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Tracked model types
const (
	Attendance  ModelType = "attendance"
	Marks       ModelType = "marks"
	Fee         ModelType = "fee"
	TestMarks   ModelType = "test_marks"
	MonthlyTest ModelType = "monthly_test"
	Student     ModelType = "student"
)

// Change types
const (
	Create ChangeType = "create"
	Update ChangeType = "update"
	Delete ChangeType = "delete"
)

// Request statuses. Pending is initial; Approved and Rejected are terminal and
// only ever set by the resolving authority, never by this client core.
const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Apply policies
const (
	// Gated keeps the committed value on display with a pending badge and a
	// paired proposed value until the request is resolved.
	Gated ApplyPolicy = iota
	// ImmediateApply shows the proposed value as the display value right away,
	// while the request still awaits resolution.
	ImmediateApply
)

var (
	AllModelTypes  = []ModelType{Attendance, Marks, Fee, TestMarks, MonthlyTest, Student}
	AllChangeTypes = []ChangeType{Create, Update, Delete}

	// applyPolicies is the single declarative table consulted by both the
	// submission gateway and the overlay merger; per-feature divergence is not
	// allowed.
	applyPolicies = map[ModelType]ApplyPolicy{
		Attendance:  Gated,
		Marks:       ImmediateApply,
		Fee:         Gated,
		TestMarks:   ImmediateApply,
		MonthlyTest: Gated,
		Student:     Gated,
	}
)

type (
	ModelType   string
	ChangeType  string
	Status      string
	ApplyPolicy int

	// FieldSet is a field-name -> value snapshot of a tracked object.
	FieldSet map[string]interface{}

	// ChangeRequest is a proposed mutation awaiting resolution.
	// OldData is the committed snapshot taken at submission time and is
	// immutable once set; Seq is the ledger-issued monotonic cursor.
	ChangeRequest struct {
		ID          int        `json:"id"`
		Seq         int64      `json:"seq"`
		ModelType   ModelType  `json:"model_type"`
		ObjectID    string     `json:"object_id"`
		ChangeType  ChangeType `json:"change_type"`
		OldData     FieldSet   `json:"old_data"`
		NewData     FieldSet   `json:"new_data"`
		Status      Status     `json:"status"`
		Details     string     `json:"details,omitempty"`
		Notes       string     `json:"notes,omitempty"`
		ClientRef   string     `json:"client_ref,omitempty"`
		RequestedBy string     `json:"requested_by,omitempty"`
		RequestedAt time.Time  `json:"requested_at"`
		ReviewedBy  string     `json:"reviewed_by,omitempty"`
		ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	}

	// Cursor marks the last resolved ledger state a consumer has processed.
	// Seq is authoritative; ReviewedAt only backs ledgers without sequence
	// numbers (wall clocks skew, sequences do not).
	Cursor struct {
		Seq        int64     `json:"seq"`
		ReviewedAt time.Time `json:"reviewed_at"`
	}
)

func (mt ModelType) Valid() bool {
	for _, t := range AllModelTypes {
		if t == mt {
			return true
		}
	}
	return false
}

func (ct ChangeType) Valid() bool {
	for _, t := range AllChangeTypes {
		if t == ct {
			return true
		}
	}
	return false
}

// PolicyFor returns the apply policy for a model type; unknown types are Gated.
func PolicyFor(mt ModelType) ApplyPolicy {
	return applyPolicies[mt]
}

func (cr *ChangeRequest) IsPending() bool  { return cr.Status == StatusPending }
func (cr *ChangeRequest) IsTerminal() bool { return cr.Status == StatusApproved || cr.Status == StatusRejected }

// Apply overlays the proposed data onto a committed snapshot; used by the
// resolving authority when a request is approved.
func (cr *ChangeRequest) Apply(fields FieldSet) FieldSet {
	out := fields.Clone()
	for name, val := range cr.NewData {
		out[name] = val
	}
	return out
}

func (fs FieldSet) Clone() FieldSet {
	out := make(FieldSet, len(fs))
	for k, v := range fs {
		out[k] = v
	}
	return out
}

func (fs FieldSet) String(name string) string {
	v, ok := fs[name]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func (fs FieldSet) Float(name string) (float64, bool) {
	switch v := fs[name].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

func (fs FieldSet) Bool(name string) bool {
	switch v := fs[name].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

// ChangedFields lists the fields of newData whose values differ from oldData.
// Values are compared by their string forms, matching how the ledger stores
// change items.
func ChangedFields(oldData, newData FieldSet) []string {
	var changed []string
	for name := range newData {
		if oldData.String(name) != newData.String(name) {
			changed = append(changed, name)
		}
	}
	sort.Strings(changed)
	return changed
}

// NewChangeRequest contains information needed to propose a change.
// OldData supplied by the caller is advisory only; the gateway replaces it
// with the committed snapshot it fetches itself.
type NewChangeRequest struct {
	ModelType   ModelType  `json:"model_type" validate:"required,modeltype"`
	ObjectID    string     `json:"object_id"`
	ChangeType  ChangeType `json:"change_type" validate:"required,changetype"`
	OldData     FieldSet   `json:"old_data,omitempty"`
	NewData     FieldSet   `json:"new_data" validate:"required"`
	Notes       string     `json:"notes,omitempty"`
	ClientRef   string     `json:"client_ref,omitempty"`
	RequestedBy string     `json:"requested_by,omitempty"`
}

// Newer reports whether req was resolved after the cursor position.
func (c Cursor) Newer(req ChangeRequest) bool {
	if req.Seq > 0 && c.Seq > 0 {
		return req.Seq > c.Seq
	}
	if req.Seq > 0 {
		return req.Seq > c.Seq // c.Seq == 0: everything with a seq is new
	}
	if req.ReviewedAt == nil {
		return false
	}
	return req.ReviewedAt.After(c.ReviewedAt)
}

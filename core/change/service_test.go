package change

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

type (
	ledgerMock struct {
		submitted []NewChangeRequest
		pending   []ChangeRequest
		err       error
	}

	objectSourceMock struct {
		fields map[string]FieldSet // "modelType:objectID"
	}

	nopLogger struct{}
)

func (m *ledgerMock) ListPending(ctx context.Context, types ...ModelType) ([]ChangeRequest, error) {
	return m.pending, m.err
}
func (m *ledgerMock) ListApproved(ctx context.Context, since Cursor, types ...ModelType) ([]ChangeRequest, error) {
	return nil, m.err
}
func (m *ledgerMock) ListRejected(ctx context.Context, since Cursor, types ...ModelType) ([]ChangeRequest, error) {
	return nil, m.err
}
func (m *ledgerMock) Submit(ctx context.Context, ncr NewChangeRequest) (ChangeRequest, error) {
	if m.err != nil {
		return ChangeRequest{}, m.err
	}
	m.submitted = append(m.submitted, ncr)
	return ChangeRequest{
		ID:          len(m.submitted),
		Seq:         int64(len(m.submitted)),
		ModelType:   ncr.ModelType,
		ObjectID:    ncr.ObjectID,
		ChangeType:  ncr.ChangeType,
		OldData:     ncr.OldData,
		NewData:     ncr.NewData,
		Status:      StatusPending,
		ClientRef:   ncr.ClientRef,
		RequestedBy: ncr.RequestedBy,
		RequestedAt: time.Now().UTC(),
	}, nil
}

func (m *objectSourceMock) GetObjectFields(ctx context.Context, mt ModelType, objectID string) (FieldSet, error) {
	if fields, ok := m.fields[string(mt)+":"+objectID]; ok {
		return fields.Clone(), nil
	}
	return nil, ErrObjectNotFound
}

func (nopLogger) Debug(msg string, args ...interface{}) {}
func (nopLogger) Info(msg string, args ...interface{})  {}
func (nopLogger) Warn(msg string, args ...interface{})  {}
func (nopLogger) Error(msg string, args ...interface{}) {}
func (nopLogger) Fatal(msg string, args ...interface{}) {}

func newTestValidator() *validator.Validate {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	return validate
}

func setup(objects map[string]FieldSet) (*Service, *ledgerMock) {
	ledger := new(ledgerMock)
	svc := NewService(ledger, &objectSourceMock{fields: objects}, newTestValidator(), nopLogger{})
	return svc, ledger
}

var testSession = core.Session{Token: "t", Username: "mwalimu"}

func TestService_Submit(t *testing.T) {
	committed := FieldSet{"present": true, "remarks": ""}

	tests := []struct {
		name    string
		objects map[string]FieldSet
		ncr     NewChangeRequest
		wantErr error
		check   func(t *testing.T, cr ChangeRequest, ledger *ledgerMock)
	}{
		{
			name:    "invalid model type",
			ncr:     NewChangeRequest{ModelType: "grades", ChangeType: Update, ObjectID: "42", NewData: FieldSet{"x": 1}},
			wantErr: errValidation,
		},
		{
			name:    "missing object id on update",
			ncr:     NewChangeRequest{ModelType: Attendance, ChangeType: Update, NewData: FieldSet{"present": false}},
			wantErr: errValidation,
		},
		{
			name:    "object not found fails closed",
			objects: map[string]FieldSet{},
			ncr:     NewChangeRequest{ModelType: Attendance, ChangeType: Update, ObjectID: "42", NewData: FieldSet{"present": false}},
			wantErr: errValidation,
		},
		{
			name:    "no-op update dropped",
			objects: map[string]FieldSet{"attendance:42": committed},
			ncr:     NewChangeRequest{ModelType: Attendance, ChangeType: Update, ObjectID: "42", NewData: FieldSet{"present": true}},
			wantErr: ErrNoChanges,
		},
		{
			name:    "update snapshots committed state",
			objects: map[string]FieldSet{"attendance:42": committed},
			ncr: NewChangeRequest{
				ModelType: Attendance, ChangeType: Update, ObjectID: "42",
				OldData: FieldSet{"present": "tampered"}, // advisory, must be replaced
				NewData: FieldSet{"present": false},
			},
			check: func(t *testing.T, cr ChangeRequest, ledger *ledgerMock) {
				got := ledger.submitted[0]
				if got.OldData.String("present") != "true" {
					t.Errorf("OldData[present] = %v, want committed snapshot", got.OldData["present"])
				}
				if got.ClientRef == "" {
					t.Error("ClientRef not assigned")
				}
				if got.RequestedBy != "mwalimu" {
					t.Errorf("RequestedBy = %q, want %q", got.RequestedBy, "mwalimu")
				}
			},
		},
		{
			name: "create gets empty snapshot",
			ncr: NewChangeRequest{
				ModelType: Student, ChangeType: Create,
				NewData: FieldSet{"name": "Amina", "class_id": 3},
			},
			check: func(t *testing.T, cr ChangeRequest, ledger *ledgerMock) {
				if got := ledger.submitted[0]; len(got.OldData) != 0 {
					t.Errorf("OldData = %v, want empty", got.OldData)
				}
			},
		},
		{
			name:    "delete keeps committed snapshot",
			objects: map[string]FieldSet{"fee:7": {"amount": 150}},
			ncr:     NewChangeRequest{ModelType: Fee, ChangeType: Delete, ObjectID: "7", NewData: FieldSet{"amount": 0}},
			check: func(t *testing.T, cr ChangeRequest, ledger *ledgerMock) {
				if got := ledger.submitted[0]; got.OldData.String("amount") != "150" {
					t.Errorf("OldData[amount] = %v, want 150", got.OldData["amount"])
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, ledger := setup(tt.objects)
			cr, err := svc.Submit(context.Background(), testSession, tt.ncr)
			if tt.wantErr != nil {
				assertSubmitErr(t, err, tt.wantErr)
				if len(ledger.submitted) != 0 {
					t.Errorf("ledger received %d submissions, want none", len(ledger.submitted))
				}
				return
			}
			if err != nil {
				t.Fatalf("Submit() error = %v", err)
			}
			if tt.check != nil {
				tt.check(t, cr, ledger)
			}
		})
	}
}

// errValidation marks a test expecting any *core.ValidationError or
// validator.ValidationErrors.
var errValidation = &core.ValidationError{}

func assertSubmitErr(t *testing.T, err, want error) {
	t.Helper()
	if err == nil {
		t.Fatal("Submit() error = nil, want error")
	}
	if want == ErrNoChanges {
		if err != ErrNoChanges {
			t.Errorf("Submit() error = %v, want %v", err, ErrNoChanges)
		}
		return
	}
	switch err.(type) {
	case *core.ValidationError, validator.ValidationErrors:
	default:
		t.Errorf("Submit() error = %T(%v), want validation error", err, err)
	}
}

func TestService_PendingFor(t *testing.T) {
	older := time.Now().UTC().Add(-time.Minute)
	newer := time.Now().UTC()

	ledger := &ledgerMock{pending: []ChangeRequest{
		{ID: 1, ModelType: Attendance, ObjectID: "42", Status: StatusPending, RequestedAt: older},
		{ID: 2, ModelType: Attendance, ObjectID: "42", Status: StatusPending, RequestedAt: newer},
		{ID: 3, ModelType: Attendance, ObjectID: "43", Status: StatusPending, RequestedAt: older},
	}}
	svc := NewService(ledger, &objectSourceMock{}, newTestValidator(), nopLogger{})

	got, err := svc.PendingFor(context.Background(), Attendance)
	if err != nil {
		t.Fatalf("PendingFor() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("PendingFor() returned %d entries, want 2", len(got))
	}
	if got["attendance:42"].ID != 2 {
		t.Errorf("newest request per object not kept: got #%d, want #2", got["attendance:42"].ID)
	}
}

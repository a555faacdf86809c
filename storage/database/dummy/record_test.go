package dummydb

import (
	"testing"

	"github.com/trezcool/darasa/core/change"
	"github.com/trezcool/darasa/core/record"
)

func seedRecords(t *testing.T, repo record.Repository) {
	t.Helper()
	ents := []record.Entity{
		{ID: "s1", Type: change.Marks, Fields: change.FieldSet{"class_id": 1.0, "gender": "male", "marks": 60.0}},
		{ID: "s2", Type: change.Marks, Fields: change.FieldSet{"class_id": 1.0, "gender": "female", "marks": 80.0}},
		{ID: "s3", Type: change.Marks, Fields: change.FieldSet{"class_id": 2.0, "gender": "male", "marks": 70.0}},
		{ID: "a1", Type: change.Attendance, Fields: change.FieldSet{"class_id": 1.0, "gender": "male", "present": true}},
	}
	for _, ent := range ents {
		if _, err := repo.UpsertRecord(ctx, ent); err != nil {
			t.Fatalf("UpsertRecord(%s) error = %v", ent.ID, err)
		}
	}
}

func TestRecordRepository_QueryRecords(t *testing.T) {
	db, _ := Open()
	repo := NewRecordRepository(db)
	seedRecords(t, repo)

	tests := []struct {
		name string
		mt   change.ModelType
		q    record.ScopeQuery
		want int
	}{
		{"all marks", change.Marks, record.ScopeQuery{}, 3},
		{"class 1 marks", change.Marks, record.ScopeQuery{ClassID: 1}, 2},
		{"class 1 boys", change.Marks, record.ScopeQuery{ClassID: 1, Gender: "male"}, 1},
		{"attendance", change.Attendance, record.ScopeQuery{}, 1},
		{"empty scope", change.Marks, record.ScopeQuery{ClassID: 9}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ents, err := repo.QueryRecords(ctx, tt.mt, tt.q)
			if err != nil {
				t.Fatalf("QueryRecords() error = %v", err)
			}
			if len(ents) != tt.want {
				t.Errorf("got %d entities, want %d", len(ents), tt.want)
			}
		})
	}
}

func TestRecordRepository_GetRecord(t *testing.T) {
	db, _ := Open()
	repo := NewRecordRepository(db)
	seedRecords(t, repo)

	ent, err := repo.GetRecord(ctx, change.Marks, "s1")
	if err != nil {
		t.Fatalf("GetRecord() error = %v", err)
	}

	// mutating the returned fields must not touch the stored row
	ent.Fields["marks"] = 0.0
	again, _ := repo.GetRecord(ctx, change.Marks, "s1")
	if marks, _ := again.Fields.Float("marks"); marks != 60 {
		t.Errorf("stored marks = %v, caller mutation leaked in", marks)
	}

	// the same id under another type is a different row
	if _, err := repo.GetRecord(ctx, change.Attendance, "s1"); err != record.ErrNotFound {
		t.Errorf("cross-type get: error = %v, want %v", err, record.ErrNotFound)
	}
}

func TestRecordRepository_Delete(t *testing.T) {
	db, _ := Open()
	repo := NewRecordRepository(db)
	seedRecords(t, repo)

	if err := repo.DeleteRecord(ctx, change.Marks, "s1"); err != nil {
		t.Fatalf("DeleteRecord() error = %v", err)
	}
	if _, err := repo.GetRecord(ctx, change.Marks, "s1"); err != record.ErrNotFound {
		t.Errorf("GetRecord() after delete: error = %v, want %v", err, record.ErrNotFound)
	}
	// deleting again is a no-op
	if err := repo.DeleteRecord(ctx, change.Marks, "s1"); err != nil {
		t.Errorf("repeat DeleteRecord() error = %v", err)
	}
}

package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/darasa/core/change"
	"github.com/trezcool/darasa/core/record"
)

// NopLogger discards everything; services under test still get a core.Logger.
type NopLogger struct{}

func (NopLogger) Debug(msg string, args ...interface{}) {}
func (NopLogger) Info(msg string, args ...interface{})  {}
func (NopLogger) Warn(msg string, args ...interface{})  {}
func (NopLogger) Error(msg string, args ...interface{}) {}
func (NopLogger) Fatal(msg string, args ...interface{}) {}

func CreateEntity(
	t *testing.T,
	repo record.Repository,
	mt change.ModelType,
	id string,
	fields change.FieldSet,
) record.Entity {
	t.Helper()

	ent, err := repo.UpsertRecord(context.Background(), record.Entity{
		ID:     id,
		Type:   mt,
		Fields: fields,
	})
	if err != nil {
		t.Fatalf("CreateEntity() failed: %v", err)
	}
	return ent
}

func SubmitChange(
	t *testing.T,
	repo change.Repository,
	mt change.ModelType,
	objectID string,
	ct change.ChangeType,
	oldData, newData change.FieldSet,
	requestedBy string,
	requestedAt ...time.Time,
) change.ChangeRequest {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(requestedAt) > 0 {
		tstamp = requestedAt[0].UTC()
	}
	cr, err := repo.CreateChangeRequest(context.Background(), change.ChangeRequest{
		ModelType:   mt,
		ObjectID:    objectID,
		ChangeType:  ct,
		OldData:     oldData,
		NewData:     newData,
		Status:      change.StatusPending,
		RequestedBy: requestedBy,
		RequestedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("SubmitChange() failed: %v", err)
	}
	return cr
}

func Review(
	t *testing.T,
	repo change.Repository,
	cr change.ChangeRequest,
	status change.Status,
	reviewedBy string,
	reviewedAt ...time.Time,
) change.ChangeRequest {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(reviewedAt) > 0 {
		tstamp = reviewedAt[0].UTC()
	}
	cr.Status = status
	cr.ReviewedBy = reviewedBy
	cr.ReviewedAt = &tstamp
	reviewed, err := repo.ReviewChangeRequest(context.Background(), cr)
	if err != nil {
		t.Fatalf("Review() failed: %v", err)
	}
	return reviewed
}

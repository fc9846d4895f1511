// Package service is the façade application logic calls.
//
// Every method reads and writes the local store synchronously and returns
// immediately; remote work is queued and a background sync trigger is fired,
// never awaited. Network failures are therefore invisible here; they
// surface through the sync engine's status side channel.
package service

import (
	"context"

	apperr "github.com/studyflow/backend/internal/errors"
	"github.com/studyflow/backend/internal/ids"
	"github.com/studyflow/backend/internal/logging"
	"github.com/studyflow/backend/internal/models"
	"github.com/studyflow/backend/internal/store"
)

// Syncer is the engine surface the façade needs.
type Syncer interface {
	Trigger(ctx context.Context)
	DroppedOperations() []models.PendingOperation
}

// Service provides optimistic, offline-first access to all collections.
type Service struct {
	store  *store.Store
	syncer Syncer
}

// New creates a Service.
func New(st *store.Store, syncer Syncer) *Service {
	return &Service{store: st, syncer: syncer}
}

// trigger fires a background sync; it never blocks the caller.
func (s *Service) trigger(ctx context.Context) {
	if s.syncer != nil {
		s.syncer.Trigger(ctx)
	}
}

// create persists a new record locally and queues its remote create. The
// record keeps its temporary id until the sync engine remaps it.
func (s *Service) create(ctx context.Context, kind models.Kind, rec models.Record) error {
	if err := s.store.PutRecord(rec.UserID, kind, rec); err != nil {
		// Optimistic-update policy: in-memory state has already been handed
		// to the caller; a persistence failure is a warning, not a rollback.
		logging.Warn("local write not durable", logging.Fields{"kind": string(kind), "id": rec.ID})
	}
	op := &models.PendingOperation{
		ID:       ids.New(),
		UserID:   rec.UserID,
		Kind:     kind,
		Type:     models.OpCreate,
		RecordID: rec.ID,
		Payload:  rec.Payload,
	}
	if err := s.store.EnqueueOperation(op); err != nil {
		return err
	}
	s.trigger(ctx)
	return nil
}

// put applies an edited record locally and queues the remote write. If the
// record's create has not been sent yet, the edit is folded into the queued
// create so the backend receives one call with the final contents.
func (s *Service) put(ctx context.Context, kind models.Kind, rec models.Record) error {
	if err := s.store.PutRecord(rec.UserID, kind, rec); err != nil {
		logging.Warn("local write not durable", logging.Fields{"kind": string(kind), "id": rec.ID})
	}

	if createOp, pending, err := s.store.PendingCreateFor(kind, rec.ID); err != nil {
		return err
	} else if pending {
		if err := s.store.UpdateOperationPayload(createOp.ID, rec.Payload); err != nil {
			return err
		}
		s.trigger(ctx)
		return nil
	}

	op := &models.PendingOperation{
		ID:       ids.New(),
		UserID:   rec.UserID,
		Kind:     kind,
		Type:     models.OpUpdate,
		RecordID: rec.ID,
		Payload:  rec.Payload,
	}
	if err := s.store.EnqueueOperation(op); err != nil {
		return err
	}
	s.trigger(ctx)
	return nil
}

// remove deletes a record locally and queues the remote delete. Deleting a
// record whose create never reached the backend cancels the queued
// operations instead: the backend must not see an id it never assigned.
func (s *Service) remove(ctx context.Context, userID string, kind models.Kind, id string) error {
	if err := s.store.DeleteRecord(userID, kind, id); err != nil {
		logging.Warn("local delete not durable", logging.Fields{"kind": string(kind), "id": id})
	}

	if _, pending, err := s.store.PendingCreateFor(kind, id); err != nil {
		return err
	} else if pending {
		if _, err := s.store.RemoveOperationsForRecord(kind, id); err != nil {
			return err
		}
		return nil
	}

	op := &models.PendingOperation{
		ID:       ids.New(),
		UserID:   userID,
		Kind:     kind,
		Type:     models.OpDelete,
		RecordID: id,
	}
	if err := s.store.EnqueueOperation(op); err != nil {
		return err
	}
	s.trigger(ctx)
	return nil
}

// load fetches one record and reports models-level absence as NOT_FOUND.
func (s *Service) load(userID string, kind models.Kind, id string) (models.Record, error) {
	rec, exists, err := s.store.GetRecord(userID, kind, id)
	if err != nil {
		return models.Record{}, err
	}
	if !exists {
		return models.Record{}, apperr.New(apperr.ErrNotFound, "record not found")
	}
	return rec, nil
}

// ReconcileDropped removes local records whose queued create was discarded
// as permanently invalid, restoring the pre-create state. Returns the ids
// reverted. This realizes the revert half of the optimistic-update contract
// in one place instead of per screen.
func (s *Service) ReconcileDropped() ([]string, error) {
	var reverted []string
	for _, op := range s.syncer.DroppedOperations() {
		if op.Type != models.OpCreate {
			continue
		}
		if _, exists, err := s.store.GetRecord(op.UserID, op.Kind, op.RecordID); err != nil || !exists {
			continue
		}
		if err := s.store.DeleteRecord(op.UserID, op.Kind, op.RecordID); err != nil {
			return reverted, err
		}
		reverted = append(reverted, op.RecordID)
	}
	return reverted, nil
}

// decodeEach unpacks every record of a collection, skipping records whose
// payload no longer parses rather than failing the whole read.
func decodeEach[T any](records []models.Record, from func(models.Record) (T, error)) []T {
	out := make([]T, 0, len(records))
	for _, rec := range records {
		v, err := from(rec)
		if err != nil {
			logging.Warn("skipping malformed record", logging.Fields{"id": rec.ID})
			continue
		}
		out = append(out, v)
	}
	return out
}

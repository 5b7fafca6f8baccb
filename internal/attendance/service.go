package attendance

import (
	"context"
	"errors"
	"fmt"
)

// maxBatch caps bulk operations so a single request cannot pin the store.
const maxBatch = 500

// Auditor receives a trail entry for every administrator override.
type Auditor interface {
	Record(ctx context.Context, actor, action, detail string)
}

// Mutator is the slice of the repository the service mutates through.
type Mutator interface {
	SetStatus(ctx context.Context, id int64, status Status, notes string) error
	Delete(ctx context.Context, id int64) error
}

// Service exposes the administrator-privileged mutations: single-record
// overrides and best-effort bulk operations. These bypass window and duration
// checks entirely; every call is audited with the acting admin.
type Service struct {
	repo  Mutator
	audit Auditor
}

// NewService creates a service backed by a repository.
func NewService(repo Mutator, audit Auditor) *Service {
	return &Service{repo: repo, audit: audit}
}

// BulkFailure reports one id that could not be mutated.
type BulkFailure struct {
	ID     int64  `json:"id"`
	Reason string `json:"reason"`
}

// BulkResult is the partial-failure report of a batch mutation.
type BulkResult struct {
	Updated []int64       `json:"updated"`
	Failed  []BulkFailure `json:"failed"`
}

func validateBatch(ids []int64) error {
	if len(ids) == 0 {
		return errors.New("no ids provided")
	}
	if len(ids) > maxBatch {
		return fmt.Errorf("cannot process more than %d records at once", maxBatch)
	}
	return nil
}

// BulkChangeStatus sets status and notes on each id independently. A failed
// id becomes a report entry; the batch itself never aborts.
func (s *Service) BulkChangeStatus(ctx context.Context, ids []int64, status Status, notes, actor string) (BulkResult, error) {
	if err := validateBatch(ids); err != nil {
		return BulkResult{}, err
	}
	var res BulkResult
	for _, id := range ids {
		if err := s.repo.SetStatus(ctx, id, status, notes); err != nil {
			res.Failed = append(res.Failed, BulkFailure{ID: id, Reason: failureReason(err)})
			continue
		}
		res.Updated = append(res.Updated, id)
	}
	s.audit.Record(ctx, actor, "bulk_change_status",
		fmt.Sprintf("set %d record(s) to %s, %d failed", len(res.Updated), status, len(res.Failed)))
	return res, nil
}

// BulkDelete removes each id independently. Re-deleting an already-deleted id
// reports a not-found entry, making retries safe.
func (s *Service) BulkDelete(ctx context.Context, ids []int64, actor string) (BulkResult, error) {
	if err := validateBatch(ids); err != nil {
		return BulkResult{}, err
	}
	var res BulkResult
	for _, id := range ids {
		if err := s.repo.Delete(ctx, id); err != nil {
			res.Failed = append(res.Failed, BulkFailure{ID: id, Reason: failureReason(err)})
			continue
		}
		res.Updated = append(res.Updated, id)
	}
	s.audit.Record(ctx, actor, "bulk_delete_attendance",
		fmt.Sprintf("deleted %d record(s), %d failed", len(res.Updated), len(res.Failed)))
	return res, nil
}

// Override sets any status on a single record regardless of the transition
// table. This is the audited side-channel for manual corrections.
func (s *Service) Override(ctx context.Context, id int64, status Status, notes, actor string) error {
	if err := s.repo.SetStatus(ctx, id, status, notes); err != nil {
		return err
	}
	s.audit.Record(ctx, actor, "attendance_override",
		fmt.Sprintf("record %d set to %s", id, status))
	return nil
}

// DeleteRecord removes a single record with an audit entry.
func (s *Service) DeleteRecord(ctx context.Context, id int64, actor string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.audit.Record(ctx, actor, "attendance_delete", fmt.Sprintf("record %d deleted", id))
	return nil
}

func failureReason(err error) string {
	if errors.Is(err, ErrNotFound) {
		return "not found"
	}
	return err.Error()
}

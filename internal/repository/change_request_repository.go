package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lessonsync-api/internal/models"
)

const changeRequestColumns = `request_id, series_id, requester_id, requester_role, change_type, original_date, new_date, new_hour, new_minute,
approvals_needed, approvals_received, status, created_at, expires_at, resolved_at`

// ChangeRequestRepository persists voting units. Mutating methods accept an executor so the
// voting engine can run them under one transaction.
type ChangeRequestRepository struct {
	db *sqlx.DB
}

// NewChangeRequestRepository constructs the repository.
func NewChangeRequestRepository(db *sqlx.DB) *ChangeRequestRepository {
	return &ChangeRequestRepository{db: db}
}

func (r *ChangeRequestRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a pending request.
func (r *ChangeRequestRepository) Create(ctx context.Context, exec sqlx.ExtContext, req *models.ChangeRequest) error {
	if req == nil {
		return fmt.Errorf("change request payload is nil")
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = models.RequestPending
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}

	const query = `
INSERT INTO change_requests (request_id, series_id, requester_id, requester_role, change_type, original_date, new_date, new_hour, new_minute,
    approvals_needed, approvals_received, status, created_at, expires_at)
VALUES (:request_id, :series_id, :requester_id, :requester_role, :change_type, :original_date, :new_date, :new_hour, :new_minute,
    :approvals_needed, :approvals_received, :status, :created_at, :expires_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, req); err != nil {
		return fmt.Errorf("insert change request: %w", err)
	}
	return nil
}

// Get loads a request without locking it.
func (r *ChangeRequestRepository) Get(ctx context.Context, requestID string) (*models.ChangeRequest, error) {
	const query = `SELECT ` + changeRequestColumns + ` FROM change_requests WHERE request_id = $1`
	var req models.ChangeRequest
	if err := r.db.GetContext(ctx, &req, query, requestID); err != nil {
		return nil, err
	}
	return &req, nil
}

// GetForUpdate loads a request and holds its row lock until the surrounding transaction ends.
func (r *ChangeRequestRepository) GetForUpdate(ctx context.Context, exec sqlx.ExtContext, requestID string) (*models.ChangeRequest, error) {
	const query = `SELECT ` + changeRequestColumns + ` FROM change_requests WHERE request_id = $1 FOR UPDATE`
	var req models.ChangeRequest
	if err := sqlx.GetContext(ctx, r.exec(exec), &req, query, requestID); err != nil {
		return nil, err
	}
	return &req, nil
}

// IncrementApprovals bumps the counter of a pending request and returns the new value.
// sql.ErrNoRows means the request is missing or no longer pending.
func (r *ChangeRequestRepository) IncrementApprovals(ctx context.Context, exec sqlx.ExtContext, requestID string) (int, error) {
	const query = `UPDATE change_requests SET approvals_received = approvals_received + 1
WHERE request_id = $1 AND status = 'pending'
RETURNING approvals_received`
	var received int
	if err := sqlx.GetContext(ctx, r.exec(exec), &received, query, requestID); err != nil {
		return 0, err
	}
	return received, nil
}

// Resolve moves a pending request to a terminal status. sql.ErrNoRows means it already left pending.
func (r *ChangeRequestRepository) Resolve(ctx context.Context, exec sqlx.ExtContext, requestID string, status models.RequestStatus, at time.Time) error {
	if status == models.RequestPending {
		return fmt.Errorf("resolve change request: pending is not a terminal status")
	}
	const query = `UPDATE change_requests SET status = $1, resolved_at = $2 WHERE request_id = $3 AND status = 'pending'`
	result, err := r.exec(exec).ExecContext(ctx, query, status, at.UTC(), requestID)
	if err != nil {
		return fmt.Errorf("resolve change request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("change request rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ExpireBefore marks every pending request whose expiry has passed as expired.
func (r *ChangeRequestRepository) ExpireBefore(ctx context.Context, now time.Time) (int64, error) {
	const query = `UPDATE change_requests SET status = 'expired', resolved_at = $1 WHERE status = 'pending' AND expires_at < $1`
	result, err := r.db.ExecContext(ctx, query, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("expire change requests: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expired change requests rows affected: %w", err)
	}
	return affected, nil
}

// ListPendingForVoter returns live requests the voter has not voted on yet.
func (r *ChangeRequestRepository) ListPendingForVoter(ctx context.Context, voterID string, now time.Time) ([]models.ChangeRequest, error) {
	const query = `SELECT ` + changeRequestColumns + ` FROM change_requests r
WHERE r.status = 'pending' AND r.expires_at > $2
  AND NOT EXISTS (SELECT 1 FROM change_request_approvals a WHERE a.request_id = r.request_id AND a.voter_id = $1)
ORDER BY r.created_at`
	var requests []models.ChangeRequest
	if err := r.db.SelectContext(ctx, &requests, query, voterID, now.UTC()); err != nil {
		return nil, fmt.Errorf("list pending change requests: %w", err)
	}
	return requests, nil
}

// PurgeResolvedBefore deletes terminal requests resolved before cutoff; votes cascade.
func (r *ChangeRequestRepository) PurgeResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM change_requests WHERE status <> 'pending' AND resolved_at < $1`
	result, err := r.db.ExecContext(ctx, query, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge change requests: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purged change requests rows affected: %w", err)
	}
	return affected, nil
}

// ApprovalRepository persists one vote per (request_id, voter_id).
type ApprovalRepository struct {
	db *sqlx.DB
}

// NewApprovalRepository constructs the repository.
func NewApprovalRepository(db *sqlx.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

func (r *ApprovalRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Insert records a vote. It returns false without error when the voter already voted,
// leaving the first vote untouched.
func (r *ApprovalRepository) Insert(ctx context.Context, exec sqlx.ExtContext, approval models.Approval) (bool, error) {
	if approval.CreatedAt.IsZero() {
		approval.CreatedAt = time.Now().UTC()
	}
	const query = `
INSERT INTO change_request_approvals (request_id, voter_id, approved, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (request_id, voter_id) DO NOTHING`
	result, err := r.exec(exec).ExecContext(ctx, query, approval.RequestID, approval.VoterID, approval.Approved, approval.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert approval: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("approval rows affected: %w", err)
	}
	return affected == 1, nil
}

// ListByRequest returns the votes cast on a request in arrival order.
func (r *ApprovalRepository) ListByRequest(ctx context.Context, requestID string) ([]models.Approval, error) {
	const query = `SELECT request_id, voter_id, approved, created_at FROM change_request_approvals WHERE request_id = $1 ORDER BY created_at`
	var approvals []models.Approval
	if err := r.db.SelectContext(ctx, &approvals, query, requestID); err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	return approvals, nil
}

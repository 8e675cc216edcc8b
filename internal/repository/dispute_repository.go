package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/agent-marketplace/internal/models"
	"github.com/ignatzorin/agent-marketplace/internal/pkg/apperror"
)

// DisputeRepository отвечает за споры и их терминальные переходы.
type DisputeRepository struct {
	db *sqlx.DB
}

// NewDisputeRepository создаёт новый экземпляр.
func NewDisputeRepository(db *sqlx.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

const disputeColumns = `id, job_id, initiator_id, reason, status, refund_percentage,
	resolution_notes, resolved_by, created_at, resolved_at`

// GetByID возвращает спор по идентификатору.
func (r *DisputeRepository) GetByID(ctx context.Context, id int64) (*models.Dispute, error) {
	var dispute models.Dispute
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE id = $1`
	if err := r.db.GetContext(ctx, &dispute, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrDisputeNotFound
		}
		return nil, fmt.Errorf("dispute repository: get by id %w", err)
	}
	return &dispute, nil
}

// GetOpenByJobID возвращает незакрытый спор по заданию, если он есть.
func (r *DisputeRepository) GetOpenByJobID(ctx context.Context, jobID int64) (*models.Dispute, error) {
	var dispute models.Dispute
	query := `SELECT ` + disputeColumns + ` FROM disputes
		WHERE job_id = $1 AND status IN ($2, $3)`
	err := r.db.GetContext(ctx, &dispute, query, jobID, models.DisputeStatusOpen, models.DisputeStatusUnderReview)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrDisputeNotFound
		}
		return nil, fmt.Errorf("dispute repository: get open by job %w", err)
	}
	return &dispute, nil
}

// ListByUser возвращает споры, в которых пользователь — инициатор или участник задания.
func (r *DisputeRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	var disputes []models.Dispute
	query := `
		SELECT d.id, d.job_id, d.initiator_id, d.reason, d.status, d.refund_percentage,
		       d.resolution_notes, d.resolved_by, d.created_at, d.resolved_at
		FROM disputes d
		JOIN jobs j ON j.id = d.job_id
		WHERE j.client_id = $1 OR j.agent_id = $1
		ORDER BY d.created_at DESC LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &disputes, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("dispute repository: list by user %w", err)
	}
	return disputes, nil
}

// Create открывает спор и атомарно переводит задание в disputed. Частичный
// уникальный индекс по открытым спорам страхует от гонки двух инициаторов.
func (r *DisputeRepository) Create(ctx context.Context, dispute *models.Dispute) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("dispute repository: begin tx %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE jobs SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status IN ($3, $4)
	`, dispute.JobID, models.JobStatusDisputed, models.JobStatusInProgress, models.JobStatusPendingApproval)
	if err != nil {
		return fmt.Errorf("dispute repository: mark job disputed %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return apperror.ErrInvalidStatus
	}

	query := `
		INSERT INTO disputes (job_id, initiator_id, reason, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	if err := tx.QueryRowxContext(ctx, query,
		dispute.JobID, dispute.InitiatorID, dispute.Reason, dispute.Status,
	).Scan(&dispute.ID, &dispute.CreatedAt); err != nil {
		return fmt.Errorf("dispute repository: insert %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("dispute repository: commit %w", err)
	}
	return nil
}

// MarkUnderReview переводит спор из open в under_review.
func (r *DisputeRepository) MarkUnderReview(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE disputes SET status = $2 WHERE id = $1 AND status = $3`,
		id, models.DisputeStatusUnderReview, models.DisputeStatusOpen)
	if err != nil {
		return fmt.Errorf("dispute repository: mark under review %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return apperror.ErrInvalidStatus
	}
	return nil
}

// Resolve закрывает спор и в той же транзакции доводит задание и escrow до
// терминального исхода, рассчитанного сервисом.
func (r *DisputeRepository) Resolve(ctx context.Context, dispute *models.Dispute, jobStatus, escrowStatus string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("dispute repository: begin tx %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT id FROM jobs WHERE id = $1 FOR UPDATE`, dispute.JobID); err != nil {
		return fmt.Errorf("dispute repository: lock job %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE disputes
		SET status = $2, refund_percentage = $3, resolution_notes = $4, resolved_by = $5, resolved_at = NOW()
		WHERE id = $1 AND status IN ($6, $7)
	`, dispute.ID, dispute.Status, dispute.RefundPercentage, dispute.ResolutionNotes, dispute.ResolvedBy,
		models.DisputeStatusOpen, models.DisputeStatusUnderReview)
	if err != nil {
		return fmt.Errorf("dispute repository: resolve %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return apperror.ErrInvalidStatus
	}

	switch escrowStatus {
	case models.EscrowStatusReleased:
		err = releaseEscrowTx(ctx, tx, dispute.JobID)
	case models.EscrowStatusRefunded:
		err = refundEscrowTx(ctx, tx, dispute.JobID)
	case models.EscrowStatusPartiallyRefunded:
		pct := 0
		if dispute.RefundPercentage != nil {
			pct = *dispute.RefundPercentage
		}
		err = partialRefundEscrowTx(ctx, tx, dispute.JobID, pct)
	}
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE jobs SET status = $2, updated_at = NOW() WHERE id = $1`,
		dispute.JobID, jobStatus); err != nil {
		return fmt.Errorf("dispute repository: finalize job %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("dispute repository: commit %w", err)
	}
	return nil
}

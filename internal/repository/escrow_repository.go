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

// EscrowRepository — книга учёта заблокированных средств. Создание и
// исход записи происходят внутри транзакций заданий и споров, поэтому
// мутации оформлены как tx-хелперы, а сам репозиторий отдаёт только чтение.
type EscrowRepository struct {
	db *sqlx.DB
}

// NewEscrowRepository создаёт новый экземпляр.
func NewEscrowRepository(db *sqlx.DB) *EscrowRepository {
	return &EscrowRepository{db: db}
}

const escrowColumns = `id, job_id, client_id, agent_id, amount, status, refund_percentage, locked_at, released_at`

// GetByJobID возвращает escrow по заданию.
func (r *EscrowRepository) GetByJobID(ctx context.Context, jobID int64) (*models.Escrow, error) {
	var escrow models.Escrow
	query := `SELECT ` + escrowColumns + ` FROM escrow WHERE job_id = $1`
	if err := r.db.GetContext(ctx, &escrow, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrEscrowNotFound
		}
		return nil, fmt.Errorf("escrow repository: get by job %w", err)
	}
	return &escrow, nil
}

// lockEscrowTx создаёт запись escrow в статусе locked. Сумма равна сумме
// принятой ставки; это гарантирует вызывающая транзакция.
func lockEscrowTx(ctx context.Context, tx *sqlx.Tx, jobID int64, clientID, agentID uuid.UUID, amount float64) (*models.Escrow, error) {
	var escrow models.Escrow
	query := `
		INSERT INTO escrow (job_id, client_id, agent_id, amount, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + escrowColumns
	if err := tx.GetContext(ctx, &escrow, query, jobID, clientID, agentID, amount, models.EscrowStatusLocked); err != nil {
		return nil, fmt.Errorf("escrow repository: lock %w", err)
	}
	return &escrow, nil
}

// releaseEscrowTx переводит locked → released: вся сумма причитается исполнителю.
func releaseEscrowTx(ctx context.Context, tx *sqlx.Tx, jobID int64) error {
	return transitionEscrowTx(ctx, tx, jobID, models.EscrowStatusReleased, nil)
}

// refundEscrowTx переводит locked → refunded: вся сумма возвращается клиенту.
func refundEscrowTx(ctx context.Context, tx *sqlx.Tx, jobID int64) error {
	return transitionEscrowTx(ctx, tx, jobID, models.EscrowStatusRefunded, nil)
}

// partialRefundEscrowTx переводит locked → partially_refunded и фиксирует
// намеченный процент возврата. Сами средства двигает внешний слой расчётов.
func partialRefundEscrowTx(ctx context.Context, tx *sqlx.Tx, jobID int64, refundPercentage int) error {
	return transitionEscrowTx(ctx, tx, jobID, models.EscrowStatusPartiallyRefunded, &refundPercentage)
}

// transitionEscrowTx выполняет единственный допустимый переход записи.
// Условие status = locked делает исход одноразовым: повторная попытка
// завершить уже закрытый escrow не находит строку.
func transitionEscrowTx(ctx context.Context, tx *sqlx.Tx, jobID int64, status string, refundPercentage *int) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE escrow
		SET status = $2, refund_percentage = COALESCE($3, refund_percentage), released_at = NOW()
		WHERE job_id = $1 AND status = $4
	`, jobID, status, refundPercentage, models.EscrowStatusLocked)
	if err != nil {
		return fmt.Errorf("escrow repository: transition %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return apperror.ErrEscrowNotFound
	}
	return nil
}

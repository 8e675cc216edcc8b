package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/agent-marketplace/internal/models"
	"github.com/ignatzorin/agent-marketplace/internal/pkg/apperror"
)

type EscrowRepo interface {
	GetByJobID(ctx context.Context, jobID int64) (*models.Escrow, error)
}

// EscrowService отдаёт состояние заблокированных средств сторонам задания.
// Сами переходы escrow выполняются транзакциями заданий и споров.
type EscrowService struct {
	escrows EscrowRepo
}

func NewEscrowService(escrows EscrowRepo) *EscrowService {
	return &EscrowService{escrows: escrows}
}

// GetByJobID возвращает escrow задания. Запись видят только её стороны.
func (s *EscrowService) GetByJobID(ctx context.Context, jobID int64, userID uuid.UUID) (*models.Escrow, error) {
	escrow, err := s.escrows.GetByJobID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if escrow.ClientID != userID && escrow.AgentID != userID {
		return nil, apperror.ErrNotAuthorized
	}
	return escrow, nil
}

package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/agent-marketplace/internal/models"
	"github.com/ignatzorin/agent-marketplace/internal/pkg/apperror"
)

type DisputeRepo interface {
	GetByID(ctx context.Context, id int64) (*models.Dispute, error)
	GetOpenByJobID(ctx context.Context, jobID int64) (*models.Dispute, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error)
	Create(ctx context.Context, dispute *models.Dispute) error
	MarkUnderReview(ctx context.Context, id int64) error
	Resolve(ctx context.Context, dispute *models.Dispute, jobStatus, escrowStatus string) error
}

type JobRepoForDispute interface {
	GetByID(ctx context.Context, id int64) (*models.Job, error)
}

// DisputeService ведёт споры: открытие стороной задания, ответ второй
// стороны и разрешение арбитром с одним из трёх исходов escrow.
type DisputeService struct {
	disputes DisputeRepo
	jobs     JobRepoForDispute
	notifier JobNotifier
	log      *logrus.Logger
}

func NewDisputeService(disputes DisputeRepo, jobs JobRepoForDispute, notifier JobNotifier, log *logrus.Logger) *DisputeService {
	return &DisputeService{disputes: disputes, jobs: jobs, notifier: notifier, log: log}
}

// OpenDispute открывает спор по заданию в работе. На задание допускается
// не больше одного незакрытого спора.
func (s *DisputeService) OpenDispute(ctx context.Context, jobID int64, userID uuid.UUID, reason string) (*models.Dispute, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !isParticipant(job, userID) {
		return nil, apperror.ErrNotAuthorized
	}
	if job.Status != models.JobStatusInProgress && job.Status != models.JobStatusPendingApproval {
		return nil, apperror.ErrInvalidStatus
	}

	if _, err := s.disputes.GetOpenByJobID(ctx, jobID); err == nil {
		return nil, apperror.ErrDisputeAlreadyOpen
	} else if !apperror.IsNotFound(err) {
		return nil, err
	}

	dispute := &models.Dispute{
		JobID:       jobID,
		InitiatorID: userID,
		Reason:      reason,
		Status:      models.DisputeStatusOpen,
	}
	if err := s.disputes.Create(ctx, dispute); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"dispute_id": dispute.ID, "job_id": jobID}).Warn("открыт спор")
	if s.notifier != nil {
		other := job.ClientID
		if other == userID && job.AgentID != nil {
			other = *job.AgentID
		}
		s.notifier.NotifyJobEvent(jobID, "dispute_opened", other)
	}
	return dispute, nil
}

// RespondToDispute фиксирует, что вторая сторона ознакомилась со спором:
// спор переходит из open в under_review.
func (s *DisputeService) RespondToDispute(ctx context.Context, disputeID int64, userID uuid.UUID) error {
	dispute, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		return err
	}
	job, err := s.jobs.GetByID(ctx, dispute.JobID)
	if err != nil {
		return err
	}
	if !isParticipant(job, userID) || dispute.InitiatorID == userID {
		return apperror.ErrNotAuthorized
	}
	if dispute.Status != models.DisputeStatusOpen {
		return apperror.ErrInvalidStatus
	}
	return s.disputes.MarkUnderReview(ctx, disputeID)
}

// ResolveDisputeInput — решение арбитра.
type ResolveDisputeInput struct {
	// Outcome: client — полный возврат клиенту, agent — полная выплата
	// исполнителю, split — частичный возврат по RefundPercentage.
	Outcome          string `json:"outcome" binding:"required,oneof=client agent split"`
	RefundPercentage int    `json:"refund_percentage" binding:"min=0,max=100"`
	Notes            string `json:"notes"`
}

// ResolveDispute закрывает спор решением арбитра. Исход определяет судьбу
// escrow и терминальный статус задания: возврат клиенту отменяет задание,
// выплата исполнителю (полная или частичная) завершает его.
func (s *DisputeService) ResolveDispute(ctx context.Context, disputeID int64, arbitratorID uuid.UUID, role string, input ResolveDisputeInput) (*models.Dispute, error) {
	if !isArbitrator(role) {
		return nil, apperror.ErrNotAuthorized
	}

	dispute, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if dispute.IsResolved() {
		return nil, apperror.ErrInvalidStatus
	}

	var jobStatus, escrowStatus string
	switch input.Outcome {
	case "client":
		dispute.Status = models.DisputeStatusResolvedClient
		jobStatus = models.JobStatusCancelled
		escrowStatus = models.EscrowStatusRefunded
	case "agent":
		dispute.Status = models.DisputeStatusResolvedAgent
		jobStatus = models.JobStatusCompleted
		escrowStatus = models.EscrowStatusReleased
	case "split":
		if input.RefundPercentage <= 0 || input.RefundPercentage >= 100 {
			return nil, apperror.ErrInvalidAmount
		}
		dispute.Status = models.DisputeStatusResolvedSplit
		jobStatus = models.JobStatusCompleted
		escrowStatus = models.EscrowStatusPartiallyRefunded
		pct := input.RefundPercentage
		dispute.RefundPercentage = &pct
	default:
		return nil, apperror.ErrInvalidStatus
	}

	if input.Notes != "" {
		notes := input.Notes
		dispute.ResolutionNotes = &notes
	}
	dispute.ResolvedBy = &arbitratorID

	if err := s.disputes.Resolve(ctx, dispute, jobStatus, escrowStatus); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"dispute_id": disputeID, "job_id": dispute.JobID, "outcome": input.Outcome,
	}).Info("спор разрешён")
	if s.notifier != nil {
		job, err := s.jobs.GetByID(ctx, dispute.JobID)
		if err == nil {
			recipients := []uuid.UUID{job.ClientID}
			if job.AgentID != nil {
				recipients = append(recipients, *job.AgentID)
			}
			s.notifier.NotifyJobEvent(dispute.JobID, "dispute_resolved", recipients...)
		}
	}
	return dispute, nil
}

// GetDispute возвращает спор его сторонам и арбитрам.
func (s *DisputeService) GetDispute(ctx context.Context, disputeID int64, userID uuid.UUID, role string) (*models.Dispute, error) {
	dispute, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if isArbitrator(role) {
		return dispute, nil
	}
	job, err := s.jobs.GetByID(ctx, dispute.JobID)
	if err != nil {
		return nil, err
	}
	if !isParticipant(job, userID) {
		return nil, apperror.ErrNotAuthorized
	}
	return dispute, nil
}

// ListMyDisputes возвращает споры по заданиям пользователя.
func (s *DisputeService) ListMyDisputes(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.disputes.ListByUser(ctx, userID, limit, offset)
}

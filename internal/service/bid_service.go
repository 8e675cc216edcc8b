package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/agent-marketplace/internal/models"
	"github.com/ignatzorin/agent-marketplace/internal/pkg/apperror"
	"github.com/ignatzorin/agent-marketplace/internal/validation"
)

type BidRepo interface {
	GetByID(ctx context.Context, id int64) (*models.Job, error)
	CreateBid(ctx context.Context, bid *models.Bid) error
	DeleteBid(ctx context.Context, jobID int64, agentID uuid.UUID) error
}

type AgentProfileRepoForBid interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.AgentProfile, error)
}

// BidService принимает и отзывает ставки исполнителей.
type BidService struct {
	jobs     BidRepo
	profiles AgentProfileRepoForBid
	notifier JobNotifier
	log      *logrus.Logger
}

func NewBidService(jobs BidRepo, profiles AgentProfileRepoForBid, notifier JobNotifier, log *logrus.Logger) *BidService {
	return &BidService{jobs: jobs, profiles: profiles, notifier: notifier, log: log}
}

// PlaceBidInput — параметры новой ставки.
type PlaceBidInput struct {
	Amount        float64 `json:"amount" binding:"required"`
	Proposal      string  `json:"proposal" binding:"required"`
	EstimatedDays int     `json:"estimated_days" binding:"required,min=1"`
}

// PlaceBid размещает ставку на задание. Ставить может только
// зарегистрированный исполнитель, не являющийся автором задания,
// пока задание открыто и срок приёма ставок не истёк.
func (s *BidService) PlaceBid(ctx context.Context, jobID int64, agentID uuid.UUID, input PlaceBidInput) (*models.Bid, error) {
	if input.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount
	}
	if err := validation.ValidateProposal(input.Proposal); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	if _, err := s.profiles.GetProfile(ctx, agentID); err != nil {
		return nil, err
	}

	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if isClient(job, agentID) {
		return nil, apperror.ErrCannotBidOwnJob
	}
	if job.Status != models.JobStatusPosted {
		return nil, apperror.ErrInvalidStatus
	}
	if job.DeadlineAt != nil && job.DeadlineAt.Before(time.Now()) {
		return nil, apperror.ErrDeadlinePassed
	}

	bid := &models.Bid{
		JobID:         jobID,
		AgentID:       agentID,
		Amount:        input.Amount,
		Proposal:      input.Proposal,
		EstimatedDays: input.EstimatedDays,
	}
	if err := s.jobs.CreateBid(ctx, bid); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"job_id": jobID, "bid_id": bid.ID, "agent_id": agentID}).Info("ставка размещена")
	if s.notifier != nil {
		s.notifier.NotifyJobEvent(jobID, "bid_placed", job.ClientID)
	}
	return bid, nil
}

// WithdrawBid отзывает ставку, пока задание открыто. После повторной
// ставки исполнитель получит новый идентификатор.
func (s *BidService) WithdrawBid(ctx context.Context, jobID int64, agentID uuid.UUID) error {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != models.JobStatusPosted {
		return apperror.ErrInvalidStatus
	}
	return s.jobs.DeleteBid(ctx, jobID, agentID)
}

// ListBids возвращает ставки задания.
func (s *BidService) ListBids(ctx context.Context, jobID int64) ([]models.Bid, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return job.Bids, nil
}

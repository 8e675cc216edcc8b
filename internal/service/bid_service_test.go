package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ignatzorin/agent-marketplace/internal/models"
	"github.com/ignatzorin/agent-marketplace/internal/pkg/apperror"
)

type mockBidRepo struct {
	mock.Mock
}

func (m *mockBidRepo) GetByID(ctx context.Context, id int64) (*models.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Job), args.Error(1)
}

func (m *mockBidRepo) CreateBid(ctx context.Context, bid *models.Bid) error {
	args := m.Called(ctx, bid)
	if args.Error(0) == nil {
		bid.ID = 1
	}
	return args.Error(0)
}

func (m *mockBidRepo) DeleteBid(ctx context.Context, jobID int64, agentID uuid.UUID) error {
	args := m.Called(ctx, jobID, agentID)
	return args.Error(0)
}

func TestBidService_PlaceBid_Success(t *testing.T) {
	bidRepo := new(mockBidRepo)
	profileRepo := new(mockProfileRepo)
	notifier := new(mockNotifier)
	svc := NewBidService(bidRepo, profileRepo, notifier, newTestLogger())
	ctx := context.Background()
	agentID := uuid.New()

	job := &models.Job{ID: 3, ClientID: uuid.New(), Status: models.JobStatusPosted}
	profileRepo.On("GetProfile", ctx, agentID).Return(&models.AgentProfile{UserID: agentID}, nil)
	bidRepo.On("GetByID", ctx, int64(3)).Return(job, nil)
	bidRepo.On("CreateBid", ctx, mock.AnythingOfType("*models.Bid")).Return(nil)
	notifier.On("NotifyJobEvent", int64(3), "bid_placed", []uuid.UUID{job.ClientID})

	bid, err := svc.PlaceBid(ctx, 3, agentID, PlaceBidInput{
		Amount: 200, Proposal: "Сделаю за три дня", EstimatedDays: 3,
	})
	assert.NoError(t, err)
	assert.Equal(t, agentID, bid.AgentID)
	assert.Equal(t, 200.0, bid.Amount)
	notifier.AssertExpectations(t)
}

func TestBidService_PlaceBid_NotRegisteredAgent(t *testing.T) {
	bidRepo := new(mockBidRepo)
	profileRepo := new(mockProfileRepo)
	notifier := new(mockNotifier)
	svc := NewBidService(bidRepo, profileRepo, notifier, newTestLogger())
	ctx := context.Background()
	agentID := uuid.New()

	profileRepo.On("GetProfile", ctx, agentID).Return(nil, apperror.ErrAgentNotRegistered)

	_, err := svc.PlaceBid(ctx, 3, agentID, PlaceBidInput{Amount: 200, Proposal: "Сделаю за три дня", EstimatedDays: 1})
	assert.ErrorIs(t, err, apperror.ErrAgentNotRegistered)
}

func TestBidService_PlaceBid_OwnJob(t *testing.T) {
	bidRepo := new(mockBidRepo)
	profileRepo := new(mockProfileRepo)
	notifier := new(mockNotifier)
	svc := NewBidService(bidRepo, profileRepo, notifier, newTestLogger())
	ctx := context.Background()
	clientID := uuid.New()

	job := &models.Job{ID: 3, ClientID: clientID, Status: models.JobStatusPosted}
	profileRepo.On("GetProfile", ctx, clientID).Return(&models.AgentProfile{UserID: clientID}, nil)
	bidRepo.On("GetByID", ctx, int64(3)).Return(job, nil)

	_, err := svc.PlaceBid(ctx, 3, clientID, PlaceBidInput{Amount: 200, Proposal: "Сделаю за три дня", EstimatedDays: 1})
	assert.ErrorIs(t, err, apperror.ErrCannotBidOwnJob)
}

func TestBidService_PlaceBid_DeadlinePassed(t *testing.T) {
	bidRepo := new(mockBidRepo)
	profileRepo := new(mockProfileRepo)
	notifier := new(mockNotifier)
	svc := NewBidService(bidRepo, profileRepo, notifier, newTestLogger())
	ctx := context.Background()
	agentID := uuid.New()

	past := time.Now().Add(-time.Hour)
	job := &models.Job{ID: 3, ClientID: uuid.New(), Status: models.JobStatusPosted, DeadlineAt: &past}
	profileRepo.On("GetProfile", ctx, agentID).Return(&models.AgentProfile{UserID: agentID}, nil)
	bidRepo.On("GetByID", ctx, int64(3)).Return(job, nil)

	_, err := svc.PlaceBid(ctx, 3, agentID, PlaceBidInput{Amount: 200, Proposal: "Сделаю за три дня", EstimatedDays: 1})
	assert.ErrorIs(t, err, apperror.ErrDeadlinePassed)
}

func TestBidService_PlaceBid_Duplicate(t *testing.T) {
	bidRepo := new(mockBidRepo)
	profileRepo := new(mockProfileRepo)
	notifier := new(mockNotifier)
	svc := NewBidService(bidRepo, profileRepo, notifier, newTestLogger())
	ctx := context.Background()
	agentID := uuid.New()

	job := &models.Job{ID: 3, ClientID: uuid.New(), Status: models.JobStatusPosted}
	profileRepo.On("GetProfile", ctx, agentID).Return(&models.AgentProfile{UserID: agentID}, nil)
	bidRepo.On("GetByID", ctx, int64(3)).Return(job, nil)
	bidRepo.On("CreateBid", ctx, mock.AnythingOfType("*models.Bid")).Return(apperror.ErrAlreadyBid)

	_, err := svc.PlaceBid(ctx, 3, agentID, PlaceBidInput{Amount: 200, Proposal: "Сделаю за три дня", EstimatedDays: 1})
	assert.ErrorIs(t, err, apperror.ErrAlreadyBid)
}

func TestBidService_WithdrawBid_OnlyWhilePosted(t *testing.T) {
	bidRepo := new(mockBidRepo)
	svc := NewBidService(bidRepo, new(mockProfileRepo), new(mockNotifier), newTestLogger())
	ctx := context.Background()
	agentID := uuid.New()

	job := &models.Job{ID: 3, ClientID: uuid.New(), Status: models.JobStatusInProgress}
	bidRepo.On("GetByID", ctx, int64(3)).Return(job, nil)

	err := svc.WithdrawBid(ctx, 3, agentID)
	assert.ErrorIs(t, err, apperror.ErrInvalidStatus)
}

func TestBidService_WithdrawBid_Success(t *testing.T) {
	bidRepo := new(mockBidRepo)
	svc := NewBidService(bidRepo, new(mockProfileRepo), new(mockNotifier), newTestLogger())
	ctx := context.Background()
	agentID := uuid.New()

	job := &models.Job{ID: 3, ClientID: uuid.New(), Status: models.JobStatusPosted}
	bidRepo.On("GetByID", ctx, int64(3)).Return(job, nil)
	bidRepo.On("DeleteBid", ctx, int64(3), agentID).Return(nil)

	err := svc.WithdrawBid(ctx, 3, agentID)
	assert.NoError(t, err)
	bidRepo.AssertExpectations(t)
}

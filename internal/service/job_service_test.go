package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ignatzorin/agent-marketplace/internal/models"
	"github.com/ignatzorin/agent-marketplace/internal/pkg/apperror"
	"github.com/ignatzorin/agent-marketplace/internal/repository"
)

func newTestLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type mockJobRepo struct {
	mock.Mock
}

func (m *mockJobRepo) GetByID(ctx context.Context, id int64) (*models.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Job), args.Error(1)
}

func (m *mockJobRepo) Create(ctx context.Context, job *models.Job, milestones []models.Milestone) error {
	args := m.Called(ctx, job, milestones)
	if args.Error(0) == nil {
		job.ID = 1
	}
	return args.Error(0)
}

func (m *mockJobRepo) Cancel(ctx context.Context, jobID int64) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

func (m *mockJobRepo) AcceptBid(ctx context.Context, jobID int64, agentID, clientID uuid.UUID, amount float64) (*models.Escrow, error) {
	args := m.Called(ctx, jobID, agentID, clientID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Escrow), args.Error(1)
}

func (m *mockJobRepo) TransitionMilestone(ctx context.Context, jobID int64, t repository.MilestoneTransition) error {
	args := m.Called(ctx, jobID, t)
	return args.Error(0)
}

func (m *mockJobRepo) Complete(ctx context.Context, jobID int64, agentID uuid.UUID) (int, int, error) {
	args := m.Called(ctx, jobID, agentID)
	return args.Int(0), args.Int(1), args.Error(2)
}

func (m *mockJobRepo) List(ctx context.Context, params repository.JobListParams) ([]models.Job, int, error) {
	args := m.Called(ctx, params)
	return args.Get(0).([]models.Job), args.Int(1), args.Error(2)
}

func (m *mockJobRepo) ListByParticipant(ctx context.Context, userID uuid.UUID) ([]models.Job, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]models.Job), args.Error(1)
}

func (m *mockJobRepo) GetStats(ctx context.Context) (*models.MarketplaceStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MarketplaceStats), args.Error(1)
}

type mockProfileRepo struct {
	mock.Mock
}

func (m *mockProfileRepo) GetProfile(ctx context.Context, userID uuid.UUID) (*models.AgentProfile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AgentProfile), args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifyJobEvent(jobID int64, event string, recipients ...uuid.UUID) {
	m.Called(jobID, event, recipients)
}

func newJobService(jobs *mockJobRepo) *JobService {
	return NewJobService(jobs, nil, newTestLogger())
}

func TestJobService_PostJob_WithoutMilestones(t *testing.T) {
	jobRepo := new(mockJobRepo)
	svc := newJobService(jobRepo)
	ctx := context.Background()
	clientID := uuid.New()

	var captured []models.Milestone
	jobRepo.On("Create", ctx, mock.AnythingOfType("*models.Job"), mock.AnythingOfType("[]models.Milestone")).
		Run(func(args mock.Arguments) {
			captured = args.Get(2).([]models.Milestone)
		}).Return(nil)

	job, err := svc.PostJob(ctx, clientID, PostJobInput{
		Title:       "Разметка данных",
		Description: "Разметить 10к примеров",
		Category:    "data",
		Payment:     500,
	})

	// Задание без объявленных этапов их и не получает: приёмка идёт
	// напрямую через CompleteJob.
	assert.NoError(t, err)
	assert.Equal(t, models.JobStatusPosted, job.Status)
	assert.Empty(t, captured)
}

func TestJobService_PostJob_InvalidPayment(t *testing.T) {
	svc := newJobService(new(mockJobRepo))

	_, err := svc.PostJob(context.Background(), uuid.New(), PostJobInput{
		Title: "Разметка данных", Description: "Разметить 10к примеров", Category: "data", Payment: 0,
	})
	assert.ErrorIs(t, err, apperror.ErrInvalidAmount)
}

func TestJobService_PostJob_PastDeadline(t *testing.T) {
	svc := newJobService(new(mockJobRepo))

	past := time.Now().Add(-time.Hour)
	_, err := svc.PostJob(context.Background(), uuid.New(), PostJobInput{
		Title: "Разметка данных", Description: "Разметить 10к примеров", Category: "data", Payment: 100, DeadlineAt: &past,
	})
	assert.ErrorIs(t, err, apperror.ErrDeadlinePassed)
}

func TestJobService_PostJob_MilestonesMustSumTo100(t *testing.T) {
	svc := newJobService(new(mockJobRepo))

	_, err := svc.PostJob(context.Background(), uuid.New(), PostJobInput{
		Title: "Разметка данных", Description: "Разметить 10к примеров", Category: "data", Payment: 100,
		Milestones: []MilestoneInput{
			{Title: "первый", PaymentPercentage: 40},
			{Title: "второй", PaymentPercentage: 40},
		},
	})
	assert.ErrorIs(t, err, apperror.ErrInvalidMilestonePercentages)
}

func TestJobService_CancelJob_Success(t *testing.T) {
	jobRepo := new(mockJobRepo)
	svc := newJobService(jobRepo)
	ctx := context.Background()
	clientID := uuid.New()

	job := &models.Job{ID: 7, ClientID: clientID, Status: models.JobStatusPosted}
	jobRepo.On("GetByID", ctx, int64(7)).Return(job, nil)
	jobRepo.On("Cancel", ctx, int64(7)).Return(nil)

	err := svc.CancelJob(ctx, 7, clientID)
	assert.NoError(t, err)
	jobRepo.AssertExpectations(t)
}

func TestJobService_CancelJob_NotClient(t *testing.T) {
	jobRepo := new(mockJobRepo)
	svc := newJobService(jobRepo)
	ctx := context.Background()

	job := &models.Job{ID: 7, ClientID: uuid.New(), Status: models.JobStatusPosted}
	jobRepo.On("GetByID", ctx, int64(7)).Return(job, nil)

	err := svc.CancelJob(ctx, 7, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotAuthorized)
}

func TestJobService_CancelJob_AfterAccept(t *testing.T) {
	jobRepo := new(mockJobRepo)
	svc := newJobService(jobRepo)
	ctx := context.Background()
	clientID := uuid.New()

	job := &models.Job{ID: 7, ClientID: clientID, Status: models.JobStatusInProgress}
	jobRepo.On("GetByID", ctx, int64(7)).Return(job, nil)

	err := svc.CancelJob(ctx, 7, clientID)
	assert.ErrorIs(t, err, apperror.ErrInvalidStatus)
}

func TestJobService_AcceptBid_Success(t *testing.T) {
	jobRepo := new(mockJobRepo)
	notifier := new(mockNotifier)
	svc := NewJobService(jobRepo, notifier, newTestLogger())
	ctx := context.Background()

	clientID := uuid.New()
	agentID := uuid.New()
	job := &models.Job{
		ID: 3, ClientID: clientID, Status: models.JobStatusPosted,
		Bids: []models.Bid{{ID: 11, JobID: 3, AgentID: agentID, Amount: 250}},
	}
	escrow := &models.Escrow{ID: 1, JobID: 3, Amount: 250, Status: models.EscrowStatusLocked}

	jobRepo.On("GetByID", ctx, int64(3)).Return(job, nil)
	jobRepo.On("AcceptBid", ctx, int64(3), agentID, clientID, 250.0).Return(escrow, nil)
	notifier.On("NotifyJobEvent", int64(3), "bid_accepted", []uuid.UUID{agentID}).Return()

	got, err := svc.AcceptBid(ctx, 3, clientID, 11)
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowStatusLocked, got.Status)
	assert.Equal(t, 250.0, got.Amount)
	notifier.AssertExpectations(t)
}

func TestJobService_AcceptBid_UnknownBid(t *testing.T) {
	jobRepo := new(mockJobRepo)
	svc := newJobService(jobRepo)
	ctx := context.Background()
	clientID := uuid.New()

	job := &models.Job{ID: 3, ClientID: clientID, Status: models.JobStatusPosted}
	jobRepo.On("GetByID", ctx, int64(3)).Return(job, nil)

	_, err := svc.AcceptBid(ctx, 3, clientID, 999)
	assert.ErrorIs(t, err, apperror.ErrBidNotFound)
}

func TestJobService_SubmitMilestone_Success(t *testing.T) {
	jobRepo := new(mockJobRepo)
	svc := newJobService(jobRepo)
	ctx := context.Background()
	agentID := uuid.New()

	job := &models.Job{
		ID: 5, ClientID: uuid.New(), AgentID: &agentID, Status: models.JobStatusInProgress,
		Milestones: []models.Milestone{{ID: 21, JobID: 5, Ordinal: 1, Status: models.MilestoneStatusInProgress}},
	}
	jobRepo.On("GetByID", ctx, int64(5)).Return(job, nil)
	jobRepo.On("TransitionMilestone", ctx, int64(5), repository.MilestoneTransition{
		MilestoneID:   21,
		MilestoneFrom: models.MilestoneStatusInProgress,
		MilestoneTo:   models.MilestoneStatusSubmitted,
		JobFrom:       models.JobStatusInProgress,
		JobTo:         models.JobStatusPendingApproval,
	}).Return(nil)

	err := svc.SubmitMilestone(ctx, 5, agentID, 21)
	assert.NoError(t, err)
	jobRepo.AssertExpectations(t)
}

func TestJobService_SubmitMilestone_NotAssignedAgent(t *testing.T) {
	jobRepo := new(mockJobRepo)
	svc := newJobService(jobRepo)
	ctx := context.Background()
	agentID := uuid.New()

	job := &models.Job{ID: 5, ClientID: uuid.New(), AgentID: &agentID, Status: models.JobStatusInProgress}
	jobRepo.On("GetByID", ctx, int64(5)).Return(job, nil)

	err := svc.SubmitMilestone(ctx, 5, uuid.New(), 21)
	assert.ErrorIs(t, err, apperror.ErrNotAuthorized)
}

func TestJobService_ApproveMilestone_Intermediate(t *testing.T) {
	jobRepo := new(mockJobRepo)
	svc := newJobService(jobRepo)
	ctx := context.Background()
	clientID := uuid.New()
	agentID := uuid.New()

	job := &models.Job{
		ID: 5, ClientID: clientID, AgentID: &agentID, Status: models.JobStatusPendingApproval,
		Milestones: []models.Milestone{
			{ID: 21, JobID: 5, Ordinal: 1, Status: models.MilestoneStatusSubmitted},
			{ID: 22, JobID: 5, Ordinal: 2, Status: models.MilestoneStatusPending},
		},
	}
	next := int64(22)
	jobRepo.On("GetByID", ctx, int64(5)).Return(job, nil)
	jobRepo.On("TransitionMilestone", ctx, int64(5), repository.MilestoneTransition{
		MilestoneID:     21,
		MilestoneFrom:   models.MilestoneStatusSubmitted,
		MilestoneTo:     models.MilestoneStatusApproved,
		JobFrom:         models.JobStatusPendingApproval,
		JobTo:           models.JobStatusInProgress,
		NextMilestoneID: &next,
	}).Return(nil)

	err := svc.ApproveMilestone(ctx, 5, clientID, 21)
	assert.NoError(t, err)
	jobRepo.AssertExpectations(t)
}

func TestJobService_ApproveMilestone_LastCompletesJob(t *testing.T) {
	jobRepo := new(mockJobRepo)
	svc := newJobService(jobRepo)
	ctx := context.Background()
	clientID := uuid.New()
	agentID := uuid.New()

	job := &models.Job{
		ID: 5, ClientID: clientID, AgentID: &agentID, Status: models.JobStatusPendingApproval,
		Milestones: []models.Milestone{
			{ID: 21, JobID: 5, Ordinal: 1, Status: models.MilestoneStatusApproved},
			{ID: 22, JobID: 5, Ordinal: 2, Status: models.MilestoneStatusSubmitted},
		},
	}

	jobRepo.On("GetByID", ctx, int64(5)).Return(job, nil)
	jobRepo.On("Complete", ctx, int64(5), agentID).Return(4, 92, nil)

	err := svc.ApproveMilestone(ctx, 5, clientID, 22)
	assert.NoError(t, err)
	jobRepo.AssertNotCalled(t, "TransitionMilestone", mock.Anything, mock.Anything, mock.Anything)
	jobRepo.AssertExpectations(t)
}

func TestJobService_RequestRevision_Success(t *testing.T) {
	jobRepo := new(mockJobRepo)
	svc := newJobService(jobRepo)
	ctx := context.Background()
	clientID := uuid.New()
	agentID := uuid.New()

	job := &models.Job{
		ID: 5, ClientID: clientID, AgentID: &agentID, Status: models.JobStatusPendingApproval,
		Milestones: []models.Milestone{{ID: 21, JobID: 5, Ordinal: 1, Status: models.MilestoneStatusSubmitted}},
	}
	jobRepo.On("GetByID", ctx, int64(5)).Return(job, nil)
	jobRepo.On("TransitionMilestone", ctx, int64(5), repository.MilestoneTransition{
		MilestoneID:   21,
		MilestoneFrom: models.MilestoneStatusSubmitted,
		MilestoneTo:   models.MilestoneStatusRejected,
		JobFrom:       models.JobStatusPendingApproval,
		JobTo:         models.JobStatusInProgress,
	}).Return(nil)

	err := svc.RequestRevision(ctx, 5, clientID, 21)
	assert.NoError(t, err)
	jobRepo.AssertExpectations(t)
}

func TestJobService_RequestRevision_LostRaceToCompletion(t *testing.T) {
	jobRepo := new(mockJobRepo)
	svc := newJobService(jobRepo)
	ctx := context.Background()
	clientID := uuid.New()
	agentID := uuid.New()

	// Сервис прочитал pending_approval, но пока запрос шёл, задание успело
	// завершиться. Репозиторий перепроверяет статус под блокировкой и
	// отклоняет устаревший переход, не трогая завершённое задание.
	job := &models.Job{
		ID: 5, ClientID: clientID, AgentID: &agentID, Status: models.JobStatusPendingApproval,
		Milestones: []models.Milestone{{ID: 21, JobID: 5, Ordinal: 1, Status: models.MilestoneStatusSubmitted}},
	}
	jobRepo.On("GetByID", ctx, int64(5)).Return(job, nil)
	jobRepo.On("TransitionMilestone", ctx, int64(5), mock.AnythingOfType("repository.MilestoneTransition")).
		Return(apperror.ErrInvalidStatus)

	err := svc.RequestRevision(ctx, 5, clientID, 21)
	assert.ErrorIs(t, err, apperror.ErrInvalidStatus)
}

func TestJobService_ResubmitMilestone_OnlyRejected(t *testing.T) {
	jobRepo := new(mockJobRepo)
	svc := newJobService(jobRepo)
	ctx := context.Background()
	agentID := uuid.New()

	job := &models.Job{
		ID: 5, ClientID: uuid.New(), AgentID: &agentID, Status: models.JobStatusInProgress,
		Milestones: []models.Milestone{{ID: 21, JobID: 5, Ordinal: 1, Status: models.MilestoneStatusInProgress}},
	}
	jobRepo.On("GetByID", ctx, int64(5)).Return(job, nil)

	err := svc.ResubmitMilestone(ctx, 5, agentID, 21)
	assert.ErrorIs(t, err, apperror.ErrInvalidStatus)
}

func TestJobService_CompleteJob_Success(t *testing.T) {
	jobRepo := new(mockJobRepo)
	svc := newJobService(jobRepo)
	ctx := context.Background()
	clientID := uuid.New()
	agentID := uuid.New()

	job := &models.Job{ID: 5, ClientID: clientID, AgentID: &agentID, Status: models.JobStatusInProgress}

	jobRepo.On("GetByID", ctx, int64(5)).Return(job, nil)
	jobRepo.On("Complete", ctx, int64(5), agentID).Return(1, 100, nil)

	err := svc.CompleteJob(ctx, 5, clientID)
	assert.NoError(t, err)
	jobRepo.AssertExpectations(t)
}

func TestJobService_CompleteJob_InvalidStatus(t *testing.T) {
	jobRepo := new(mockJobRepo)
	svc := newJobService(jobRepo)
	ctx := context.Background()
	clientID := uuid.New()

	job := &models.Job{ID: 5, ClientID: clientID, Status: models.JobStatusPosted}
	jobRepo.On("GetByID", ctx, int64(5)).Return(job, nil)

	err := svc.CompleteJob(ctx, 5, clientID)
	assert.ErrorIs(t, err, apperror.ErrInvalidStatus)
}

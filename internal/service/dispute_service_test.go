package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ignatzorin/agent-marketplace/internal/models"
	"github.com/ignatzorin/agent-marketplace/internal/pkg/apperror"
)

type mockDisputeRepo struct {
	mock.Mock
}

func (m *mockDisputeRepo) GetByID(ctx context.Context, id int64) (*models.Dispute, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) GetOpenByJobID(ctx context.Context, jobID int64) (*models.Dispute, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) Create(ctx context.Context, dispute *models.Dispute) error {
	args := m.Called(ctx, dispute)
	if args.Error(0) == nil {
		dispute.ID = 1
	}
	return args.Error(0)
}

func (m *mockDisputeRepo) MarkUnderReview(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockDisputeRepo) Resolve(ctx context.Context, dispute *models.Dispute, jobStatus, escrowStatus string) error {
	args := m.Called(ctx, dispute, jobStatus, escrowStatus)
	return args.Error(0)
}

func newDisputeService(disputes *mockDisputeRepo, jobs *mockJobRepo) *DisputeService {
	return NewDisputeService(disputes, jobs, nil, newTestLogger())
}

func TestDisputeService_OpenDispute_Success(t *testing.T) {
	disputeRepo := new(mockDisputeRepo)
	jobRepo := new(mockJobRepo)
	svc := newDisputeService(disputeRepo, jobRepo)
	ctx := context.Background()
	clientID := uuid.New()
	agentID := uuid.New()

	job := &models.Job{ID: 5, ClientID: clientID, AgentID: &agentID, Status: models.JobStatusInProgress}
	jobRepo.On("GetByID", ctx, int64(5)).Return(job, nil)
	disputeRepo.On("GetOpenByJobID", ctx, int64(5)).Return(nil, apperror.ErrDisputeNotFound)
	disputeRepo.On("Create", ctx, mock.AnythingOfType("*models.Dispute")).Return(nil)

	dispute, err := svc.OpenDispute(ctx, 5, agentID, "работа не оплачивается")
	assert.NoError(t, err)
	assert.Equal(t, models.DisputeStatusOpen, dispute.Status)
	assert.Equal(t, agentID, dispute.InitiatorID)
}

func TestDisputeService_OpenDispute_NotParticipant(t *testing.T) {
	disputeRepo := new(mockDisputeRepo)
	jobRepo := new(mockJobRepo)
	svc := newDisputeService(disputeRepo, jobRepo)
	ctx := context.Background()

	job := &models.Job{ID: 5, ClientID: uuid.New(), Status: models.JobStatusInProgress}
	jobRepo.On("GetByID", ctx, int64(5)).Return(job, nil)

	_, err := svc.OpenDispute(ctx, 5, uuid.New(), "причина")
	assert.ErrorIs(t, err, apperror.ErrNotAuthorized)
}

func TestDisputeService_OpenDispute_AlreadyOpen(t *testing.T) {
	disputeRepo := new(mockDisputeRepo)
	jobRepo := new(mockJobRepo)
	svc := newDisputeService(disputeRepo, jobRepo)
	ctx := context.Background()
	clientID := uuid.New()

	job := &models.Job{ID: 5, ClientID: clientID, Status: models.JobStatusInProgress}
	existing := &models.Dispute{ID: 1, JobID: 5, Status: models.DisputeStatusOpen}
	jobRepo.On("GetByID", ctx, int64(5)).Return(job, nil)
	disputeRepo.On("GetOpenByJobID", ctx, int64(5)).Return(existing, nil)

	_, err := svc.OpenDispute(ctx, 5, clientID, "причина")
	assert.ErrorIs(t, err, apperror.ErrDisputeAlreadyOpen)
}

func TestDisputeService_OpenDispute_TerminalJob(t *testing.T) {
	disputeRepo := new(mockDisputeRepo)
	jobRepo := new(mockJobRepo)
	svc := newDisputeService(disputeRepo, jobRepo)
	ctx := context.Background()
	clientID := uuid.New()

	job := &models.Job{ID: 5, ClientID: clientID, Status: models.JobStatusCompleted}
	jobRepo.On("GetByID", ctx, int64(5)).Return(job, nil)

	_, err := svc.OpenDispute(ctx, 5, clientID, "причина")
	assert.ErrorIs(t, err, apperror.ErrInvalidStatus)
}

func TestDisputeService_RespondToDispute_InitiatorCannotRespond(t *testing.T) {
	disputeRepo := new(mockDisputeRepo)
	jobRepo := new(mockJobRepo)
	svc := newDisputeService(disputeRepo, jobRepo)
	ctx := context.Background()
	clientID := uuid.New()
	agentID := uuid.New()

	dispute := &models.Dispute{ID: 1, JobID: 5, InitiatorID: clientID, Status: models.DisputeStatusOpen}
	job := &models.Job{ID: 5, ClientID: clientID, AgentID: &agentID, Status: models.JobStatusDisputed}
	disputeRepo.On("GetByID", ctx, int64(1)).Return(dispute, nil)
	jobRepo.On("GetByID", ctx, int64(5)).Return(job, nil)

	err := svc.RespondToDispute(ctx, 1, clientID)
	assert.ErrorIs(t, err, apperror.ErrNotAuthorized)
}

func TestDisputeService_RespondToDispute_Success(t *testing.T) {
	disputeRepo := new(mockDisputeRepo)
	jobRepo := new(mockJobRepo)
	svc := newDisputeService(disputeRepo, jobRepo)
	ctx := context.Background()
	clientID := uuid.New()
	agentID := uuid.New()

	dispute := &models.Dispute{ID: 1, JobID: 5, InitiatorID: clientID, Status: models.DisputeStatusOpen}
	job := &models.Job{ID: 5, ClientID: clientID, AgentID: &agentID, Status: models.JobStatusDisputed}
	disputeRepo.On("GetByID", ctx, int64(1)).Return(dispute, nil)
	jobRepo.On("GetByID", ctx, int64(5)).Return(job, nil)
	disputeRepo.On("MarkUnderReview", ctx, int64(1)).Return(nil)

	err := svc.RespondToDispute(ctx, 1, agentID)
	assert.NoError(t, err)
	disputeRepo.AssertExpectations(t)
}

func TestDisputeService_ResolveDispute_RequiresArbitrator(t *testing.T) {
	svc := newDisputeService(new(mockDisputeRepo), new(mockJobRepo))

	_, err := svc.ResolveDispute(context.Background(), 1, uuid.New(), models.RoleClient,
		ResolveDisputeInput{Outcome: "client"})
	assert.ErrorIs(t, err, apperror.ErrNotAuthorized)
}

func TestDisputeService_ResolveDispute_ClientOutcome(t *testing.T) {
	disputeRepo := new(mockDisputeRepo)
	jobRepo := new(mockJobRepo)
	svc := newDisputeService(disputeRepo, jobRepo)
	ctx := context.Background()
	arbitratorID := uuid.New()

	dispute := &models.Dispute{ID: 1, JobID: 5, InitiatorID: uuid.New(), Status: models.DisputeStatusUnderReview}
	disputeRepo.On("GetByID", ctx, int64(1)).Return(dispute, nil)
	disputeRepo.On("Resolve", ctx, dispute, models.JobStatusCancelled, models.EscrowStatusRefunded).Return(nil)

	resolved, err := svc.ResolveDispute(ctx, 1, arbitratorID, models.RoleArbitrator,
		ResolveDisputeInput{Outcome: "client", Notes: "исполнитель не выходил на связь"})
	assert.NoError(t, err)
	assert.Equal(t, models.DisputeStatusResolvedClient, resolved.Status)
	assert.Equal(t, arbitratorID, *resolved.ResolvedBy)
	disputeRepo.AssertExpectations(t)
}

func TestDisputeService_ResolveDispute_AgentOutcome(t *testing.T) {
	disputeRepo := new(mockDisputeRepo)
	jobRepo := new(mockJobRepo)
	svc := newDisputeService(disputeRepo, jobRepo)
	ctx := context.Background()

	dispute := &models.Dispute{ID: 1, JobID: 5, InitiatorID: uuid.New(), Status: models.DisputeStatusOpen}
	disputeRepo.On("GetByID", ctx, int64(1)).Return(dispute, nil)
	disputeRepo.On("Resolve", ctx, dispute, models.JobStatusCompleted, models.EscrowStatusReleased).Return(nil)

	resolved, err := svc.ResolveDispute(ctx, 1, uuid.New(), models.RoleArbitrator,
		ResolveDisputeInput{Outcome: "agent"})
	assert.NoError(t, err)
	assert.Equal(t, models.DisputeStatusResolvedAgent, resolved.Status)
}

func TestDisputeService_ResolveDispute_SplitOutcome(t *testing.T) {
	disputeRepo := new(mockDisputeRepo)
	jobRepo := new(mockJobRepo)
	svc := newDisputeService(disputeRepo, jobRepo)
	ctx := context.Background()

	dispute := &models.Dispute{ID: 1, JobID: 5, InitiatorID: uuid.New(), Status: models.DisputeStatusUnderReview}
	disputeRepo.On("GetByID", ctx, int64(1)).Return(dispute, nil)
	disputeRepo.On("Resolve", ctx, dispute, models.JobStatusCompleted, models.EscrowStatusPartiallyRefunded).Return(nil)

	resolved, err := svc.ResolveDispute(ctx, 1, uuid.New(), models.RoleArbitrator,
		ResolveDisputeInput{Outcome: "split", RefundPercentage: 40})
	assert.NoError(t, err)
	assert.Equal(t, models.DisputeStatusResolvedSplit, resolved.Status)
	assert.Equal(t, 40, *resolved.RefundPercentage)
}

func TestDisputeService_ResolveDispute_SplitRequiresValidPercentage(t *testing.T) {
	disputeRepo := new(mockDisputeRepo)
	svc := newDisputeService(disputeRepo, new(mockJobRepo))
	ctx := context.Background()

	dispute := &models.Dispute{ID: 1, JobID: 5, Status: models.DisputeStatusOpen}
	disputeRepo.On("GetByID", ctx, int64(1)).Return(dispute, nil)

	_, err := svc.ResolveDispute(ctx, 1, uuid.New(), models.RoleArbitrator,
		ResolveDisputeInput{Outcome: "split", RefundPercentage: 100})
	assert.ErrorIs(t, err, apperror.ErrInvalidAmount)

	_, err = svc.ResolveDispute(ctx, 1, uuid.New(), models.RoleArbitrator,
		ResolveDisputeInput{Outcome: "split", RefundPercentage: 0})
	assert.ErrorIs(t, err, apperror.ErrInvalidAmount)
}

func TestDisputeService_ResolveDispute_AlreadyResolved(t *testing.T) {
	disputeRepo := new(mockDisputeRepo)
	svc := newDisputeService(disputeRepo, new(mockJobRepo))
	ctx := context.Background()

	dispute := &models.Dispute{ID: 1, JobID: 5, Status: models.DisputeStatusResolvedAgent}
	disputeRepo.On("GetByID", ctx, int64(1)).Return(dispute, nil)

	_, err := svc.ResolveDispute(ctx, 1, uuid.New(), models.RoleArbitrator,
		ResolveDisputeInput{Outcome: "client"})
	assert.ErrorIs(t, err, apperror.ErrInvalidStatus)
}

func TestDisputeService_GetDispute_ArbitratorSeesAll(t *testing.T) {
	disputeRepo := new(mockDisputeRepo)
	jobRepo := new(mockJobRepo)
	svc := newDisputeService(disputeRepo, jobRepo)
	ctx := context.Background()

	dispute := &models.Dispute{ID: 1, JobID: 5, Status: models.DisputeStatusOpen}
	disputeRepo.On("GetByID", ctx, int64(1)).Return(dispute, nil)

	got, err := svc.GetDispute(ctx, 1, uuid.New(), models.RoleArbitrator)
	assert.NoError(t, err)
	assert.Equal(t, dispute, got)
	jobRepo.AssertNotCalled(t, "GetByID")
}

func TestDisputeService_GetDispute_StrangerForbidden(t *testing.T) {
	disputeRepo := new(mockDisputeRepo)
	jobRepo := new(mockJobRepo)
	svc := newDisputeService(disputeRepo, jobRepo)
	ctx := context.Background()

	dispute := &models.Dispute{ID: 1, JobID: 5, Status: models.DisputeStatusOpen}
	job := &models.Job{ID: 5, ClientID: uuid.New(), Status: models.JobStatusDisputed}
	disputeRepo.On("GetByID", ctx, int64(1)).Return(dispute, nil)
	jobRepo.On("GetByID", ctx, int64(5)).Return(job, nil)

	_, err := svc.GetDispute(ctx, 1, uuid.New(), models.RoleClient)
	assert.ErrorIs(t, err, apperror.ErrNotAuthorized)
}

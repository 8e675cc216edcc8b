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

type mockChatRepo struct {
	mock.Mock
}

func (m *mockChatRepo) CreateMessage(ctx context.Context, msg *models.JobMessage) error {
	args := m.Called(ctx, msg)
	if args.Error(0) == nil {
		msg.ID = 1
	}
	return args.Error(0)
}

func (m *mockChatRepo) ListByJob(ctx context.Context, jobID int64, limit, offset int) ([]models.JobMessage, error) {
	args := m.Called(ctx, jobID, limit, offset)
	return args.Get(0).([]models.JobMessage), args.Error(1)
}

func (m *mockChatRepo) MarkRead(ctx context.Context, jobID int64, readerID uuid.UUID, messageIDs []int64) error {
	args := m.Called(ctx, jobID, readerID, messageIDs)
	return args.Error(0)
}

func (m *mockChatRepo) CountUnread(ctx context.Context, jobID int64, readerID uuid.UUID) (int, error) {
	args := m.Called(ctx, jobID, readerID)
	return args.Int(0), args.Error(1)
}

func TestChatService_SendMessage_Success(t *testing.T) {
	chatRepo := new(mockChatRepo)
	jobRepo := new(mockJobRepo)
	notifier := new(mockNotifier)
	svc := NewChatService(chatRepo, jobRepo, notifier)
	ctx := context.Background()
	clientID := uuid.New()
	agentID := uuid.New()

	job := &models.Job{ID: 5, ClientID: clientID, AgentID: &agentID, Status: models.JobStatusInProgress}
	jobRepo.On("GetByID", ctx, int64(5)).Return(job, nil)
	chatRepo.On("CreateMessage", ctx, mock.AnythingOfType("*models.JobMessage")).Return(nil)
	notifier.On("NotifyJobEvent", int64(5), "new_message", []uuid.UUID{agentID}).Return()

	msg, err := svc.SendMessage(ctx, 5, clientID, "  как продвигается работа?  ")
	assert.NoError(t, err)
	assert.Equal(t, "как продвигается работа?", msg.Content)
	notifier.AssertExpectations(t)
}

func TestChatService_SendMessage_EmptyContent(t *testing.T) {
	svc := NewChatService(new(mockChatRepo), new(mockJobRepo), nil)

	_, err := svc.SendMessage(context.Background(), 5, uuid.New(), "   ")
	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestChatService_SendMessage_NoAgentYet(t *testing.T) {
	chatRepo := new(mockChatRepo)
	jobRepo := new(mockJobRepo)
	svc := NewChatService(chatRepo, jobRepo, nil)
	ctx := context.Background()
	clientID := uuid.New()

	job := &models.Job{ID: 5, ClientID: clientID, Status: models.JobStatusPosted}
	jobRepo.On("GetByID", ctx, int64(5)).Return(job, nil)

	_, err := svc.SendMessage(ctx, 5, clientID, "привет")
	assert.ErrorIs(t, err, apperror.ErrInvalidStatus)
}

func TestChatService_SendMessage_StrangerForbidden(t *testing.T) {
	chatRepo := new(mockChatRepo)
	jobRepo := new(mockJobRepo)
	svc := NewChatService(chatRepo, jobRepo, nil)
	ctx := context.Background()
	agentID := uuid.New()

	job := &models.Job{ID: 5, ClientID: uuid.New(), AgentID: &agentID, Status: models.JobStatusInProgress}
	jobRepo.On("GetByID", ctx, int64(5)).Return(job, nil)

	_, err := svc.SendMessage(ctx, 5, uuid.New(), "привет")
	assert.ErrorIs(t, err, apperror.ErrNotAuthorized)
}

func TestChatService_MarkMessagesRead_EmptyListIsNoop(t *testing.T) {
	chatRepo := new(mockChatRepo)
	jobRepo := new(mockJobRepo)
	svc := NewChatService(chatRepo, jobRepo, nil)
	ctx := context.Background()
	clientID := uuid.New()

	job := &models.Job{ID: 5, ClientID: clientID, Status: models.JobStatusInProgress}
	jobRepo.On("GetByID", ctx, int64(5)).Return(job, nil)

	err := svc.MarkMessagesRead(ctx, 5, clientID, nil)
	assert.NoError(t, err)
	chatRepo.AssertNotCalled(t, "MarkRead")
}

func TestChatService_MarkMessagesRead_Success(t *testing.T) {
	chatRepo := new(mockChatRepo)
	jobRepo := new(mockJobRepo)
	svc := NewChatService(chatRepo, jobRepo, nil)
	ctx := context.Background()
	clientID := uuid.New()

	job := &models.Job{ID: 5, ClientID: clientID, Status: models.JobStatusInProgress}
	jobRepo.On("GetByID", ctx, int64(5)).Return(job, nil)
	chatRepo.On("MarkRead", ctx, int64(5), clientID, []int64{1, 2, 3}).Return(nil)

	err := svc.MarkMessagesRead(ctx, 5, clientID, []int64{1, 2, 3})
	assert.NoError(t, err)
	chatRepo.AssertExpectations(t)
}

func TestChatService_ListMessages_LimitClamped(t *testing.T) {
	chatRepo := new(mockChatRepo)
	jobRepo := new(mockJobRepo)
	svc := NewChatService(chatRepo, jobRepo, nil)
	ctx := context.Background()
	clientID := uuid.New()

	job := &models.Job{ID: 5, ClientID: clientID, Status: models.JobStatusInProgress}
	jobRepo.On("GetByID", ctx, int64(5)).Return(job, nil)
	chatRepo.On("ListByJob", ctx, int64(5), 50, 0).Return([]models.JobMessage{}, nil)

	_, err := svc.ListMessages(ctx, 5, clientID, 10000, -1)
	assert.NoError(t, err)
	chatRepo.AssertExpectations(t)
}

func TestChatService_CountUnread(t *testing.T) {
	chatRepo := new(mockChatRepo)
	jobRepo := new(mockJobRepo)
	svc := NewChatService(chatRepo, jobRepo, nil)
	ctx := context.Background()
	clientID := uuid.New()

	job := &models.Job{ID: 5, ClientID: clientID, Status: models.JobStatusInProgress}
	jobRepo.On("GetByID", ctx, int64(5)).Return(job, nil)
	chatRepo.On("CountUnread", ctx, int64(5), clientID).Return(2, nil)

	count, err := svc.CountUnread(ctx, 5, clientID)
	assert.NoError(t, err)
	assert.Equal(t, 2, count)
}

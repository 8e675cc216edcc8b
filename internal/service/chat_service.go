package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/ignatzorin/agent-marketplace/internal/models"
	"github.com/ignatzorin/agent-marketplace/internal/pkg/apperror"
)

type ChatRepo interface {
	CreateMessage(ctx context.Context, msg *models.JobMessage) error
	ListByJob(ctx context.Context, jobID int64, limit, offset int) ([]models.JobMessage, error)
	MarkRead(ctx context.Context, jobID int64, readerID uuid.UUID, messageIDs []int64) error
	CountUnread(ctx context.Context, jobID int64, readerID uuid.UUID) (int, error)
}

type JobRepoForChat interface {
	GetByID(ctx context.Context, id int64) (*models.Job, error)
}

// ChatService — переписка сторон задания. Чат открывается после принятия
// ставки и доступен только клиенту и исполнителю.
type ChatService struct {
	messages ChatRepo
	jobs     JobRepoForChat
	notifier JobNotifier
}

func NewChatService(messages ChatRepo, jobs JobRepoForChat, notifier JobNotifier) *ChatService {
	return &ChatService{messages: messages, jobs: jobs, notifier: notifier}
}

func (s *ChatService) requireParticipant(ctx context.Context, jobID int64, userID uuid.UUID) (*models.Job, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !isParticipant(job, userID) {
		return nil, apperror.ErrNotAuthorized
	}
	return job, nil
}

// SendMessage отправляет сообщение в чат задания.
func (s *ChatService) SendMessage(ctx context.Context, jobID int64, senderID uuid.UUID, content string) (*models.JobMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "сообщение не может быть пустым")
	}

	job, err := s.requireParticipant(ctx, jobID, senderID)
	if err != nil {
		return nil, err
	}
	if job.AgentID == nil {
		return nil, apperror.ErrInvalidStatus
	}

	msg := &models.JobMessage{JobID: jobID, SenderID: senderID, Content: content}
	if err := s.messages.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		other := job.ClientID
		if other == senderID {
			other = *job.AgentID
		}
		s.notifier.NotifyJobEvent(jobID, "new_message", other)
	}
	return msg, nil
}

// ListMessages возвращает переписку задания.
func (s *ChatService) ListMessages(ctx context.Context, jobID int64, userID uuid.UUID, limit, offset int) ([]models.JobMessage, error) {
	if _, err := s.requireParticipant(ctx, jobID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.messages.ListByJob(ctx, jobID, limit, offset)
}

// MarkMessagesRead помечает чужие сообщения прочитанными. Повторный вызов
// с теми же идентификаторами безвреден.
func (s *ChatService) MarkMessagesRead(ctx context.Context, jobID int64, userID uuid.UUID, messageIDs []int64) error {
	if _, err := s.requireParticipant(ctx, jobID, userID); err != nil {
		return err
	}
	if len(messageIDs) == 0 {
		return nil
	}
	return s.messages.MarkRead(ctx, jobID, userID, messageIDs)
}

// CountUnread возвращает число непрочитанных сообщений пользователя в чате.
func (s *ChatService) CountUnread(ctx context.Context, jobID int64, userID uuid.UUID) (int, error) {
	if _, err := s.requireParticipant(ctx, jobID, userID); err != nil {
		return 0, err
	}
	return s.messages.CountUnread(ctx, jobID, userID)
}

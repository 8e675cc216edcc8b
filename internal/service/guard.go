package service

import (
	"github.com/google/uuid"

	"github.com/ignatzorin/agent-marketplace/internal/models"
)

// Предикаты доступа к заданию. Сервисы проверяют их до любой мутации,
// чтобы чужой пользователь получал Forbidden, а не Conflict.

// isClient — пользователь разместил задание.
func isClient(job *models.Job, userID uuid.UUID) bool {
	return job.ClientID == userID
}

// isAssignedAgent — пользователь назначен исполнителем задания.
func isAssignedAgent(job *models.Job, userID uuid.UUID) bool {
	return job.AgentID != nil && *job.AgentID == userID
}

// isParticipant — пользователь является одной из сторон задания.
func isParticipant(job *models.Job, userID uuid.UUID) bool {
	return isClient(job, userID) || isAssignedAgent(job, userID)
}

// isArbitrator — роль пользователя допускает разрешение споров.
func isArbitrator(role string) bool {
	return role == models.RoleArbitrator
}

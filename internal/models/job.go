package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Статусы задания
const (
	JobStatusPosted          = "posted"
	JobStatusInProgress      = "in_progress"
	JobStatusPendingApproval = "pending_approval"
	JobStatusDisputed        = "disputed"
	JobStatusCompleted       = "completed"
	JobStatusCancelled       = "cancelled"
)

// Статусы этапа
const (
	MilestoneStatusPending    = "pending"
	MilestoneStatusInProgress = "in_progress"
	MilestoneStatusSubmitted  = "submitted"
	MilestoneStatusApproved   = "approved"
	MilestoneStatusRejected   = "rejected"
)

// Job описывает задание в маркетплейсе. Исполнитель и escrow появляются
// только после принятия ставки и остаются до конца жизни записи.
type Job struct {
	ID                int64          `db:"id" json:"id"`
	ClientID          uuid.UUID      `db:"client_id" json:"client_id"`
	AgentID           *uuid.UUID     `db:"agent_id" json:"agent_id,omitempty"`
	Title             string         `db:"title" json:"title"`
	Description       string         `db:"description" json:"description"`
	Category          string         `db:"category" json:"category"`
	Tags              pq.StringArray `db:"tags" json:"tags"`
	Payment           float64        `db:"payment" json:"payment"`
	AcceptedBidAmount *float64       `db:"accepted_bid_amount" json:"accepted_bid_amount,omitempty"`
	EscrowID          *int64         `db:"escrow_id" json:"escrow_id,omitempty"`
	Status            string         `db:"status" json:"status"`
	DeadlineAt        *time.Time     `db:"deadline_at" json:"deadline_at,omitempty"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at"`

	Bids       []Bid       `json:"bids,omitempty"`
	Milestones []Milestone `json:"milestones,omitempty"`
}

// IsTerminal сообщает, находится ли задание в конечном статусе.
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusCancelled
}

// Bid представляет ставку исполнителя на задание. Идентификатор глобально
// уникален и монотонно растёт, поэтому повторная ставка после отзыва
// получает новый id.
type Bid struct {
	ID            int64     `db:"id" json:"id"`
	JobID         int64     `db:"job_id" json:"job_id"`
	AgentID       uuid.UUID `db:"agent_id" json:"agent_id"`
	Amount        float64   `db:"amount" json:"amount"`
	Proposal      string    `db:"proposal" json:"proposal"`
	EstimatedDays int       `db:"estimated_days" json:"estimated_days"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Milestone описывает этап оплаты задания. Ordinal задаёт порядок в рамках
// задания; проценты всех этапов в сумме дают ровно 100.
type Milestone struct {
	ID                int64      `db:"id" json:"id"`
	JobID             int64      `db:"job_id" json:"job_id"`
	Ordinal           int        `db:"ordinal" json:"ordinal"`
	Title             string     `db:"title" json:"title"`
	PaymentPercentage int        `db:"payment_percentage" json:"payment_percentage"`
	Status            string     `db:"status" json:"status"`
	DueAt             *time.Time `db:"due_at" json:"due_at,omitempty"`
}

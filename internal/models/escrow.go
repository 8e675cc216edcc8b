package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы escrow. Переходы односторонние: запись создаётся в locked и ровно
// один раз переходит в released, refunded или partially_refunded.
const (
	EscrowStatusLocked            = "locked"
	EscrowStatusReleased          = "released"
	EscrowStatusRefunded          = "refunded"
	EscrowStatusPartiallyRefunded = "partially_refunded"
)

// Escrow представляет средства, заблокированные под конкретное задание.
// Сумма всегда равна сумме принятой ставки. Для частичного возврата запись
// хранит только намеченный процент: фактическое перемещение средств делает
// внешний слой расчётов.
type Escrow struct {
	ID               int64      `db:"id" json:"id"`
	JobID            int64      `db:"job_id" json:"job_id"`
	ClientID         uuid.UUID  `db:"client_id" json:"client_id"`
	AgentID          uuid.UUID  `db:"agent_id" json:"agent_id"`
	Amount           float64    `db:"amount" json:"amount"`
	Status           string     `db:"status" json:"status"`
	RefundPercentage *int       `db:"refund_percentage" json:"refund_percentage,omitempty"`
	LockedAt         time.Time  `db:"locked_at" json:"locked_at"`
	ReleasedAt       *time.Time `db:"released_at" json:"released_at,omitempty"`
}

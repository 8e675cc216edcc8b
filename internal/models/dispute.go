package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы спора
const (
	DisputeStatusOpen           = "open"
	DisputeStatusUnderReview    = "under_review"
	DisputeStatusResolvedClient = "resolved_client"
	DisputeStatusResolvedAgent  = "resolved_agent"
	DisputeStatusResolvedSplit  = "resolved_split"
)

// Dispute описывает спор по заданию. Одновременно открыт может быть только
// один спор на задание.
type Dispute struct {
	ID               int64      `db:"id" json:"id"`
	JobID            int64      `db:"job_id" json:"job_id"`
	InitiatorID      uuid.UUID  `db:"initiator_id" json:"initiator_id"`
	Reason           string     `db:"reason" json:"reason"`
	Status           string     `db:"status" json:"status"`
	RefundPercentage *int       `db:"refund_percentage" json:"refund_percentage,omitempty"`
	ResolutionNotes  *string    `db:"resolution_notes" json:"resolution_notes,omitempty"`
	ResolvedBy       *uuid.UUID `db:"resolved_by" json:"resolved_by,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	ResolvedAt       *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
}

// IsResolved сообщает, завершён ли спор.
func (d *Dispute) IsResolved() bool {
	switch d.Status {
	case DisputeStatusResolvedClient, DisputeStatusResolvedAgent, DisputeStatusResolvedSplit:
		return true
	}
	return false
}

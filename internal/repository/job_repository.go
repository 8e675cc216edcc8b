package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/agent-marketplace/internal/models"
	"github.com/ignatzorin/agent-marketplace/internal/pkg/apperror"
)

// JobRepository отвечает за задания, ставки и этапы. Все составные мутации
// выполняются в одной транзакции с блокировкой строки задания, поэтому два
// конкурирующих вызова по одному заданию сериализуются на уровне БД, а
// проигравший видит несовпадение статуса и получает InvalidStatus.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository создаёт новый экземпляр.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = `id, client_id, agent_id, title, description, category, tags, payment,
	accepted_bid_amount, escrow_id, status, deadline_at, created_at, updated_at`

// GetByID возвращает задание вместе со ставками и этапами.
func (r *JobRepository) GetByID(ctx context.Context, id int64) (*models.Job, error) {
	var job models.Job
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrJobNotFound
		}
		return nil, fmt.Errorf("job repository: get by id %w", err)
	}

	if err := r.db.SelectContext(ctx, &job.Bids, `
		SELECT id, job_id, agent_id, amount, proposal, estimated_days, created_at
		FROM bids WHERE job_id = $1 ORDER BY id
	`, id); err != nil {
		return nil, fmt.Errorf("job repository: load bids %w", err)
	}

	if err := r.db.SelectContext(ctx, &job.Milestones, `
		SELECT id, job_id, ordinal, title, payment_percentage, status, due_at
		FROM milestones WHERE job_id = $1 ORDER BY ordinal
	`, id); err != nil {
		return nil, fmt.Errorf("job repository: load milestones %w", err)
	}

	return &job, nil
}

// Create сохраняет задание и его этапы в одной транзакции.
func (r *JobRepository) Create(ctx context.Context, job *models.Job, milestones []models.Milestone) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("job repository: begin tx %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO jobs (client_id, title, description, category, tags, payment, status, deadline_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`
	if err := tx.QueryRowxContext(
		ctx, query,
		job.ClientID, job.Title, job.Description, job.Category, job.Tags,
		job.Payment, job.Status, job.DeadlineAt,
	).Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt); err != nil {
		return fmt.Errorf("job repository: insert job %w", err)
	}

	if len(milestones) > 0 {
		msQuery := `INSERT INTO milestones (job_id, ordinal, title, payment_percentage, status, due_at) VALUES `
		msValues := make([]interface{}, 0, len(milestones)*6)
		for i := range milestones {
			if i > 0 {
				msQuery += ", "
			}
			msQuery += fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d)", i*6+1, i*6+2, i*6+3, i*6+4, i*6+5, i*6+6)
			msValues = append(msValues, job.ID, milestones[i].Ordinal, milestones[i].Title,
				milestones[i].PaymentPercentage, milestones[i].Status, milestones[i].DueAt)
		}
		if _, err := tx.ExecContext(ctx, msQuery, msValues...); err != nil {
			return fmt.Errorf("job repository: batch insert milestones %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("job repository: commit %w", err)
	}
	job.Milestones = milestones
	return nil
}

// Cancel переводит задание из posted в cancelled.
func (r *JobRepository) Cancel(ctx context.Context, jobID int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
	`, jobID, models.JobStatusCancelled, models.JobStatusPosted)
	if err != nil {
		return fmt.Errorf("job repository: cancel %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return apperror.ErrInvalidStatus
	}
	return nil
}

// CreateBid добавляет ставку. Уникальность живой ставки на пару
// (задание, исполнитель) подкреплена уникальным индексом.
func (r *JobRepository) CreateBid(ctx context.Context, bid *models.Bid) error {
	query := `
		INSERT INTO bids (job_id, agent_id, amount, proposal, estimated_days)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (job_id, agent_id) DO NOTHING
		RETURNING id, created_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		bid.JobID, bid.AgentID, bid.Amount, bid.Proposal, bid.EstimatedDays,
	).Scan(&bid.ID, &bid.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.ErrAlreadyBid
	}
	if err != nil {
		return fmt.Errorf("job repository: insert bid %w", err)
	}
	return nil
}

// DeleteBid удаляет живую ставку исполнителя.
func (r *JobRepository) DeleteBid(ctx context.Context, jobID int64, agentID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM bids WHERE job_id = $1 AND agent_id = $2`, jobID, agentID)
	if err != nil {
		return fmt.Errorf("job repository: delete bid %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return apperror.ErrBidNotFound
	}
	return nil
}

// AcceptBid атомарно принимает ставку: блокирует средства в escrow, назначает
// исполнителя, переводит задание в in_progress и запускает первый этап.
func (r *JobRepository) AcceptBid(ctx context.Context, jobID int64, agentID uuid.UUID, clientID uuid.UUID, amount float64) (*models.Escrow, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("job repository: begin tx %w", err)
	}
	defer tx.Rollback()

	// Блокируем строку задания и перепроверяем статус: проигравшая гонку
	// операция не должна трогать уже принятое задание.
	var status string
	err = tx.GetContext(ctx, &status, `SELECT status FROM jobs WHERE id = $1 FOR UPDATE`, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrJobNotFound
		}
		return nil, fmt.Errorf("job repository: lock job %w", err)
	}
	if status != models.JobStatusPosted {
		return nil, apperror.ErrInvalidStatus
	}

	escrow, err := lockEscrowTx(ctx, tx, jobID, clientID, agentID, amount)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE jobs
		SET status = $2, agent_id = $3, accepted_bid_amount = $4, escrow_id = $5, updated_at = NOW()
		WHERE id = $1
	`, jobID, models.JobStatusInProgress, agentID, amount, escrow.ID); err != nil {
		return nil, fmt.Errorf("job repository: bind agent %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE milestones SET status = $2
		WHERE id = (
			SELECT id FROM milestones
			WHERE job_id = $1 AND status = $3
			ORDER BY ordinal LIMIT 1
		)
	`, jobID, models.MilestoneStatusInProgress, models.MilestoneStatusPending); err != nil {
		return nil, fmt.Errorf("job repository: start first milestone %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("job repository: commit %w", err)
	}
	return escrow, nil
}

// MilestoneTransition описывает атомарный перевод этапа и задания между
// статусами. From-статусы задают ожидаемое текущее состояние: оно
// перепроверяется под блокировкой строки задания, так что проигравший
// гонку вызов получает InvalidStatus, а не затирает чужой переход.
type MilestoneTransition struct {
	MilestoneID     int64
	MilestoneFrom   string
	MilestoneTo     string
	JobFrom         string
	JobTo           string
	NextMilestoneID *int64
}

// TransitionMilestone атомарно меняет статус этапа и задания; при approve
// промежуточного этапа заодно запускает следующий.
func (r *JobRepository) TransitionMilestone(ctx context.Context, jobID int64, t MilestoneTransition) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("job repository: begin tx %w", err)
	}
	defer tx.Rollback()

	var status string
	err = tx.GetContext(ctx, &status, `SELECT status FROM jobs WHERE id = $1 FOR UPDATE`, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.ErrJobNotFound
		}
		return fmt.Errorf("job repository: lock job %w", err)
	}
	if status != t.JobFrom {
		return apperror.ErrInvalidStatus
	}

	res, err := tx.ExecContext(ctx, `UPDATE milestones SET status = $2 WHERE id = $1 AND job_id = $3 AND status = $4`,
		t.MilestoneID, t.MilestoneTo, jobID, t.MilestoneFrom)
	if err != nil {
		return fmt.Errorf("job repository: update milestone %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return apperror.ErrInvalidStatus
	}

	if t.NextMilestoneID != nil {
		if _, err := tx.ExecContext(ctx, `UPDATE milestones SET status = $2 WHERE id = $1 AND job_id = $3 AND status = $4`,
			*t.NextMilestoneID, models.MilestoneStatusInProgress, jobID, models.MilestoneStatusPending); err != nil {
			return fmt.Errorf("job repository: start next milestone %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE jobs SET status = $2, updated_at = NOW() WHERE id = $1`,
		jobID, t.JobTo); err != nil {
		return fmt.Errorf("job repository: update job status %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("job repository: commit %w", err)
	}
	return nil
}

// Complete завершает задание: все этапы становятся approved, escrow
// освобождается в пользу исполнителя, счётчики профиля пересчитываются.
// Бегущее среднее репутации считается прямо в UPDATE от текущих значений
// строки профиля, поэтому параллельные завершения заданий одного
// исполнителя не теряют инкременты. Возвращает новые значения счётчиков.
func (r *JobRepository) Complete(ctx context.Context, jobID int64, agentID uuid.UUID) (jobsCompleted, successRate int, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("job repository: begin tx %w", err)
	}
	defer tx.Rollback()

	var status string
	err = tx.GetContext(ctx, &status, `SELECT status FROM jobs WHERE id = $1 FOR UPDATE`, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, apperror.ErrJobNotFound
		}
		return 0, 0, fmt.Errorf("job repository: lock job %w", err)
	}
	if status != models.JobStatusInProgress && status != models.JobStatusPendingApproval {
		return 0, 0, apperror.ErrInvalidStatus
	}

	if _, err := tx.ExecContext(ctx, `UPDATE jobs SET status = $2, updated_at = NOW() WHERE id = $1`,
		jobID, models.JobStatusCompleted); err != nil {
		return 0, 0, fmt.Errorf("job repository: complete job %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE milestones SET status = $2 WHERE job_id = $1 AND status <> $2`,
		jobID, models.MilestoneStatusApproved); err != nil {
		return 0, 0, fmt.Errorf("job repository: approve milestones %w", err)
	}

	if err := releaseEscrowTx(ctx, tx, jobID); err != nil {
		return 0, 0, err
	}

	if err := tx.QueryRowxContext(ctx, `
		UPDATE agent_profiles
		SET jobs_completed = jobs_completed + 1,
		    success_rate = (success_rate * jobs_completed + 100) / (jobs_completed + 1)
		WHERE user_id = $1
		RETURNING jobs_completed, success_rate
	`, agentID).Scan(&jobsCompleted, &successRate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, apperror.ErrAgentNotRegistered
		}
		return 0, 0, fmt.Errorf("job repository: update agent stats %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("job repository: commit %w", err)
	}
	return jobsCompleted, successRate, nil
}

// JobListParams описывает фильтры публичной витрины заданий.
type JobListParams struct {
	Status     string
	Category   string
	Tag        string
	MinPayment *float64
	MaxPayment *float64
	Search     string
	SortBy     string
	SortDesc   bool
	Limit      int
	Offset     int
}

// List возвращает страницу заданий и общее число подходящих записей.
func (r *JobRepository) List(ctx context.Context, params JobListParams) ([]models.Job, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if params.Status != "" {
		where = append(where, "status = "+arg(params.Status))
	}
	if params.Category != "" {
		where = append(where, "category = "+arg(params.Category))
	}
	if params.Tag != "" {
		where = append(where, arg(params.Tag)+" = ANY(tags)")
	}
	if params.MinPayment != nil {
		where = append(where, "payment >= "+arg(*params.MinPayment))
	}
	if params.MaxPayment != nil {
		where = append(where, "payment <= "+arg(*params.MaxPayment))
	}
	if params.Search != "" {
		p := arg("%" + params.Search + "%")
		where = append(where, "(title ILIKE "+p+" OR description ILIKE "+p+")")
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM jobs WHERE `+whereClause, args...); err != nil {
		return nil, 0, fmt.Errorf("job repository: count %w", err)
	}

	sortColumn := "created_at"
	switch params.SortBy {
	case "payment":
		sortColumn = "payment"
	case "deadline":
		sortColumn = "deadline_at"
	case "id":
		sortColumn = "id"
	}
	direction := "ASC"
	if params.SortDesc {
		direction = "DESC"
	}

	limit := params.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM jobs WHERE %s ORDER BY %s %s LIMIT %s OFFSET %s`,
		jobColumns, whereClause, sortColumn, direction, arg(limit), arg(offset))

	var jobs []models.Job
	if err := r.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("job repository: list %w", err)
	}
	return jobs, total, nil
}

// ListByParticipant возвращает задания, где пользователь — клиент или исполнитель.
func (r *JobRepository) ListByParticipant(ctx context.Context, userID uuid.UUID) ([]models.Job, error) {
	var jobs []models.Job
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE client_id = $1 OR agent_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &jobs, query, userID); err != nil {
		return nil, fmt.Errorf("job repository: list by participant %w", err)
	}
	return jobs, nil
}

// GetStats собирает агрегированную статистику маркетплейса.
func (r *JobRepository) GetStats(ctx context.Context) (*models.MarketplaceStats, error) {
	var stats models.MarketplaceStats
	query := `
		SELECT
			COUNT(*) AS total_jobs,
			COUNT(*) FILTER (WHERE status = 'posted') AS posted_jobs,
			COUNT(*) FILTER (WHERE status IN ('in_progress', 'pending_approval')) AS in_progress_jobs,
			COUNT(*) FILTER (WHERE status = 'completed') AS completed_jobs,
			COUNT(*) FILTER (WHERE status = 'disputed') AS disputed_jobs,
			(SELECT COUNT(*) FROM agent_profiles) AS total_agents,
			COALESCE(SUM(payment), 0) AS total_payment_volume
		FROM jobs
	`
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("job repository: stats %w", err)
	}
	return &stats, nil
}

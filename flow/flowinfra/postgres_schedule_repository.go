package flowinfra

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/converzap/converzap/flow"
	"github.com/converzap/converzap/pkg/kernel"
	"github.com/jmoiron/sqlx"
)

type PostgresScheduleRepository struct {
	db *sqlx.DB
}

var _ flow.ScheduleRepository = (*PostgresScheduleRepository)(nil)

func NewPostgresScheduleRepository(db *sqlx.DB) *PostgresScheduleRepository {
	return &PostgresScheduleRepository{db: db}
}

type dbSchedule struct {
	ID             string          `db:"id"`
	FlowID         string          `db:"flow_id"`
	CronExpression string          `db:"cron_expression"`
	ContactIDs     json.RawMessage `db:"contact_ids"`
	IsActive       bool            `db:"is_active"`
	LastRunAt      *time.Time      `db:"last_run_at"`
	NextRunAt      *time.Time      `db:"next_run_at"`
	RunCount       int             `db:"run_count"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

func toDBSchedule(s flow.Schedule) (*dbSchedule, error) {
	contactsJSON, err := json.Marshal(s.ContactIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal contact ids: %w", err)
	}

	return &dbSchedule{
		ID:             s.ID.String(),
		FlowID:         s.FlowID.String(),
		CronExpression: s.CronExpression,
		ContactIDs:     contactsJSON,
		IsActive:       s.IsActive,
		LastRunAt:      s.LastRunAt,
		NextRunAt:      s.NextRunAt,
		RunCount:       s.RunCount,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}, nil
}

func toDomainSchedule(dbS *dbSchedule) (*flow.Schedule, error) {
	var contactIDs []kernel.ContactID
	if len(dbS.ContactIDs) > 0 && string(dbS.ContactIDs) != "null" {
		if err := json.Unmarshal(dbS.ContactIDs, &contactIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal contact ids: %w", err)
		}
	}

	return &flow.Schedule{
		ID:             kernel.ScheduleID(dbS.ID),
		FlowID:         kernel.FlowID(dbS.FlowID),
		CronExpression: dbS.CronExpression,
		ContactIDs:     contactIDs,
		IsActive:       dbS.IsActive,
		LastRunAt:      dbS.LastRunAt,
		NextRunAt:      dbS.NextRunAt,
		RunCount:       dbS.RunCount,
		CreatedAt:      dbS.CreatedAt,
		UpdatedAt:      dbS.UpdatedAt,
	}, nil
}

func (r *PostgresScheduleRepository) Save(ctx context.Context, s flow.Schedule) error {
	dbS, err := toDBSchedule(s)
	if err != nil {
		return errx.Wrap(err, "failed to convert schedule", errx.TypeInternal).
			WithDetail("schedule_id", s.ID)
	}

	query := `
		INSERT INTO flow_schedules (
			id, flow_id, cron_expression, contact_ids, is_active,
			last_run_at, next_run_at, run_count, created_at, updated_at
		) VALUES (
			:id, :flow_id, :cron_expression, :contact_ids, :is_active,
			:last_run_at, :next_run_at, :run_count, :created_at, :updated_at
		)
		ON CONFLICT (id) DO UPDATE SET
			cron_expression = EXCLUDED.cron_expression,
			contact_ids = EXCLUDED.contact_ids,
			is_active = EXCLUDED.is_active,
			last_run_at = EXCLUDED.last_run_at,
			next_run_at = EXCLUDED.next_run_at,
			run_count = EXCLUDED.run_count,
			updated_at = EXCLUDED.updated_at`

	if _, err := r.db.NamedExecContext(ctx, query, dbS); err != nil {
		return errx.Wrap(err, "failed to save schedule", errx.TypeInternal).
			WithDetail("schedule_id", s.ID)
	}
	return nil
}

func (r *PostgresScheduleRepository) FindByID(ctx context.Context, id kernel.ScheduleID) (*flow.Schedule, error) {
	query := `
		SELECT
			id, flow_id, cron_expression, contact_ids, is_active,
			last_run_at, next_run_at, run_count, created_at, updated_at
		FROM flow_schedules
		WHERE id = $1`

	var dbS dbSchedule
	err := r.db.GetContext(ctx, &dbS, query, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, flow.ErrScheduleNotFound().WithDetail("schedule_id", id.String())
		}
		return nil, errx.Wrap(err, "failed to find schedule by id", errx.TypeInternal).
			WithDetail("schedule_id", id.String())
	}

	return toDomainSchedule(&dbS)
}

func (r *PostgresScheduleRepository) FindDue(ctx context.Context, now time.Time) ([]*flow.Schedule, error) {
	query := `
		SELECT
			id, flow_id, cron_expression, contact_ids, is_active,
			last_run_at, next_run_at, run_count, created_at, updated_at
		FROM flow_schedules
		WHERE is_active = true AND next_run_at IS NOT NULL AND next_run_at <= $1
		ORDER BY next_run_at ASC`

	var dbSchedules []dbSchedule
	if err := r.db.SelectContext(ctx, &dbSchedules, query, now); err != nil {
		return nil, errx.Wrap(err, "failed to find due schedules", errx.TypeInternal)
	}

	schedules := make([]*flow.Schedule, 0, len(dbSchedules))
	for i := range dbSchedules {
		s, err := toDomainSchedule(&dbSchedules[i])
		if err != nil {
			return nil, errx.Wrap(err, "failed to convert schedule", errx.TypeInternal)
		}
		schedules = append(schedules, s)
	}
	return schedules, nil
}

func (r *PostgresScheduleRepository) MarkExecuted(ctx context.Context, id kernel.ScheduleID, ranAt, nextRun time.Time) error {
	query := `
		UPDATE flow_schedules SET
			last_run_at = $2,
			next_run_at = $3,
			run_count = run_count + 1,
			updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id.String(), ranAt, nextRun)
	if err != nil {
		return errx.Wrap(err, "failed to mark schedule executed", errx.TypeInternal).
			WithDetail("schedule_id", id.String())
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected", errx.TypeInternal)
	}
	if rowsAffected == 0 {
		return flow.ErrScheduleNotFound().WithDetail("schedule_id", id.String())
	}
	return nil
}

func (r *PostgresScheduleRepository) Delete(ctx context.Context, id kernel.ScheduleID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM flow_schedules WHERE id = $1`, id.String())
	if err != nil {
		return errx.Wrap(err, "failed to delete schedule", errx.TypeInternal).
			WithDetail("schedule_id", id.String())
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected", errx.TypeInternal)
	}
	if rowsAffected == 0 {
		return flow.ErrScheduleNotFound().WithDetail("schedule_id", id.String())
	}
	return nil
}

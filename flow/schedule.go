package flow

import (
	"time"

	"github.com/converzap/converzap/pkg/kernel"
)

// ============================================================================
// Schedule Entity
// ============================================================================

// Schedule dispara un flujo manualmente para una lista de contactos según
// una expresión cron. Es el mecanismo de campañas programadas; los envíos
// resultantes pasan por la cola de acciones salientes con su rate limit.
type Schedule struct {
	ID             kernel.ScheduleID  `db:"id" json:"id"`
	FlowID         kernel.FlowID      `db:"flow_id" json:"flow_id"`
	CronExpression string             `db:"cron_expression" json:"cron_expression"`
	ContactIDs     []kernel.ContactID `db:"contact_ids" json:"contact_ids"`
	IsActive       bool               `db:"is_active" json:"is_active"`
	LastRunAt      *time.Time         `db:"last_run_at" json:"last_run_at,omitempty"`
	NextRunAt      *time.Time         `db:"next_run_at" json:"next_run_at,omitempty"`
	RunCount       int                `db:"run_count" json:"run_count"`
	CreatedAt      time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `db:"updated_at" json:"updated_at"`
}

// IsValid verifica si el schedule es válido
func (s *Schedule) IsValid() bool {
	return !s.FlowID.IsEmpty() && s.CronExpression != "" && len(s.ContactIDs) > 0
}

// ShouldRun indica si el schedule está vencido
func (s *Schedule) ShouldRun(now time.Time) bool {
	if !s.IsActive || s.NextRunAt == nil {
		return false
	}
	return now.After(*s.NextRunAt) || now.Equal(*s.NextRunAt)
}

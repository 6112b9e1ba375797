package flow

import (
	"context"
	"time"

	"github.com/converzap/converzap/pkg/kernel"
)

// ============================================================================
// Repository Interfaces
// ============================================================================

// Repository persistencia de definiciones de flujo. El motor es un lector:
// la autoría de flujos ocurre fuera, aquí solo entran por Save/import.
type Repository interface {
	Save(ctx context.Context, f Flow) error
	FindByID(ctx context.Context, id kernel.FlowID) (*Flow, error)
	FindActive(ctx context.Context) ([]*Flow, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	Delete(ctx context.Context, id kernel.FlowID) error
}

// ScheduleRepository persistencia de schedules de disparo masivo
type ScheduleRepository interface {
	Save(ctx context.Context, s Schedule) error
	FindByID(ctx context.Context, id kernel.ScheduleID) (*Schedule, error)
	FindDue(ctx context.Context, now time.Time) ([]*Schedule, error)
	MarkExecuted(ctx context.Context, id kernel.ScheduleID, ranAt, nextRun time.Time) error
	Delete(ctx context.Context, id kernel.ScheduleID) error
}

package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/converzap/converzap/execution"
	"github.com/converzap/converzap/flow"
	"github.com/robfig/cron/v3"
)

// BroadcastScheduler dispara flujos programados para listas de contactos.
// Cada contacto entra como ManualTrigger al dispatcher: un contacto con una
// ejecución activa queda excluido por la regla de una-ejecución-por-contacto
// y el resto arranca normalmente.
type BroadcastScheduler struct {
	schedules  flow.ScheduleRepository
	dispatcher execution.Dispatcher
	cronParser cron.Parser
	stopChan   chan struct{}
	mu         sync.Mutex
	running    bool
}

func NewBroadcastScheduler(
	schedules flow.ScheduleRepository,
	dispatcher execution.Dispatcher,
) *BroadcastScheduler {
	return &BroadcastScheduler{
		schedules:  schedules,
		dispatcher: dispatcher,
		cronParser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		stopChan:   make(chan struct{}),
	}
}

// Start arranca el loop del scheduler; corre hasta Stop o cancelación
func (s *BroadcastScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		log.Println("⚠️  Broadcast scheduler already running")
		return
	}
	s.running = true
	s.mu.Unlock()

	log.Println("⏰ Starting broadcast scheduler...")

	go s.processDueSchedules(ctx)

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("⏹️  Broadcast scheduler stopped (context done)")
			return
		case <-s.stopChan:
			log.Println("⏹️  Broadcast scheduler stopped")
			return
		case <-ticker.C:
			s.processDueSchedules(ctx)
		}
	}
}

// Stop detiene el scheduler
func (s *BroadcastScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	close(s.stopChan)
	s.running = false
}

func (s *BroadcastScheduler) processDueSchedules(ctx context.Context) {
	now := time.Now()

	schedules, err := s.schedules.FindDue(ctx, now)
	if err != nil {
		log.Printf("❌ Failed to fetch due schedules: %v", err)
		return
	}
	if len(schedules) == 0 {
		return
	}

	log.Printf("⏰ Found %d due broadcast schedule(s)", len(schedules))

	for _, schedule := range schedules {
		// FindDue filtra en SQL; la regla de vencimiento es del dominio y se
		// reaplica acá sobre lo que el repositorio devolvió
		if !schedule.ShouldRun(now) {
			continue
		}
		go s.executeSchedule(ctx, schedule)
	}
}

func (s *BroadcastScheduler) executeSchedule(ctx context.Context, schedule *flow.Schedule) {
	log.Printf("▶️  Executing broadcast schedule %s (flow: %s, contacts: %d)",
		schedule.ID, schedule.FlowID, len(schedule.ContactIDs))

	started := 0
	for _, contactID := range schedule.ContactIDs {
		event := execution.ManualTrigger{
			FlowID:    schedule.FlowID,
			ContactID: contactID,
		}
		if err := s.dispatcher.Handle(ctx, event); err != nil {
			log.Printf("⚠️  Broadcast trigger failed for contact %s: %v", contactID, err)
			continue
		}
		started++
	}

	now := time.Now()
	nextRun, err := s.nextRun(schedule.CronExpression, now)
	if err != nil {
		log.Printf("⚠️  Invalid cron expression on schedule %s: %v", schedule.ID, err)
		// Sin próximo run el schedule queda inerte hasta que lo corrijan
	}

	if err := s.schedules.MarkExecuted(ctx, schedule.ID, now, nextRun); err != nil {
		log.Printf("❌ Failed to mark schedule %s executed: %v", schedule.ID, err)
		return
	}

	log.Printf("✅ Broadcast schedule %s done (%d/%d contacts triggered)",
		schedule.ID, started, len(schedule.ContactIDs))
}

// nextRun calcula la próxima ejecución según la expresión cron
func (s *BroadcastScheduler) nextRun(expression string, after time.Time) (time.Time, error) {
	cronSchedule, err := s.cronParser.Parse(expression)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression %q: %w", expression, err)
	}
	return cronSchedule.Next(after), nil
}

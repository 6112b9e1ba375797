package execsrv

import (
	"context"
	"log"
	"time"

	"github.com/converzap/converzap/execution"
	"github.com/converzap/converzap/execution/dispatcher"
	"github.com/converzap/converzap/flow"
	"github.com/converzap/converzap/pkg/kernel"
)

const operatorLockTTL = 30 * time.Second

// Service operaciones del operador sobre ejecuciones: consulta, reset y
// cancelación. Reset y Cancel toman el lock del contacto para no pisarse
// con un avance en curso; el CAS del repositorio cubre la ventana restante.
type Service struct {
	executions execution.Repository
	flows      flow.Repository
	locker     execution.ContactLocker
	runner     dispatcher.Advancer
	timers     execution.TimerScheduler
}

func New(
	executions execution.Repository,
	flows flow.Repository,
	locker execution.ContactLocker,
	runner dispatcher.Advancer,
	timers execution.TimerScheduler,
) *Service {
	return &Service{
		executions: executions,
		flows:      flows,
		locker:     locker,
		runner:     runner,
		timers:     timers,
	}
}

// Get retorna una ejecución por ID
func (s *Service) Get(ctx context.Context, id kernel.ExecutionID) (*execution.FlowExecution, error) {
	return s.executions.FindByID(ctx, id)
}

// List retorna ejecuciones paginadas con filtros opcionales
func (s *Service) List(ctx context.Context, req execution.ListRequest) (execution.ListResponse, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 100 {
		req.PageSize = 20
	}
	return s.executions.List(ctx, req)
}

// Reset rebobina una ejecución al nodo START del flujo, limpia el contexto
// acumulado y vuelve a correr desde el inicio. Funciona sobre cualquier
// estado, incluido un estado terminal.
func (s *Service) Reset(ctx context.Context, id kernel.ExecutionID) (*execution.FlowExecution, error) {
	exec, err := s.executions.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, exec.ContactID, operatorLockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	// Releer bajo lock
	exec, err = s.executions.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	fl, err := s.flows.FindByID(ctx, exec.FlowID)
	if err != nil {
		return nil, err
	}
	start := fl.StartNode()
	if start == nil {
		return nil, flow.ErrInvalidFlow().
			WithDetail("flow_id", fl.ID.String()).
			WithDetail("reason", "flow has no START node")
	}

	if err := s.timers.Cancel(ctx, exec.ID); err != nil {
		log.Printf("⚠️  Failed to cancel timer wakes for %s: %v", exec.ID, err)
	}

	exec.Reset(start.ID)
	if err := s.executions.Update(ctx, exec); err != nil {
		return nil, err
	}

	log.Printf("🔄 Execution %s reset to START of flow %s", exec.ID, fl.ID)

	trigger := &execution.TriggerInput{Kind: execution.TriggerManual}
	if err := s.runner.Advance(ctx, exec, fl, trigger); err != nil {
		return nil, err
	}
	return exec, nil
}

// Cancel abandona una ejecución activa y elimina sus timers pendientes
func (s *Service) Cancel(ctx context.Context, id kernel.ExecutionID) (*execution.FlowExecution, error) {
	exec, err := s.executions.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, exec.ContactID, operatorLockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	exec, err = s.executions.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if exec.Status.IsTerminal() {
		return nil, execution.ErrExecutionTerminal().WithDetail("execution_id", id.String())
	}

	if err := s.timers.Cancel(ctx, exec.ID); err != nil {
		log.Printf("⚠️  Failed to cancel timer wakes for %s: %v", exec.ID, err)
	}

	exec.Abandon("cancelled by operator")
	if err := s.executions.Update(ctx, exec); err != nil {
		return nil, err
	}

	log.Printf("🛑 Execution %s cancelled by operator", exec.ID)
	return exec, nil
}

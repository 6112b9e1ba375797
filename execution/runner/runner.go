package runner

import (
	"context"
	"log"
	"maps"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/converzap/converzap/execution"
	"github.com/converzap/converzap/flow"
	"github.com/converzap/converzap/outbound"
)

// maxStepsPerAdvance corta ciclos sin nodo de suspensión en el grafo
const maxStepsPerAdvance = 100

// ExecutorResolver resuelve el ejecutor para un tipo de nodo
type ExecutorResolver interface {
	ForType(nodeType flow.NodeType) execution.NodeExecutor
}

// Runner ejecuta el loop de avance de una ejecución: corre el nodo actual,
// aplica el resultado al contexto, selecciona la siguiente arista y persiste
// cada paso con compare-and-set. Una ejecución avanza en cascada hasta
// suspenderse o terminar.
type Runner struct {
	repo      execution.Repository
	executors ExecutorResolver
	queue     outbound.Queue
	timers    execution.TimerScheduler
}

func New(
	repo execution.Repository,
	executors ExecutorResolver,
	queue outbound.Queue,
	timers execution.TimerScheduler,
) *Runner {
	return &Runner{
		repo:      repo,
		executors: executors,
		queue:     queue,
		timers:    timers,
	}
}

// Advance corre el loop desde el nodo actual. El trigger se consume en la
// primera iteración; la cascada posterior corre sin input.
func (r *Runner) Advance(ctx context.Context, exec *execution.FlowExecution, fl *flow.Flow, trigger *execution.TriggerInput) error {
	if exec.Status.IsTerminal() {
		return execution.ErrExecutionTerminal().WithDetail("execution_id", exec.ID.String())
	}

	exec.Resume()

	for step := 0; step < maxStepsPerAdvance; step++ {
		node := fl.NodeByID(exec.CurrentNodeID)
		if node == nil {
			return r.abandon(ctx, exec, "current node not found in flow graph: "+exec.CurrentNodeID)
		}

		executor := r.executors.ForType(node.Type)
		if executor == nil {
			return r.abandon(ctx, exec, "no executor for node type: "+string(node.Type))
		}

		stepCtx := execution.StepContext{Execution: exec, Trigger: trigger}
		trigger = nil

		outcome, err := executor.Execute(ctx, *node, stepCtx)
		if err != nil {
			if isRecoverable(node.Type) {
				outcome = r.recoverFrom(exec, node, err)
			} else {
				return r.abandon(ctx, exec, "node execution failed: "+err.Error())
			}
		}

		r.applyOutcome(exec, node, outcome)

		if outcome.Action != nil {
			if err := r.queue.Enqueue(ctx, *outcome.Action); err != nil {
				// El envío es best-effort: el fallo queda en metadata y el
				// flujo sigue avanzando
				log.Printf("❌ Failed to enqueue outbound action for node %s: %v", node.ID, err)
				exec.SetMetadata("enqueue_error_"+node.ID, err.Error())
			}
		}

		switch outcome.Signal {
		case execution.SignalSuspend:
			if outcome.WakeAfter > 0 {
				if err := r.timers.Schedule(ctx, exec.ID, node.ID, outcome.WakeAfter); err != nil {
					return r.abandon(ctx, exec, "failed to schedule timer wake: "+err.Error())
				}
			}
			exec.Suspend()
			return r.persist(ctx, exec)

		case execution.SignalComplete:
			exec.Complete()
			if err := r.timers.Cancel(ctx, exec.ID); err != nil {
				log.Printf("⚠️  Failed to cancel timer wakes for %s: %v", exec.ID, err)
			}
			log.Printf("✅ Execution %s completed at node %s", exec.ID, node.ID)
			return r.persist(ctx, exec)

		case execution.SignalAdvance:
			next, routeErr := selectNextNode(fl, node.ID, outcome.RouteLabel)
			if routeErr != nil {
				return r.abandon(ctx, exec, routeErr.Error())
			}
			if next == "" {
				// Sin aristas salientes: fin implícito del flujo
				exec.Complete()
				if err := r.timers.Cancel(ctx, exec.ID); err != nil {
					log.Printf("⚠️  Failed to cancel timer wakes for %s: %v", exec.ID, err)
				}
				log.Printf("✅ Execution %s completed (no outgoing edges from %s)", exec.ID, node.ID)
				return r.persist(ctx, exec)
			}

			exec.CurrentNodeID = next
			if err := r.persist(ctx, exec); err != nil {
				return err
			}

		default:
			return r.abandon(ctx, exec, "executor returned unknown signal")
		}
	}

	return r.abandon(ctx, exec, "step limit exceeded, flow graph likely has a cycle without a suspending node")
}

// applyOutcome aplica el delta del paso al estado de la ejecución. La
// entrada del historial se agrega en toda iteración, incluida la que
// suspende.
func (r *Runner) applyOutcome(exec *execution.FlowExecution, node *flow.Node, outcome *execution.StepOutcome) {
	exec.RecordNode(node.ID, node.Type)

	if len(outcome.Variables) > 0 {
		for k, v := range outcome.Variables {
			exec.SetVariable(k, v)
		}
	}
	if outcome.Response != nil {
		exec.RecordResponse(outcome.Response.NodeID, outcome.Response.Response)
	}
	if len(outcome.Metadata) > 0 {
		if exec.Context.Metadata == nil {
			exec.Context.Metadata = make(map[string]any)
		}
		maps.Copy(exec.Context.Metadata, outcome.Metadata)
	}
}

// recoverFrom convierte un fallo de nodo HTTP o AI en un avance por la
// arista default, dejando el error visible en metadata.
func (r *Runner) recoverFrom(exec *execution.FlowExecution, node *flow.Node, err error) *execution.StepOutcome {
	log.Printf("⚠️  Node %s (%s) failed, advancing on default edge: %v", node.ID, node.Type, err)
	return &execution.StepOutcome{
		Signal: execution.SignalAdvance,
		Metadata: map[string]any{
			"error_" + node.ID: err.Error(),
		},
	}
}

func isRecoverable(nodeType flow.NodeType) bool {
	return nodeType == flow.NodeTypeHTTP || nodeType == flow.NodeTypeAI
}

// selectNextNode resuelve la arista de salida: primero la arista con el
// label calculado, después la arista sin label. Un nodo sin aristas
// salientes completa el flujo; un nodo con aristas pero sin ruta aplicable
// es un error de configuración del grafo.
func selectNextNode(fl *flow.Flow, nodeID, routeLabel string) (string, error) {
	if routeLabel != "" {
		if edge := fl.EdgeFrom(nodeID, routeLabel); edge != nil {
			return edge.Target, nil
		}
	}
	if edge := fl.EdgeFrom(nodeID, ""); edge != nil {
		return edge.Target, nil
	}

	if len(fl.EdgesFrom(nodeID)) == 0 {
		return "", nil
	}
	return "", execution.ErrNoRouteEdge().
		WithDetail("node_id", nodeID).
		WithDetail("route_label", routeLabel)
}

func (r *Runner) abandon(ctx context.Context, exec *execution.FlowExecution, reason string) error {
	log.Printf("🛑 Abandoning execution %s: %s", exec.ID, reason)
	exec.Abandon(reason)
	if err := r.timers.Cancel(ctx, exec.ID); err != nil {
		log.Printf("⚠️  Failed to cancel timer wakes for %s: %v", exec.ID, err)
	}
	return r.persist(ctx, exec)
}

func (r *Runner) persist(ctx context.Context, exec *execution.FlowExecution) error {
	err := r.repo.Update(ctx, exec)
	if err != nil && errx.IsType(err, errx.TypeConflict) {
		// Otro escritor (cancel del operador, reset) ganó el CAS; este
		// avance se descarta sin efectos adicionales
		log.Printf("⚠️  Execution %s was modified concurrently, stopping advance", exec.ID)
	}
	return err
}

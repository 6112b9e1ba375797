package dispatcher

import (
	"context"
	"log"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/converzap/converzap/execution"
	"github.com/converzap/converzap/flow"
	"github.com/converzap/converzap/pkg/kernel"
	"github.com/google/uuid"
)

// contactLockTTL cubre la cascada más larga razonable de un avance
const contactLockTTL = 30 * time.Second

// Advancer es el Runner visto desde el dispatcher
type Advancer interface {
	Advance(ctx context.Context, exec *execution.FlowExecution, fl *flow.Flow, trigger *execution.TriggerInput) error
}

// Dispatcher punto de entrada del motor: recibe eventos entrantes, resuelve
// a qué ejecución pertenecen (o crea una nueva por trigger match) y delega
// el avance al Runner. Todo el trabajo por contacto corre bajo el lock del
// contacto, que serializa mensajes y timers concurrentes.
type Dispatcher struct {
	executions execution.Repository
	flows      flow.Repository
	triggers   *flow.TriggerIndex
	locker     execution.ContactLocker
	runner     Advancer
}

var _ execution.Dispatcher = (*Dispatcher)(nil)

func New(
	executions execution.Repository,
	flows flow.Repository,
	triggers *flow.TriggerIndex,
	locker execution.ContactLocker,
	runner Advancer,
) *Dispatcher {
	return &Dispatcher{
		executions: executions,
		flows:      flows,
		triggers:   triggers,
		locker:     locker,
		runner:     runner,
	}
}

// RefreshTriggers reconstruye el índice de triggers desde los flujos activos
func (d *Dispatcher) RefreshTriggers(ctx context.Context) error {
	flows, err := d.flows.FindActive(ctx)
	if err != nil {
		return err
	}
	d.triggers.Rebuild(flows)
	log.Printf("🔄 Trigger index rebuilt with %d active flow(s)", len(flows))
	return nil
}

// Handle procesa un evento entrante
func (d *Dispatcher) Handle(ctx context.Context, event execution.InboundEvent) error {
	switch e := event.(type) {
	case execution.MessageReceived:
		return d.handleMessage(ctx, e)
	case execution.ManualTrigger:
		return d.handleManualTrigger(ctx, e)
	case execution.TimerFired:
		return d.handleTimerFired(ctx, e)
	default:
		return errx.New("unknown inbound event type", errx.TypeValidation)
	}
}

func (d *Dispatcher) handleMessage(ctx context.Context, event execution.MessageReceived) error {
	release, err := d.locker.Acquire(ctx, event.ContactID, contactLockTTL)
	if err != nil {
		return err
	}
	defer release()

	exec, err := d.executions.FindActiveByContact(ctx, event.ContactID)
	if err != nil && !errx.IsType(err, errx.TypeNotFound) {
		return err
	}

	if exec != nil {
		return d.resumeWithMessage(ctx, exec, event)
	}
	return d.startByTrigger(ctx, event)
}

// resumeWithMessage entrega el mensaje a una ejecución activa. Solo un nodo
// ACTION consume input; un mensaje que llega mientras la ejecución espera en
// otro nodo se registra y se descarta.
func (d *Dispatcher) resumeWithMessage(ctx context.Context, exec *execution.FlowExecution, event execution.MessageReceived) error {
	fl, err := d.flows.FindByID(ctx, exec.FlowID)
	if err != nil {
		return err
	}

	node := fl.NodeByID(exec.CurrentNodeID)
	if node == nil || node.Type != flow.NodeTypeAction || exec.Status != execution.StatusWaiting {
		log.Printf("🔇 Contact %s sent a message but execution %s is not waiting for input, ignoring",
			event.ContactID, exec.ID)
		if err := d.executions.AppendMetadata(ctx, exec.ID, "unsolicited_message", event.Text); err != nil {
			log.Printf("⚠️  Failed to record unsolicited message: %v", err)
		}
		return nil
	}

	trigger := &execution.TriggerInput{
		Kind: execution.TriggerUser,
		Text: event.Text,
	}
	return d.runner.Advance(ctx, exec, fl, trigger)
}

// startByTrigger intenta arrancar un flujo por keyword. Un mensaje sin
// flujo que matchee se descarta en silencio: el contacto no está en
// ninguna conversación.
func (d *Dispatcher) startByTrigger(ctx context.Context, event execution.MessageReceived) error {
	fl, err := d.triggers.Resolve(event.Text)
	if err != nil {
		// Triggers ambiguos son un error de configuración; el mensaje no
		// puede arrancar nada pero el evento no falla
		log.Printf("❌ Ambiguous trigger match for message from %s: %v", event.ContactID, err)
		return nil
	}
	if fl == nil {
		log.Printf("🔇 No flow matches message from contact %s, dropping", event.ContactID)
		return nil
	}

	trigger := &execution.TriggerInput{
		Kind: execution.TriggerUser,
		Text: event.Text,
	}
	return d.startExecution(ctx, fl, event.ContactID, "", trigger)
}

func (d *Dispatcher) handleManualTrigger(ctx context.Context, event execution.ManualTrigger) error {
	release, err := d.locker.Acquire(ctx, event.ContactID, contactLockTTL)
	if err != nil {
		return err
	}
	defer release()

	fl, err := d.flows.FindByID(ctx, event.FlowID)
	if err != nil {
		return err
	}
	if !fl.IsActive {
		return flow.ErrFlowInactive().WithDetail("flow_id", event.FlowID.String())
	}

	trigger := &execution.TriggerInput{Kind: execution.TriggerManual}
	return d.startExecution(ctx, fl, event.ContactID, event.StartNodeID, trigger)
}

// startExecution crea la ejecución en el nodo de entrada. Un disparo manual
// puede pedir un nodo de entrada explícito para probar un tramo del grafo;
// por defecto la ejecución arranca en el START del flujo.
func (d *Dispatcher) startExecution(ctx context.Context, fl *flow.Flow, contactID kernel.ContactID, startNodeID string, trigger *execution.TriggerInput) error {
	entry := fl.StartNode()
	if startNodeID != "" {
		entry = fl.NodeByID(startNodeID)
		if entry == nil {
			return flow.ErrInvalidNode().
				WithDetail("flow_id", fl.ID.String()).
				WithDetail("node_id", startNodeID)
		}
	}
	if entry == nil {
		return flow.ErrInvalidFlow().
			WithDetail("flow_id", fl.ID.String()).
			WithDetail("reason", "flow has no START node")
	}

	exec := execution.New(kernel.NewExecutionID(uuid.New().String()), fl.ID, contactID, entry.ID)
	if err := d.executions.Create(ctx, exec); err != nil {
		if errx.IsType(err, errx.TypeConflict) {
			// Otro evento creó una ejecución para el contacto en paralelo
			log.Printf("⚠️  Contact %s already has an active execution, dropping trigger", contactID)
			return nil
		}
		return err
	}

	log.Printf("🚀 Started execution %s (flow %s, contact %s)", exec.ID, fl.ID, contactID)
	return d.runner.Advance(ctx, exec, fl, trigger)
}

// handleTimerFired procesa el vencimiento de un timer. Un timer viejo cuya
// ejecución ya avanzó a otro nodo, o terminó, se descarta.
func (d *Dispatcher) handleTimerFired(ctx context.Context, event execution.TimerFired) error {
	exec, err := d.executions.FindByID(ctx, event.ExecutionID)
	if err != nil {
		if errx.IsType(err, errx.TypeNotFound) {
			log.Printf("🔇 Timer fired for unknown execution %s, dropping", event.ExecutionID)
			return nil
		}
		return err
	}

	release, err := d.locker.Acquire(ctx, exec.ContactID, contactLockTTL)
	if err != nil {
		return err
	}
	defer release()

	// Releer bajo lock: el estado pudo cambiar mientras esperábamos
	exec, err = d.executions.FindByID(ctx, event.ExecutionID)
	if err != nil {
		return err
	}

	if exec.Status != execution.StatusWaiting || exec.CurrentNodeID != event.NodeID {
		log.Printf("🔇 Stale timer for execution %s node %s (current: %s, status: %s), dropping",
			event.ExecutionID, event.NodeID, exec.CurrentNodeID, exec.Status)
		return nil
	}

	fl, err := d.flows.FindByID(ctx, exec.FlowID)
	if err != nil {
		return err
	}

	trigger := &execution.TriggerInput{
		Kind:   execution.TriggerTimer,
		NodeID: event.NodeID,
	}
	return d.runner.Advance(ctx, exec, fl, trigger)
}

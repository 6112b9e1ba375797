package nodeexec

import (
	"context"
	"log"
	"time"

	"github.com/converzap/converzap/execution"
	"github.com/converzap/converzap/flow"
)

// TimeoutRouteLabel arista que toma un nodo ACTION cuando vence su timeout.
// Si el nodo no tiene una arista con este label, el Runner cae a la arista
// sin label.
const TimeoutRouteLabel = "timeout"

// ActionExecutor nodo ACTION: suspende la ejecución hasta que llegue input
// del contacto. Con TimeoutSeconds configurado programa un despertar que
// fuerza el avance por la ruta de timeout.
type ActionExecutor struct{}

var _ execution.NodeExecutor = (*ActionExecutor)(nil)

func NewActionExecutor() *ActionExecutor {
	return &ActionExecutor{}
}

func (e *ActionExecutor) Execute(ctx context.Context, node flow.Node, step execution.StepContext) (*execution.StepOutcome, error) {
	config, err := flow.ExtractActionConfig(node.Config)
	if err != nil {
		return nil, err
	}

	trigger := step.Trigger

	// Respuesta del contacto: consumir y avanzar
	if trigger != nil && trigger.Kind == execution.TriggerUser {
		outcome := &execution.StepOutcome{
			Signal: execution.SignalAdvance,
			Response: &execution.UserResponse{
				NodeID:    node.ID,
				Timestamp: time.Now(),
				Response:  trigger.Text,
			},
		}
		if config.SaveResponseAs != "" {
			outcome.Variables = map[string]any{config.SaveResponseAs: trigger.Text}
		}
		log.Printf("📥 Action node %s consumed response from contact %s", node.ID, step.Execution.ContactID)
		return outcome, nil
	}

	// Timeout del propio nodo: avanzar por la ruta de timeout
	if trigger != nil && trigger.Kind == execution.TriggerTimer && trigger.NodeID == node.ID {
		log.Printf("⏱️  Action node %s timed out for contact %s", node.ID, step.Execution.ContactID)
		return &execution.StepOutcome{
			Signal:     execution.SignalAdvance,
			RouteLabel: TimeoutRouteLabel,
		}, nil
	}

	// Primera visita: suspender a la espera de input
	outcome := &execution.StepOutcome{Signal: execution.SignalSuspend}
	if config.TimeoutSeconds != nil {
		outcome.WakeAfter = time.Duration(*config.TimeoutSeconds) * time.Second
	}
	return outcome, nil
}

func (e *ActionExecutor) Supports(nodeType flow.NodeType) bool {
	return nodeType == flow.NodeTypeAction
}

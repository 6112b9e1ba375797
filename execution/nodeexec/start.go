package nodeexec

import (
	"context"

	"github.com/converzap/converzap/execution"
	"github.com/converzap/converzap/flow"
)

// StartExecutor nodo START: consume el trigger que creó la ejecución y
// avanza de inmediato. El matching de keywords ya ocurrió en el dispatcher.
type StartExecutor struct{}

var _ execution.NodeExecutor = (*StartExecutor)(nil)

func NewStartExecutor() *StartExecutor {
	return &StartExecutor{}
}

func (e *StartExecutor) Execute(ctx context.Context, node flow.Node, step execution.StepContext) (*execution.StepOutcome, error) {
	outcome := &execution.StepOutcome{
		Signal:    execution.SignalAdvance,
		Variables: map[string]any{},
	}

	// El texto que disparó el flujo queda disponible para interpolación
	if step.Trigger != nil && step.Trigger.Kind == execution.TriggerUser && step.Trigger.Text != "" {
		outcome.Variables["trigger_message"] = step.Trigger.Text
	}

	return outcome, nil
}

func (e *StartExecutor) Supports(nodeType flow.NodeType) bool {
	return nodeType == flow.NodeTypeStart
}

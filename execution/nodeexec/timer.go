package nodeexec

import (
	"context"
	"log"

	"github.com/converzap/converzap/execution"
	"github.com/converzap/converzap/flow"
)

// TimerExecutor nodo TIMER: suspende la ejecución y programa un despertar.
// Cuando el despertar llega para este nodo, avanza por la arista default.
type TimerExecutor struct{}

var _ execution.NodeExecutor = (*TimerExecutor)(nil)

func NewTimerExecutor() *TimerExecutor {
	return &TimerExecutor{}
}

func (e *TimerExecutor) Execute(ctx context.Context, node flow.Node, step execution.StepContext) (*execution.StepOutcome, error) {
	config, err := flow.ExtractTimerConfig(node.Config)
	if err != nil {
		return nil, err
	}

	// Despertar del propio timer: continuar
	if step.Trigger != nil && step.Trigger.Kind == execution.TriggerTimer && step.Trigger.NodeID == node.ID {
		log.Printf("⏰ Timer node %s woke execution %s", node.ID, step.Execution.ID)
		return &execution.StepOutcome{Signal: execution.SignalAdvance}, nil
	}

	log.Printf("⏳ Timer node %s suspending execution %s for %v", node.ID, step.Execution.ID, config.Duration())
	return &execution.StepOutcome{
		Signal:    execution.SignalSuspend,
		WakeAfter: config.Duration(),
	}, nil
}

func (e *TimerExecutor) Supports(nodeType flow.NodeType) bool {
	return nodeType == flow.NodeTypeTimer
}

package nodeexec

import (
	"context"
	"log"

	"github.com/converzap/converzap/execution"
	"github.com/converzap/converzap/flow"
	"github.com/converzap/converzap/outbound"
)

// EndExecutor nodo END: envía el mensaje final opcional y completa la
// ejecución.
type EndExecutor struct{}

var _ execution.NodeExecutor = (*EndExecutor)(nil)

func NewEndExecutor() *EndExecutor {
	return &EndExecutor{}
}

func (e *EndExecutor) Execute(ctx context.Context, node flow.Node, step execution.StepContext) (*execution.StepOutcome, error) {
	config, err := flow.ExtractEndConfig(node.Config)
	if err != nil {
		return nil, err
	}

	outcome := &execution.StepOutcome{Signal: execution.SignalComplete}

	if config.FinalMessage != "" {
		text := execution.Interpolate(config.FinalMessage, step.Execution.Context.Variables)
		outcome.Action = &outbound.ActionRequest{
			ExecutionID: step.Execution.ID,
			ContactID:   step.Execution.ContactID,
			NodeID:      node.ID,
			Kind:        outbound.KindMessage,
			Message:     &outbound.MessagePayload{Text: text},
		}
	}

	log.Printf("🏁 End node %s completing execution %s", node.ID, step.Execution.ID)
	return outcome, nil
}

func (e *EndExecutor) Supports(nodeType flow.NodeType) bool {
	return nodeType == flow.NodeTypeEnd
}

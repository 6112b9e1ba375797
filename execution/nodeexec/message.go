package nodeexec

import (
	"context"
	"log"

	"github.com/converzap/converzap/execution"
	"github.com/converzap/converzap/flow"
	"github.com/converzap/converzap/outbound"
)

// MessageExecutor nodo MESSAGE: interpola el texto y encola el envío.
// El enqueue lo hace el Runner; aquí solo se arma el request.
type MessageExecutor struct{}

var _ execution.NodeExecutor = (*MessageExecutor)(nil)

func NewMessageExecutor() *MessageExecutor {
	return &MessageExecutor{}
}

func (e *MessageExecutor) Execute(ctx context.Context, node flow.Node, step execution.StepContext) (*execution.StepOutcome, error) {
	config, err := flow.ExtractMessageConfig(node.Config)
	if err != nil {
		return nil, err
	}

	text := execution.Interpolate(config.Text, step.Execution.Context.Variables)

	log.Printf("💬 Message node %s queuing text for contact %s", node.ID, step.Execution.ContactID)

	return &execution.StepOutcome{
		Signal: execution.SignalAdvance,
		Action: &outbound.ActionRequest{
			ExecutionID: step.Execution.ID,
			ContactID:   step.Execution.ContactID,
			NodeID:      node.ID,
			Kind:        outbound.KindMessage,
			Message:     &outbound.MessagePayload{Text: text},
		},
	}, nil
}

func (e *MessageExecutor) Supports(nodeType flow.NodeType) bool {
	return nodeType == flow.NodeTypeMessage
}

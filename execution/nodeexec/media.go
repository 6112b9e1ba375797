package nodeexec

import (
	"context"
	"log"

	"github.com/converzap/converzap/execution"
	"github.com/converzap/converzap/flow"
	"github.com/converzap/converzap/outbound"
)

// MediaExecutor nodo MEDIA: encola el envío de una referencia multimedia.
// La URL y el caption se interpolan; el binario nunca pasa por el motor.
type MediaExecutor struct{}

var _ execution.NodeExecutor = (*MediaExecutor)(nil)

func NewMediaExecutor() *MediaExecutor {
	return &MediaExecutor{}
}

func (e *MediaExecutor) Execute(ctx context.Context, node flow.Node, step execution.StepContext) (*execution.StepOutcome, error) {
	config, err := flow.ExtractMediaConfig(node.Config)
	if err != nil {
		return nil, err
	}

	variables := step.Execution.Context.Variables

	log.Printf("🖼️  Media node %s queuing %s for contact %s", node.ID, config.MediaType, step.Execution.ContactID)

	return &execution.StepOutcome{
		Signal: execution.SignalAdvance,
		Action: &outbound.ActionRequest{
			ExecutionID: step.Execution.ID,
			ContactID:   step.Execution.ContactID,
			NodeID:      node.ID,
			Kind:        outbound.KindMedia,
			Media: &outbound.MediaPayload{
				MediaURL:  execution.Interpolate(config.MediaURL, variables),
				MediaType: config.MediaType,
				Caption:   execution.Interpolate(config.Caption, variables),
				Filename:  config.Filename,
			},
		},
	}, nil
}

func (e *MediaExecutor) Supports(nodeType flow.NodeType) bool {
	return nodeType == flow.NodeTypeMedia
}

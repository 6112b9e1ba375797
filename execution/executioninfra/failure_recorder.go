package executioninfra

import (
	"context"
	"log"

	"github.com/converzap/converzap/execution"
	"github.com/converzap/converzap/outbound"
)

// DeliveryFailureRecorder vuelca los fallos definitivos de entrega en la
// metadata de la ejecución de origen, sin pasar por el CAS del Runner.
type DeliveryFailureRecorder struct {
	repo execution.Repository
}

var _ outbound.FailureRecorder = (*DeliveryFailureRecorder)(nil)

func NewDeliveryFailureRecorder(repo execution.Repository) *DeliveryFailureRecorder {
	return &DeliveryFailureRecorder{repo: repo}
}

func (r *DeliveryFailureRecorder) RecordDeliveryFailure(ctx context.Context, action *outbound.OutboundAction) {
	entry := map[string]any{
		"action_id": action.ID.String(),
		"node_id":   action.NodeID,
		"kind":      string(action.Kind),
		"attempts":  action.Attempts,
		"error":     action.LastError,
	}
	if err := r.repo.AppendMetadata(ctx, action.ExecutionID, "delivery_failure_"+action.NodeID, entry); err != nil {
		log.Printf("⚠️  Failed to record delivery failure for execution %s: %v", action.ExecutionID, err)
	}
}

package execution

import (
	"github.com/Abraxas-365/craftable/storex"
	"github.com/converzap/converzap/pkg/kernel"
)

// ============================================================================
// Inbound Events
// ============================================================================

// InboundEvent es el único ingreso del motor: un mensaje recibido, un
// disparo manual o el vencimiento de un timer.
type InboundEvent interface {
	isInboundEvent()
}

// MessageReceived mensaje entrante del gateway para un contacto
type MessageReceived struct {
	ContactID kernel.ContactID `json:"contact_id"`
	Text      string           `json:"text"`
}

// ManualTrigger disparo explícito de un flujo, usado para pruebas y
// campañas; omite el matching por keyword.
type ManualTrigger struct {
	FlowID      kernel.FlowID    `json:"flow_id"`
	ContactID   kernel.ContactID `json:"contact_id"`
	StartNodeID string           `json:"start_node_id,omitempty"`
}

// TimerFired vencimiento de un timer programado para una ejecución
type TimerFired struct {
	ExecutionID kernel.ExecutionID `json:"execution_id"`
	NodeID      string             `json:"node_id"`
}

func (MessageReceived) isInboundEvent() {}
func (ManualTrigger) isInboundEvent()   {}
func (TimerFired) isInboundEvent()      {}

// ============================================================================
// Trigger Input
// ============================================================================

// TriggerKind origen del input que despierta una ejecución
type TriggerKind string

const (
	TriggerUser   TriggerKind = "USER"
	TriggerTimer  TriggerKind = "TIMER"
	TriggerManual TriggerKind = "MANUAL"
)

// TriggerInput es el input que el Runner entrega al primer nodo de una
// invocación de Advance. Se consume en la primera iteración del loop.
type TriggerInput struct {
	Kind TriggerKind
	Text string
	// NodeID identifica el nodo que programó el timer; un timer viejo que
	// despierta una ejecución que ya avanzó se descarta.
	NodeID string
}

// ============================================================================
// Query DTOs
// ============================================================================

type ListRequest struct {
	storex.PaginationOptions
	FlowID    kernel.FlowID    `json:"flow_id,omitempty"`
	ContactID kernel.ContactID `json:"contact_id,omitempty"`
	Status    Status           `json:"status,omitempty"`
}

func (lr ListRequest) GetOffset() int {
	return (lr.Page - 1) * lr.PageSize
}

type ListResponse = storex.Paginated[FlowExecution]

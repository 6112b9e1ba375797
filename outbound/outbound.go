package outbound

import (
	"time"

	"github.com/converzap/converzap/pkg/kernel"
	"github.com/google/uuid"
)

// ============================================================================
// Outbound Action Entity
// ============================================================================

// ActionKind tipo de acción saliente
type ActionKind string

const (
	KindMessage ActionKind = "MESSAGE"
	KindMedia   ActionKind = "MEDIA"
)

// ActionStatus estado de una acción en la cola
type ActionStatus string

const (
	StatusPending   ActionStatus = "PENDING"
	StatusDelivered ActionStatus = "DELIVERED"
	StatusFailed    ActionStatus = "FAILED"
)

// MessagePayload contenido de una acción MESSAGE
type MessagePayload struct {
	Text string `json:"text"`
}

// MediaPayload contenido de una acción MEDIA
type MediaPayload struct {
	MediaURL  string `json:"media_url"`
	MediaType string `json:"media_type"`
	Caption   string `json:"caption,omitempty"`
	Filename  string `json:"filename,omitempty"`
}

// ActionRequest es lo que el motor encola: el destino, el tipo y el payload
// ya interpolado. El enqueue nunca bloquea el avance del flujo.
type ActionRequest struct {
	ExecutionID kernel.ExecutionID `json:"execution_id"`
	ContactID   kernel.ContactID   `json:"contact_id"`
	NodeID      string             `json:"node_id"`
	Kind        ActionKind         `json:"kind"`
	Message     *MessagePayload    `json:"message,omitempty"`
	Media       *MediaPayload      `json:"media,omitempty"`
}

// OutboundAction acción encolada con su estado de reintentos
type OutboundAction struct {
	ID          kernel.ActionID    `json:"id"`
	ExecutionID kernel.ExecutionID `json:"execution_id"`
	ContactID   kernel.ContactID   `json:"contact_id"`
	NodeID      string             `json:"node_id"`
	Kind        ActionKind         `json:"kind"`
	Message     *MessagePayload    `json:"message,omitempty"`
	Media       *MediaPayload      `json:"media,omitempty"`
	Status      ActionStatus       `json:"status"`
	Attempts    int                `json:"attempts"`
	LastError   string             `json:"last_error,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	DeliveredAt *time.Time         `json:"delivered_at,omitempty"`
}

// NewAction crea una acción pendiente a partir de un request del motor
func NewAction(req ActionRequest) *OutboundAction {
	return &OutboundAction{
		ID:          kernel.NewActionID(uuid.New().String()),
		ExecutionID: req.ExecutionID,
		ContactID:   req.ContactID,
		NodeID:      req.NodeID,
		Kind:        req.Kind,
		Message:     req.Message,
		Media:       req.Media,
		Status:      StatusPending,
		Attempts:    0,
		CreatedAt:   time.Now(),
	}
}

// MarkDelivered marca la acción como entregada
func (a *OutboundAction) MarkDelivered() {
	now := time.Now()
	a.Status = StatusDelivered
	a.DeliveredAt = &now
}

// MarkRejected registra un rechazo definitivo del gateway. La acción muere
// en el intento actual sin pasar por el ciclo de reintentos.
func (a *OutboundAction) MarkRejected(err error) {
	a.Attempts++
	if err != nil {
		a.LastError = err.Error()
	}
	a.Status = StatusFailed
}

// MarkFailed registra un intento fallido. Retorna true si quedan reintentos.
func (a *OutboundAction) MarkFailed(err error, maxAttempts int) bool {
	a.Attempts++
	if err != nil {
		a.LastError = err.Error()
	}
	if a.Attempts >= maxAttempts {
		a.Status = StatusFailed
		return false
	}
	return true
}

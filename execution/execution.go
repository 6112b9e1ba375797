package execution

import (
	"time"

	"github.com/converzap/converzap/flow"
	"github.com/converzap/converzap/pkg/kernel"
)

// ============================================================================
// FlowExecution Entity
// ============================================================================

// Status estado de una ejecución
type Status string

const (
	StatusProcessing Status = "PROCESSING"
	StatusWaiting    Status = "WAITING"
	StatusCompleted  Status = "COMPLETED"
	StatusAbandoned  Status = "ABANDONED"
)

// IsTerminal indica si el estado es final
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// IsActive indica si la ejecución sigue viva para el contacto
func (s Status) IsActive() bool {
	return s == StatusProcessing || s == StatusWaiting
}

// FlowExecution es la unidad de estado mutable del motor: una corrida de un
// flujo para un contacto. El Runner es el único que la muta; cada paso del
// loop se persiste de forma atómica con compare-and-set sobre Version.
type FlowExecution struct {
	ID            kernel.ExecutionID `db:"id" json:"id"`
	FlowID        kernel.FlowID      `db:"flow_id" json:"flow_id"`
	ContactID     kernel.ContactID   `db:"contact_id" json:"contact_id"`
	Status        Status             `db:"status" json:"status"`
	CurrentNodeID string             `db:"current_node_id" json:"current_node_id"`
	Context       ContextData        `db:"context_data" json:"context_data"`
	Version       int                `db:"version" json:"version"`
	StartedAt     time.Time          `db:"started_at" json:"started_at"`
	UpdatedAt     time.Time          `db:"updated_at" json:"updated_at"`
	CompletedAt   *time.Time         `db:"completed_at" json:"completed_at,omitempty"`
}

// ContextData estado acumulado de una ejecución
type ContextData struct {
	Variables     map[string]any `json:"variables"`
	UserResponses []UserResponse `json:"user_responses"`
	ExecutedNodes []ExecutedNode `json:"executed_nodes"`
	Metadata      map[string]any `json:"metadata"`
}

// UserResponse respuesta del contacto consumida por un nodo ACTION
type UserResponse struct {
	NodeID    string    `json:"node_id"`
	Timestamp time.Time `json:"timestamp"`
	Response  string    `json:"response"`
}

// ExecutedNode entrada del historial de nodos ejecutados
type ExecutedNode struct {
	NodeID    string        `json:"node_id"`
	NodeType  flow.NodeType `json:"node_type"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewContextData retorna un contexto vacío inicializado
func NewContextData() ContextData {
	return ContextData{
		Variables:     make(map[string]any),
		UserResponses: []UserResponse{},
		ExecutedNodes: []ExecutedNode{},
		Metadata:      make(map[string]any),
	}
}

// New crea una ejecución nueva posicionada en el nodo inicial
func New(id kernel.ExecutionID, flowID kernel.FlowID, contactID kernel.ContactID, startNodeID string) *FlowExecution {
	now := time.Now()
	return &FlowExecution{
		ID:            id,
		FlowID:        flowID,
		ContactID:     contactID,
		Status:        StatusProcessing,
		CurrentNodeID: startNodeID,
		Context:       NewContextData(),
		Version:       0,
		StartedAt:     now,
		UpdatedAt:     now,
	}
}

// ============================================================================
// Domain Methods
// ============================================================================

// SetVariable escribe una variable del contexto
func (e *FlowExecution) SetVariable(key string, value any) {
	if e.Context.Variables == nil {
		e.Context.Variables = make(map[string]any)
	}
	e.Context.Variables[key] = value
	e.UpdatedAt = time.Now()
}

// SetMetadata escribe una entrada de metadata (errores, avisos del operador)
func (e *FlowExecution) SetMetadata(key string, value any) {
	if e.Context.Metadata == nil {
		e.Context.Metadata = make(map[string]any)
	}
	e.Context.Metadata[key] = value
	e.UpdatedAt = time.Now()
}

// RecordNode agrega una entrada al historial de nodos ejecutados
func (e *FlowExecution) RecordNode(nodeID string, nodeType flow.NodeType) {
	e.Context.ExecutedNodes = append(e.Context.ExecutedNodes, ExecutedNode{
		NodeID:    nodeID,
		NodeType:  nodeType,
		Timestamp: time.Now(),
	})
	e.UpdatedAt = time.Now()
}

// RecordResponse registra una respuesta del contacto
func (e *FlowExecution) RecordResponse(nodeID, response string) {
	e.Context.UserResponses = append(e.Context.UserResponses, UserResponse{
		NodeID:    nodeID,
		Timestamp: time.Now(),
		Response:  response,
	})
	e.UpdatedAt = time.Now()
}

// Suspend deja la ejecución esperando input externo en el nodo actual
func (e *FlowExecution) Suspend() {
	e.Status = StatusWaiting
	e.UpdatedAt = time.Now()
}

// Resume vuelve a marcar la ejecución como en procesamiento
func (e *FlowExecution) Resume() {
	e.Status = StatusProcessing
	e.UpdatedAt = time.Now()
}

// Complete marca la ejecución como completada
func (e *FlowExecution) Complete() {
	now := time.Now()
	e.Status = StatusCompleted
	e.CompletedAt = &now
	e.UpdatedAt = now
}

// Abandon marca la ejecución como abandonada (error irrecuperable o
// cancelación del operador)
func (e *FlowExecution) Abandon(reason string) {
	now := time.Now()
	e.Status = StatusAbandoned
	e.CompletedAt = &now
	if reason != "" {
		e.SetMetadata("abandon_reason", reason)
	}
	e.UpdatedAt = now
}

// Reset rebobina la ejecución al nodo inicial preservando identidad y
// contacto. Limpia respuestas e historial; es la única mutación permitida
// sobre un estado terminal.
func (e *FlowExecution) Reset(startNodeID string) {
	e.Status = StatusProcessing
	e.CurrentNodeID = startNodeID
	e.Context = NewContextData()
	e.CompletedAt = nil
	e.UpdatedAt = time.Now()
}

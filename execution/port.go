package execution

import (
	"context"
	"time"

	"github.com/converzap/converzap/flow"
	"github.com/converzap/converzap/outbound"
	"github.com/converzap/converzap/pkg/kernel"
)

// ============================================================================
// Repository Interface
// ============================================================================

// Repository persistencia de ejecuciones. Es el único recurso mutable
// compartido entre ejecuciones concurrentes: Update aplica compare-and-set
// sobre Version y Create respeta el índice único parcial de una ejecución
// activa por contacto.
type Repository interface {
	// Create inserta una ejecución nueva. Retorna ErrDuplicateExecution si
	// el contacto ya tiene una ejecución activa.
	Create(ctx context.Context, exec *FlowExecution) error

	// Update persiste el estado con CAS sobre Version e incrementa Version.
	// Retorna ErrExecutionConflict si otro escritor ganó.
	Update(ctx context.Context, exec *FlowExecution) error

	FindByID(ctx context.Context, id kernel.ExecutionID) (*FlowExecution, error)

	// FindActiveByContact retorna la ejecución WAITING o PROCESSING más
	// recientemente actualizada del contacto, o ErrExecutionNotFound.
	FindActiveByContact(ctx context.Context, contactID kernel.ContactID) (*FlowExecution, error)

	List(ctx context.Context, req ListRequest) (ListResponse, error)

	// AppendMetadata escribe una entrada de metadata sin tocar Version; lo
	// usa la cola de salida para registrar fallos de entrega sin competir
	// con el loop del Runner.
	AppendMetadata(ctx context.Context, id kernel.ExecutionID, key string, value any) error
}

// ContactLocker serializa el resolve-or-create por contacto (§ dispatcher).
// Release siempre debe llamarse; el TTL protege contra procesos caídos.
type ContactLocker interface {
	Acquire(ctx context.Context, contactID kernel.ContactID, ttl time.Duration) (release func(), err error)
}

// ============================================================================
// Node Execution Interfaces
// ============================================================================

// StepSignal directiva del ejecutor de nodo hacia el Runner
type StepSignal string

const (
	SignalAdvance  StepSignal = "ADVANCE"
	SignalSuspend  StepSignal = "SUSPEND"
	SignalComplete StepSignal = "COMPLETE"
)

// StepOutcome resultado de ejecutar un nodo: un delta de contexto, una
// acción saliente opcional y la directiva de avance. Los ejecutores nunca
// escriben estado; el Runner aplica el delta de forma transaccional.
type StepOutcome struct {
	Variables  map[string]any
	Response   *UserResponse
	Action     *outbound.ActionRequest
	Signal     StepSignal
	RouteLabel string
	// WakeAfter > 0 pide al Runner programar un TimerFired para este nodo
	// antes de suspender (nodos TIMER y timeouts de ACTION).
	WakeAfter time.Duration
	Metadata  map[string]any
}

// StepContext vista de solo lectura que recibe cada ejecutor
type StepContext struct {
	Execution *FlowExecution
	Trigger   *TriggerInput
}

// NodeExecutor ejecuta un tipo de nodo
type NodeExecutor interface {
	Execute(ctx context.Context, node flow.Node, step StepContext) (*StepOutcome, error)
	Supports(nodeType flow.NodeType) bool
}

// ============================================================================
// External Call Adapters
// ============================================================================

// TimerScheduler cola persistente de despertares diferidos. Sobrevive
// reinicios; Cancel elimina los despertares pendientes de una ejecución
// cancelada o reseteada.
type TimerScheduler interface {
	Schedule(ctx context.Context, executionID kernel.ExecutionID, nodeID string, delay time.Duration) error
	Cancel(ctx context.Context, executionID kernel.ExecutionID) error
}

// HTTPCallResult respuesta de una llamada HTTP genérica
type HTTPCallResult struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
	JSON   any    `json:"json,omitempty"`
}

// HTTPCaller adapter de llamadas HTTP de nodos HTTP
type HTTPCaller interface {
	Request(ctx context.Context, method, url string, headers map[string]string, body map[string]any, timeout time.Duration) (*HTTPCallResult, error)
}

// CompletionRequest llamada de completion a un proveedor de IA
type CompletionRequest struct {
	Provider     string
	Model        string
	SystemPrompt string
	Prompt       string
	Temperature  *float32
	MaxTokens    *int
}

// CompletionProvider adapter de proveedores de IA; la selección de
// proveedor es por config de nodo.
type CompletionProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// ============================================================================
// Dispatcher Interface
// ============================================================================

// Dispatcher punto de entrada del motor
type Dispatcher interface {
	Handle(ctx context.Context, event InboundEvent) error
}

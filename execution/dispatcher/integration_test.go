package dispatcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/converzap/converzap/execution"
	"github.com/converzap/converzap/execution/nodeexec"
	"github.com/converzap/converzap/execution/runner"
	"github.com/converzap/converzap/flow"
	"github.com/converzap/converzap/outbound"
	"github.com/converzap/converzap/pkg/kernel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Concurrency-safe fakes for end-to-end tests over the real Runner
// ============================================================================

// safeExecRepo aplica el invariante de una ejecución activa por contacto, como
// el índice único parcial de Postgres. Un Create que ve otra activa con el
// lock de contacto tomado es una violación del dispatcher, no del repo.
type safeExecRepo struct {
	mu         sync.Mutex
	executions map[kernel.ExecutionID]*execution.FlowExecution
	creates    int
	violations int
}

func newSafeExecRepo() *safeExecRepo {
	return &safeExecRepo{executions: make(map[kernel.ExecutionID]*execution.FlowExecution)}
}

func (r *safeExecRepo) Create(_ context.Context, exec *execution.FlowExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.executions {
		if existing.ContactID == exec.ContactID && existing.Status.IsActive() {
			r.violations++
			return execution.ErrDuplicateExecution()
		}
	}
	r.executions[exec.ID] = exec
	r.creates++
	return nil
}

func (r *safeExecRepo) Update(_ context.Context, exec *execution.FlowExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	exec.Version++
	r.executions[exec.ID] = exec
	return nil
}

func (r *safeExecRepo) FindByID(_ context.Context, id kernel.ExecutionID) (*execution.FlowExecution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	exec, ok := r.executions[id]
	if !ok {
		return nil, execution.ErrExecutionNotFound()
	}
	return exec, nil
}

func (r *safeExecRepo) FindActiveByContact(_ context.Context, contactID kernel.ContactID) (*execution.FlowExecution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, exec := range r.executions {
		if exec.ContactID == contactID && exec.Status.IsActive() {
			return exec, nil
		}
	}
	return nil, execution.ErrExecutionNotFound()
}

func (r *safeExecRepo) List(_ context.Context, _ execution.ListRequest) (execution.ListResponse, error) {
	return execution.ListResponse{}, nil
}

func (r *safeExecRepo) AppendMetadata(_ context.Context, id kernel.ExecutionID, key string, value any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if exec, ok := r.executions[id]; ok {
		exec.SetMetadata(key, value)
	}
	return nil
}

func (r *safeExecRepo) activeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, exec := range r.executions {
		if exec.Status.IsActive() {
			count++
		}
	}
	return count
}

// mutexLocker serializa por contacto igual que el lock Redis de producción
type mutexLocker struct {
	mu    sync.Mutex
	locks map[kernel.ContactID]*sync.Mutex
}

func newMutexLocker() *mutexLocker {
	return &mutexLocker{locks: make(map[kernel.ContactID]*sync.Mutex)}
}

func (l *mutexLocker) Acquire(_ context.Context, contactID kernel.ContactID, _ time.Duration) (func(), error) {
	l.mu.Lock()
	lock, ok := l.locks[contactID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[contactID] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock, nil
}

type recordingQueue struct {
	mu      sync.Mutex
	actions []outbound.ActionRequest
}

func (q *recordingQueue) Enqueue(_ context.Context, req outbound.ActionRequest) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.actions = append(q.actions, req)
	return nil
}

type noopTimers struct{}

func (noopTimers) Schedule(_ context.Context, _ kernel.ExecutionID, _ string, _ time.Duration) error {
	return nil
}
func (noopTimers) Cancel(_ context.Context, _ kernel.ExecutionID) error { return nil }

type noopProvider struct{}

func (noopProvider) Complete(_ context.Context, _ execution.CompletionRequest) (string, error) {
	return "", nil
}

func newEngine(t *testing.T, flows ...*flow.Flow) (*Dispatcher, *safeExecRepo, *recordingQueue) {
	t.Helper()
	repo := newSafeExecRepo()
	queue := &recordingQueue{}
	registry := nodeexec.NewRegistry(nil, noopProvider{})
	run := runner.New(repo, registry, queue, noopTimers{})

	d := New(repo, newFakeFlowRepo(flows...), flow.NewTriggerIndex(), newMutexLocker(), run)
	require.NoError(t, d.RefreshTriggers(context.Background()))
	return d, repo, queue
}

// ============================================================================
// Tests
// ============================================================================

// El flujo de saludo completo: "oi" arranca, "Olá!" sale una vez, la ejecución
// espera la respuesta y "teste" la completa con la variable guardada.
func TestEndToEndGreetingConversation(t *testing.T) {
	fl := &flow.Flow{
		ID:             kernel.NewFlowID(uuid.New().String()),
		Name:           "saludo",
		TriggerType:    flow.TriggerKeywordExact,
		TriggerKeyword: "oi",
		IsActive:       true,
		Nodes: []flow.Node{
			{ID: "start", Type: flow.NodeTypeStart},
			{ID: "greet", Type: flow.NodeTypeMessage, Config: map[string]any{"text": "Olá!"}},
			{ID: "ask", Type: flow.NodeTypeAction, Config: map[string]any{"save_response_as": "q"}},
			{ID: "end", Type: flow.NodeTypeEnd},
		},
		Edges: []flow.Edge{
			{ID: "e1", Source: "start", Target: "greet"},
			{ID: "e2", Source: "greet", Target: "ask"},
			{ID: "e3", Source: "ask", Target: "end"},
		},
	}

	d, repo, queue := newEngine(t, fl)
	ctx := context.Background()

	require.NoError(t, d.Handle(ctx, execution.MessageReceived{ContactID: "contact-1", Text: "oi"}))

	exec, err := repo.FindActiveByContact(ctx, "contact-1")
	require.NoError(t, err)
	require.Equal(t, execution.StatusWaiting, exec.Status)
	require.Equal(t, "ask", exec.CurrentNodeID)

	require.NoError(t, d.Handle(ctx, execution.MessageReceived{ContactID: "contact-1", Text: "teste"}))

	final, err := repo.FindByID(ctx, exec.ID)
	require.NoError(t, err)
	require.Equal(t, execution.StatusCompleted, final.Status)
	require.Equal(t, "teste", final.Context.Variables["q"])

	require.Len(t, queue.actions, 1)
	require.Equal(t, "Olá!", queue.actions[0].Message.Text)
}

// Un disparo manual con nodo de entrada explícito salta el tramo anterior
// del grafo: nada de lo que está antes del nodo pedido se ejecuta.
func TestManualTriggerSkipsToExplicitNode(t *testing.T) {
	fl := &flow.Flow{
		ID:       kernel.NewFlowID(uuid.New().String()),
		Name:     "saludo",
		IsActive: true,
		Nodes: []flow.Node{
			{ID: "start", Type: flow.NodeTypeStart},
			{ID: "greet", Type: flow.NodeTypeMessage, Config: map[string]any{"text": "Olá!"}},
			{ID: "ask", Type: flow.NodeTypeAction, Config: map[string]any{"save_response_as": "q"}},
			{ID: "end", Type: flow.NodeTypeEnd},
		},
		Edges: []flow.Edge{
			{ID: "e1", Source: "start", Target: "greet"},
			{ID: "e2", Source: "greet", Target: "ask"},
			{ID: "e3", Source: "ask", Target: "end"},
		},
	}

	d, repo, queue := newEngine(t, fl)
	ctx := context.Background()

	event := execution.ManualTrigger{FlowID: fl.ID, ContactID: "contact-1", StartNodeID: "ask"}
	require.NoError(t, d.Handle(ctx, event))

	exec, err := repo.FindActiveByContact(ctx, "contact-1")
	require.NoError(t, err)
	require.Equal(t, execution.StatusWaiting, exec.Status)
	require.Equal(t, "ask", exec.CurrentNodeID)

	// El nodo MESSAGE previo al punto de entrada no corrió
	require.Empty(t, queue.actions)
}

// Invariante: a lo sumo una ejecución activa por contacto, aun con eventos
// concurrentes para el mismo contacto.
func TestSingleActiveExecutionUnderConcurrentEvents(t *testing.T) {
	// El grafo rebota entre dos nodos ACTION: la ejecución queda activa para
	// siempre y cada mensaje la retoma en vez de crear otra
	fl := &flow.Flow{
		ID:             kernel.NewFlowID(uuid.New().String()),
		Name:           "pingpong",
		TriggerType:    flow.TriggerAnyResponse,
		IsActive:       true,
		Nodes: []flow.Node{
			{ID: "start", Type: flow.NodeTypeStart},
			{ID: "a1", Type: flow.NodeTypeAction, Config: map[string]any{}},
			{ID: "a2", Type: flow.NodeTypeAction, Config: map[string]any{}},
		},
		Edges: []flow.Edge{
			{ID: "e1", Source: "start", Target: "a1"},
			{ID: "e2", Source: "a1", Target: "a2"},
			{ID: "e3", Source: "a2", Target: "a1"},
		},
	}

	d, repo, _ := newEngine(t, fl)

	const events = 25
	var wg sync.WaitGroup
	wg.Add(events)
	for i := 0; i < events; i++ {
		go func() {
			defer wg.Done()
			_ = d.Handle(context.Background(), execution.MessageReceived{
				ContactID: "contact-1",
				Text:      "hola",
			})
		}()
	}
	wg.Wait()

	require.Equal(t, 1, repo.creates)
	require.Equal(t, 0, repo.violations)
	require.Equal(t, 1, repo.activeCount())
}

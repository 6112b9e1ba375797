package dispatcher

import (
	"context"
	"testing"
	"time"

	"github.com/converzap/converzap/execution"
	"github.com/converzap/converzap/flow"
	"github.com/converzap/converzap/pkg/kernel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Fakes
// ============================================================================

type fakeExecRepo struct {
	executions map[kernel.ExecutionID]*execution.FlowExecution
	created    []*execution.FlowExecution
	metadata   map[string]any
	createErr  error
}

func newFakeExecRepo() *fakeExecRepo {
	return &fakeExecRepo{
		executions: make(map[kernel.ExecutionID]*execution.FlowExecution),
		metadata:   make(map[string]any),
	}
}

func (r *fakeExecRepo) Create(_ context.Context, exec *execution.FlowExecution) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.executions[exec.ID] = exec
	r.created = append(r.created, exec)
	return nil
}

func (r *fakeExecRepo) Update(_ context.Context, exec *execution.FlowExecution) error {
	exec.Version++
	r.executions[exec.ID] = exec
	return nil
}

func (r *fakeExecRepo) FindByID(_ context.Context, id kernel.ExecutionID) (*execution.FlowExecution, error) {
	exec, ok := r.executions[id]
	if !ok {
		return nil, execution.ErrExecutionNotFound()
	}
	return exec, nil
}

func (r *fakeExecRepo) FindActiveByContact(_ context.Context, contactID kernel.ContactID) (*execution.FlowExecution, error) {
	for _, exec := range r.executions {
		if exec.ContactID == contactID && exec.Status.IsActive() {
			return exec, nil
		}
	}
	return nil, execution.ErrExecutionNotFound()
}

func (r *fakeExecRepo) List(_ context.Context, _ execution.ListRequest) (execution.ListResponse, error) {
	return execution.ListResponse{}, nil
}

func (r *fakeExecRepo) AppendMetadata(_ context.Context, _ kernel.ExecutionID, key string, value any) error {
	r.metadata[key] = value
	return nil
}

type fakeFlowRepo struct {
	flows map[kernel.FlowID]*flow.Flow
}

func newFakeFlowRepo(flows ...*flow.Flow) *fakeFlowRepo {
	r := &fakeFlowRepo{flows: make(map[kernel.FlowID]*flow.Flow)}
	for _, f := range flows {
		r.flows[f.ID] = f
	}
	return r
}

func (r *fakeFlowRepo) Save(_ context.Context, f flow.Flow) error {
	r.flows[f.ID] = &f
	return nil
}

func (r *fakeFlowRepo) FindByID(_ context.Context, id kernel.FlowID) (*flow.Flow, error) {
	f, ok := r.flows[id]
	if !ok {
		return nil, flow.ErrFlowNotFound()
	}
	return f, nil
}

func (r *fakeFlowRepo) FindActive(_ context.Context) ([]*flow.Flow, error) {
	var out []*flow.Flow
	for _, f := range r.flows {
		if f.IsActive {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *fakeFlowRepo) List(_ context.Context, _ flow.ListRequest) (flow.ListResponse, error) {
	return flow.ListResponse{}, nil
}

func (r *fakeFlowRepo) Delete(_ context.Context, id kernel.FlowID) error {
	delete(r.flows, id)
	return nil
}

type fakeLocker struct {
	acquisitions int
}

func (l *fakeLocker) Acquire(_ context.Context, _ kernel.ContactID, _ time.Duration) (func(), error) {
	l.acquisitions++
	return func() {}, nil
}

type advanceCall struct {
	exec    *execution.FlowExecution
	trigger *execution.TriggerInput
}

type fakeAdvancer struct {
	calls []advanceCall
}

func (a *fakeAdvancer) Advance(_ context.Context, exec *execution.FlowExecution, _ *flow.Flow, trigger *execution.TriggerInput) error {
	a.calls = append(a.calls, advanceCall{exec: exec, trigger: trigger})
	return nil
}

// ============================================================================
// Harness
// ============================================================================

func welcomeFlow() *flow.Flow {
	return &flow.Flow{
		ID:             kernel.NewFlowID(uuid.New().String()),
		Name:           "bienvenida",
		TriggerType:    flow.TriggerKeywordExact,
		TriggerKeyword: "hola",
		IsActive:       true,
		Nodes: []flow.Node{
			{ID: "start", Type: flow.NodeTypeStart},
			{ID: "ask", Type: flow.NodeTypeAction, Config: map[string]any{}},
		},
		Edges: []flow.Edge{
			{ID: "e1", Source: "start", Target: "ask"},
		},
	}
}

type harness struct {
	dispatcher *Dispatcher
	execRepo   *fakeExecRepo
	flowRepo   *fakeFlowRepo
	advancer   *fakeAdvancer
	locker     *fakeLocker
}

func newHarness(t *testing.T, flows ...*flow.Flow) *harness {
	t.Helper()
	h := &harness{
		execRepo: newFakeExecRepo(),
		flowRepo: newFakeFlowRepo(flows...),
		advancer: &fakeAdvancer{},
		locker:   &fakeLocker{},
	}
	h.dispatcher = New(h.execRepo, h.flowRepo, flow.NewTriggerIndex(), h.locker, h.advancer)
	require.NoError(t, h.dispatcher.RefreshTriggers(context.Background()))
	return h
}

// ============================================================================
// Tests
// ============================================================================

func TestMessageStartsFlowByKeyword(t *testing.T) {
	fl := welcomeFlow()
	h := newHarness(t, fl)

	event := execution.MessageReceived{ContactID: "contact-1", Text: "  Hola "}
	require.NoError(t, h.dispatcher.Handle(context.Background(), event))

	require.Len(t, h.execRepo.created, 1)
	created := h.execRepo.created[0]
	require.Equal(t, fl.ID, created.FlowID)
	require.Equal(t, "start", created.CurrentNodeID)

	require.Len(t, h.advancer.calls, 1)
	require.Equal(t, execution.TriggerUser, h.advancer.calls[0].trigger.Kind)
	require.Equal(t, "  Hola ", h.advancer.calls[0].trigger.Text)
	require.Equal(t, 1, h.locker.acquisitions)
}

func TestMessageWithoutMatchIsDropped(t *testing.T) {
	h := newHarness(t, welcomeFlow())

	event := execution.MessageReceived{ContactID: "contact-1", Text: "nada que ver"}
	require.NoError(t, h.dispatcher.Handle(context.Background(), event))

	require.Empty(t, h.execRepo.created)
	require.Empty(t, h.advancer.calls)
}

func TestAmbiguousTriggerDoesNotFailTheEvent(t *testing.T) {
	a := welcomeFlow()
	b := welcomeFlow()
	h := newHarness(t, a, b)

	event := execution.MessageReceived{ContactID: "contact-1", Text: "hola"}
	require.NoError(t, h.dispatcher.Handle(context.Background(), event))

	require.Empty(t, h.execRepo.created)
	require.Empty(t, h.advancer.calls)
}

func TestMessageResumesExecutionWaitingAtAction(t *testing.T) {
	fl := welcomeFlow()
	h := newHarness(t, fl)

	exec := execution.New(kernel.NewExecutionID(uuid.New().String()), fl.ID, "contact-1", "ask")
	exec.Suspend()
	h.execRepo.executions[exec.ID] = exec

	event := execution.MessageReceived{ContactID: "contact-1", Text: "mi respuesta"}
	require.NoError(t, h.dispatcher.Handle(context.Background(), event))

	require.Len(t, h.advancer.calls, 1)
	require.Equal(t, exec.ID, h.advancer.calls[0].exec.ID)
	require.Equal(t, execution.TriggerUser, h.advancer.calls[0].trigger.Kind)

	// No se creó una ejecución nueva
	require.Empty(t, h.execRepo.created)
}

func TestUnsolicitedMessageIsRecordedAndDropped(t *testing.T) {
	fl := welcomeFlow()
	h := newHarness(t, fl)

	// La ejecución espera en el START (no es un nodo que consuma input)
	exec := execution.New(kernel.NewExecutionID(uuid.New().String()), fl.ID, "contact-1", "start")
	exec.Suspend()
	require.NoError(t, h.execRepo.Create(context.Background(), exec))

	event := execution.MessageReceived{ContactID: "contact-1", Text: "hola?"}
	require.NoError(t, h.dispatcher.Handle(context.Background(), event))

	require.Empty(t, h.advancer.calls)
	require.Equal(t, "hola?", h.execRepo.metadata["unsolicited_message"])
}

func TestManualTriggerStartsFlow(t *testing.T) {
	fl := welcomeFlow()
	h := newHarness(t, fl)

	event := execution.ManualTrigger{FlowID: fl.ID, ContactID: "contact-9"}
	require.NoError(t, h.dispatcher.Handle(context.Background(), event))

	require.Len(t, h.execRepo.created, 1)
	require.Len(t, h.advancer.calls, 1)
	require.Equal(t, execution.TriggerManual, h.advancer.calls[0].trigger.Kind)
}

func TestManualTriggerStartsAtExplicitNode(t *testing.T) {
	fl := welcomeFlow()
	h := newHarness(t, fl)

	event := execution.ManualTrigger{FlowID: fl.ID, ContactID: "contact-9", StartNodeID: "ask"}
	require.NoError(t, h.dispatcher.Handle(context.Background(), event))

	require.Len(t, h.execRepo.created, 1)
	require.Equal(t, "ask", h.execRepo.created[0].CurrentNodeID)
	require.Len(t, h.advancer.calls, 1)
}

func TestManualTriggerRejectsUnknownStartNode(t *testing.T) {
	fl := welcomeFlow()
	h := newHarness(t, fl)

	event := execution.ManualTrigger{FlowID: fl.ID, ContactID: "contact-9", StartNodeID: "ghost"}
	require.Error(t, h.dispatcher.Handle(context.Background(), event))
	require.Empty(t, h.execRepo.created)
	require.Empty(t, h.advancer.calls)
}

func TestManualTriggerRejectsInactiveFlow(t *testing.T) {
	fl := welcomeFlow()
	fl.IsActive = false
	h := newHarness(t, fl)

	event := execution.ManualTrigger{FlowID: fl.ID, ContactID: "contact-9"}
	require.Error(t, h.dispatcher.Handle(context.Background(), event))
	require.Empty(t, h.execRepo.created)
}

func TestDuplicateExecutionIsDroppedSilently(t *testing.T) {
	fl := welcomeFlow()
	h := newHarness(t, fl)
	h.execRepo.createErr = execution.ErrDuplicateExecution()

	event := execution.ManualTrigger{FlowID: fl.ID, ContactID: "contact-1"}
	require.NoError(t, h.dispatcher.Handle(context.Background(), event))
	require.Empty(t, h.advancer.calls)
}

func TestTimerFiredResumesWaitingExecution(t *testing.T) {
	fl := welcomeFlow()
	h := newHarness(t, fl)

	exec := execution.New(kernel.NewExecutionID(uuid.New().String()), fl.ID, "contact-1", "ask")
	exec.Suspend()
	require.NoError(t, h.execRepo.Create(context.Background(), exec))

	event := execution.TimerFired{ExecutionID: exec.ID, NodeID: "ask"}
	require.NoError(t, h.dispatcher.Handle(context.Background(), event))

	require.Len(t, h.advancer.calls, 1)
	require.Equal(t, execution.TriggerTimer, h.advancer.calls[0].trigger.Kind)
	require.Equal(t, "ask", h.advancer.calls[0].trigger.NodeID)
}

func TestStaleTimerIsDropped(t *testing.T) {
	fl := welcomeFlow()
	h := newHarness(t, fl)

	exec := execution.New(kernel.NewExecutionID(uuid.New().String()), fl.ID, "contact-1", "ask")
	exec.Suspend()
	require.NoError(t, h.execRepo.Create(context.Background(), exec))

	t.Run("node mismatch", func(t *testing.T) {
		event := execution.TimerFired{ExecutionID: exec.ID, NodeID: "other-node"}
		require.NoError(t, h.dispatcher.Handle(context.Background(), event))
		require.Empty(t, h.advancer.calls)
	})

	t.Run("execution already terminal", func(t *testing.T) {
		exec.Complete()
		event := execution.TimerFired{ExecutionID: exec.ID, NodeID: "ask"}
		require.NoError(t, h.dispatcher.Handle(context.Background(), event))
		require.Empty(t, h.advancer.calls)
	})

	t.Run("unknown execution", func(t *testing.T) {
		event := execution.TimerFired{ExecutionID: kernel.NewExecutionID(uuid.New().String()), NodeID: "ask"}
		require.NoError(t, h.dispatcher.Handle(context.Background(), event))
		require.Empty(t, h.advancer.calls)
	})
}

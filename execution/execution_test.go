package execution

import (
	"testing"

	"github.com/converzap/converzap/flow"
	"github.com/converzap/converzap/pkg/kernel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestExecution() *FlowExecution {
	return New(kernel.NewExecutionID(uuid.New().String()), kernel.NewFlowID(uuid.New().String()), kernel.ContactID("contact-1"), "start-1")
}

func TestNewExecution(t *testing.T) {
	exec := newTestExecution()

	require.Equal(t, StatusProcessing, exec.Status)
	require.Equal(t, "start-1", exec.CurrentNodeID)
	require.Equal(t, 0, exec.Version)
	require.NotNil(t, exec.Context.Variables)
	require.Empty(t, exec.Context.ExecutedNodes)
	require.Nil(t, exec.CompletedAt)
}

func TestStatusTransitions(t *testing.T) {
	exec := newTestExecution()

	exec.Suspend()
	require.Equal(t, StatusWaiting, exec.Status)
	require.True(t, exec.Status.IsActive())

	exec.Resume()
	require.Equal(t, StatusProcessing, exec.Status)

	exec.Complete()
	require.Equal(t, StatusCompleted, exec.Status)
	require.True(t, exec.Status.IsTerminal())
	require.NotNil(t, exec.CompletedAt)
}

func TestAbandonRecordsReason(t *testing.T) {
	exec := newTestExecution()

	exec.Abandon("cancelled by operator")

	require.Equal(t, StatusAbandoned, exec.Status)
	require.True(t, exec.Status.IsTerminal())
	require.Equal(t, "cancelled by operator", exec.Context.Metadata["abandon_reason"])
	require.NotNil(t, exec.CompletedAt)
}

func TestContextAccumulation(t *testing.T) {
	exec := newTestExecution()

	exec.SetVariable("name", "Ana")
	exec.RecordNode("start-1", flow.NodeTypeStart)
	exec.RecordNode("msg-1", flow.NodeTypeMessage)
	exec.RecordResponse("action-1", "sí quiero")

	require.Equal(t, "Ana", exec.Context.Variables["name"])
	require.Len(t, exec.Context.ExecutedNodes, 2)
	require.Equal(t, "msg-1", exec.Context.ExecutedNodes[1].NodeID)
	require.Len(t, exec.Context.UserResponses, 1)
	require.Equal(t, "sí quiero", exec.Context.UserResponses[0].Response)
}

func TestResetPreservesIdentityAndClearsContext(t *testing.T) {
	exec := newTestExecution()
	id := exec.ID
	contactID := exec.ContactID
	flowID := exec.FlowID

	exec.SetVariable("name", "Ana")
	exec.RecordNode("msg-1", flow.NodeTypeMessage)
	exec.RecordResponse("action-1", "hola")
	exec.CurrentNodeID = "end-1"
	exec.Complete()

	exec.Reset("start-1")

	require.Equal(t, id, exec.ID)
	require.Equal(t, contactID, exec.ContactID)
	require.Equal(t, flowID, exec.FlowID)
	require.Equal(t, StatusProcessing, exec.Status)
	require.Equal(t, "start-1", exec.CurrentNodeID)
	require.Empty(t, exec.Context.Variables)
	require.Empty(t, exec.Context.ExecutedNodes)
	require.Empty(t, exec.Context.UserResponses)
	require.Nil(t, exec.CompletedAt)
}

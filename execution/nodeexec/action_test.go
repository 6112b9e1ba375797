package nodeexec

import (
	"context"
	"testing"
	"time"

	"github.com/converzap/converzap/execution"
	"github.com/converzap/converzap/flow"
	"github.com/stretchr/testify/require"
)

func actionNode(config map[string]any) flow.Node {
	return flow.Node{ID: "action-1", Type: flow.NodeTypeAction, Config: config}
}

func TestActionExecutorFirstVisitSuspends(t *testing.T) {
	executor := NewActionExecutor()
	step := stepWithVariables(nil)

	outcome, err := executor.Execute(context.Background(), actionNode(map[string]any{}), step)
	require.NoError(t, err)
	require.Equal(t, execution.SignalSuspend, outcome.Signal)
	require.Zero(t, outcome.WakeAfter)
}

func TestActionExecutorFirstVisitWithTimeout(t *testing.T) {
	executor := NewActionExecutor()
	step := stepWithVariables(nil)

	node := actionNode(map[string]any{"timeout_seconds": 300})
	outcome, err := executor.Execute(context.Background(), node, step)
	require.NoError(t, err)
	require.Equal(t, execution.SignalSuspend, outcome.Signal)
	require.Equal(t, 5*time.Minute, outcome.WakeAfter)
}

func TestActionExecutorConsumesUserResponse(t *testing.T) {
	executor := NewActionExecutor()
	step := stepWithVariables(nil)
	step.Trigger = &execution.TriggerInput{Kind: execution.TriggerUser, Text: "  sí quiero  "}

	node := actionNode(map[string]any{"save_response_as": "answer"})
	outcome, err := executor.Execute(context.Background(), node, step)
	require.NoError(t, err)
	require.Equal(t, execution.SignalAdvance, outcome.Signal)
	require.NotNil(t, outcome.Response)
	require.Equal(t, "action-1", outcome.Response.NodeID)
	require.Equal(t, "  sí quiero  ", outcome.Response.Response)
	require.Equal(t, "  sí quiero  ", outcome.Variables["answer"])
}

func TestActionExecutorTimeoutAdvancesOnTimeoutRoute(t *testing.T) {
	executor := NewActionExecutor()
	step := stepWithVariables(nil)
	step.Trigger = &execution.TriggerInput{Kind: execution.TriggerTimer, NodeID: "action-1"}

	outcome, err := executor.Execute(context.Background(), actionNode(map[string]any{}), step)
	require.NoError(t, err)
	require.Equal(t, execution.SignalAdvance, outcome.Signal)
	require.Equal(t, TimeoutRouteLabel, outcome.RouteLabel)
	require.Nil(t, outcome.Response)
}

func TestActionExecutorIgnoresForeignTimer(t *testing.T) {
	executor := NewActionExecutor()
	step := stepWithVariables(nil)
	step.Trigger = &execution.TriggerInput{Kind: execution.TriggerTimer, NodeID: "other-node"}

	outcome, err := executor.Execute(context.Background(), actionNode(map[string]any{}), step)
	require.NoError(t, err)
	require.Equal(t, execution.SignalSuspend, outcome.Signal)
}

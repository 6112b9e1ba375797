package nodeexec

import (
	"context"
	"testing"

	"github.com/converzap/converzap/execution"
	"github.com/converzap/converzap/flow"
	"github.com/converzap/converzap/pkg/kernel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func stepWithVariables(vars map[string]any) execution.StepContext {
	exec := execution.New(kernel.NewExecutionID(uuid.New().String()), kernel.NewFlowID(uuid.New().String()), "contact-1", "start")
	for k, v := range vars {
		exec.SetVariable(k, v)
	}
	return execution.StepContext{Execution: exec}
}

func conditionNode(variable string, operator flow.ConditionOperator, value string) flow.Node {
	return flow.Node{
		ID:   "cond-1",
		Type: flow.NodeTypeCondition,
		Config: map[string]any{
			"variable": variable,
			"operator": string(operator),
			"value":    value,
		},
	}
}

func TestConditionExecutor(t *testing.T) {
	executor := NewConditionExecutor()

	for name, tc := range map[string]struct {
		vars      map[string]any
		node      flow.Node
		wantLabel string
	}{
		"equals case insensitive": {
			map[string]any{"answer": "SÍ"},
			conditionNode("answer", flow.OperatorEquals, "sí"),
			"true",
		},
		"equals mismatch": {
			map[string]any{"answer": "no"},
			conditionNode("answer", flow.OperatorEquals, "sí"),
			"false",
		},
		"contains": {
			map[string]any{"answer": "quiero Cancelar todo"},
			conditionNode("answer", flow.OperatorContains, "cancelar"),
			"true",
		},
		"greater than numeric string": {
			map[string]any{"age": "21"},
			conditionNode("age", flow.OperatorGreaterThan, "18"),
			"true",
		},
		"greater than json float": {
			map[string]any{"age": float64(15)},
			conditionNode("age", flow.OperatorGreaterThan, "18"),
			"false",
		},
		"less than": {
			map[string]any{"total": 49.9},
			conditionNode("total", flow.OperatorLessThan, "50"),
			"true",
		},
		"non-numeric comparison is false": {
			map[string]any{"age": "veinte"},
			conditionNode("age", flow.OperatorGreaterThan, "18"),
			"false",
		},
		"absent variable is false": {
			map[string]any{},
			conditionNode("missing", flow.OperatorEquals, ""),
			"false",
		},
		"dotted path into http result": {
			map[string]any{"http_response": map[string]any{"status": float64(200)}},
			conditionNode("http_response.status", flow.OperatorEquals, "200"),
			"true",
		},
	} {
		t.Run(name, func(t *testing.T) {
			outcome, err := executor.Execute(context.Background(), tc.node, stepWithVariables(tc.vars))
			require.NoError(t, err)
			require.Equal(t, execution.SignalAdvance, outcome.Signal)
			require.Equal(t, tc.wantLabel, outcome.RouteLabel)
		})
	}
}

func TestConditionExecutorInvalidConfig(t *testing.T) {
	executor := NewConditionExecutor()
	node := flow.Node{ID: "cond-1", Type: flow.NodeTypeCondition, Config: map[string]any{
		"variable": "x",
		"operator": "BETWEEN",
	}}

	_, err := executor.Execute(context.Background(), node, stepWithVariables(nil))
	require.Error(t, err)
}

package nodeexec

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/converzap/converzap/execution"
	"github.com/converzap/converzap/flow"
)

// ConditionExecutor nodo CONDITION: compara una variable del contexto contra
// un valor fijo y rutea por la arista "true" o "false". Una variable ausente
// evalúa siempre a falso.
type ConditionExecutor struct{}

var _ execution.NodeExecutor = (*ConditionExecutor)(nil)

func NewConditionExecutor() *ConditionExecutor {
	return &ConditionExecutor{}
}

func (e *ConditionExecutor) Execute(ctx context.Context, node flow.Node, step execution.StepContext) (*execution.StepOutcome, error) {
	config, err := flow.ExtractConditionConfig(node.Config)
	if err != nil {
		return nil, err
	}

	value, found := execution.LookupPath(step.Execution.Context.Variables, config.Variable)

	result := false
	if found {
		result = evaluate(value, config.Operator, config.Value)
	}

	label := "false"
	if result {
		label = "true"
	}

	log.Printf("🔀 Condition node %s: %s %s %q => %s",
		node.ID, config.Variable, config.Operator, config.Value, label)

	return &execution.StepOutcome{
		Signal:     execution.SignalAdvance,
		RouteLabel: label,
	}, nil
}

func (e *ConditionExecutor) Supports(nodeType flow.NodeType) bool {
	return nodeType == flow.NodeTypeCondition
}

func evaluate(value any, operator flow.ConditionOperator, expected string) bool {
	actual := toComparableString(value)

	switch operator {
	case flow.OperatorEquals:
		return strings.EqualFold(strings.TrimSpace(actual), strings.TrimSpace(expected))
	case flow.OperatorContains:
		return strings.Contains(strings.ToLower(actual), strings.ToLower(strings.TrimSpace(expected)))
	case flow.OperatorGreaterThan:
		a, b, ok := toNumericPair(value, expected)
		return ok && a > b
	case flow.OperatorLessThan:
		a, b, ok := toNumericPair(value, expected)
		return ok && a < b
	default:
		return false
	}
}

func toComparableString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// toNumericPair intenta coercionar ambos lados a número; si alguno no lo es,
// la comparación numérica evalúa a falso.
func toNumericPair(value any, expected string) (float64, float64, bool) {
	var a float64
	switch v := value.(type) {
	case float64:
		a = v
	case int:
		a = float64(v)
	case int64:
		a = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, 0, false
		}
		a = parsed
	default:
		return 0, 0, false
	}

	b, err := strconv.ParseFloat(strings.TrimSpace(expected), 64)
	if err != nil {
		return 0, 0, false
	}
	return a, b, true
}

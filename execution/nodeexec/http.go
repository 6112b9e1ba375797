package nodeexec

import (
	"context"
	"log"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/converzap/converzap/execution"
	"github.com/converzap/converzap/flow"
)

const defaultHTTPResultVariable = "http_response"

// HTTPExecutor nodo HTTP: llamada externa genérica con URL, headers y body
// interpolados. El resultado (status, body, json) queda en el contexto bajo
// save_response_as. Un fallo de transporte es recuperable: el Runner lo
// registra en metadata y avanza igual.
type HTTPExecutor struct {
	caller execution.HTTPCaller
}

var _ execution.NodeExecutor = (*HTTPExecutor)(nil)

func NewHTTPExecutor(caller execution.HTTPCaller) *HTTPExecutor {
	return &HTTPExecutor{caller: caller}
}

func (e *HTTPExecutor) Execute(ctx context.Context, node flow.Node, step execution.StepContext) (*execution.StepOutcome, error) {
	config, err := flow.ExtractHTTPConfig(node.Config)
	if err != nil {
		return nil, err
	}

	variables := step.Execution.Context.Variables
	url := execution.Interpolate(config.URL, variables)
	headers := execution.InterpolateHeaders(config.Headers, variables)
	body := execution.InterpolateMap(config.Body, variables)

	log.Printf("🌐 HTTP node %s calling %s %s", node.ID, config.GetMethod(), url)

	result, err := e.caller.Request(ctx, config.GetMethod(), url, headers, body, config.GetTimeout())
	if err != nil {
		return nil, errx.Wrap(err, "HTTP node call failed", errx.TypeInternal).
			WithDetail("node_id", node.ID).
			WithDetail("url", url)
	}

	saveAs := config.SaveResponseAs
	if saveAs == "" {
		saveAs = defaultHTTPResultVariable
	}

	resultMap := map[string]any{
		"status": result.Status,
		"body":   result.Body,
	}
	if result.JSON != nil {
		resultMap["json"] = result.JSON
	}

	log.Printf("✅ HTTP node %s got status %d", node.ID, result.Status)

	return &execution.StepOutcome{
		Signal:    execution.SignalAdvance,
		Variables: map[string]any{saveAs: resultMap},
	}, nil
}

func (e *HTTPExecutor) Supports(nodeType flow.NodeType) bool {
	return nodeType == flow.NodeTypeHTTP
}

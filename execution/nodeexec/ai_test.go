package nodeexec

import (
	"context"
	"testing"

	"github.com/converzap/converzap/execution"
	"github.com/converzap/converzap/flow"
	"github.com/stretchr/testify/require"
)

// fakeProvider responde en orden las respuestas cargadas y registra los
// requests que recibió.
type fakeProvider struct {
	responses []string
	requests  []execution.CompletionRequest
	err       error
}

func (p *fakeProvider) Complete(_ context.Context, req execution.CompletionRequest) (string, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return "", p.err
	}
	if len(p.responses) == 0 {
		return "", nil
	}
	response := p.responses[0]
	p.responses = p.responses[1:]
	return response, nil
}

func aiNode(config map[string]any) flow.Node {
	return flow.Node{ID: "ai-1", Type: flow.NodeTypeAI, Config: config}
}

func TestAIExecutorSavesResponse(t *testing.T) {
	provider := &fakeProvider{responses: []string{"Claro, te ayudo con tu pedido"}}
	executor := NewAIExecutor(provider)

	step := stepWithVariables(map[string]any{"name": "Ana"})
	node := aiNode(map[string]any{
		"provider":         "openai",
		"prompt":           "Responde a {{name}}",
		"save_response_as": "reply",
	})

	outcome, err := executor.Execute(context.Background(), node, step)
	require.NoError(t, err)
	require.Equal(t, execution.SignalAdvance, outcome.Signal)
	require.Equal(t, "Claro, te ayudo con tu pedido", outcome.Variables["reply"])
	require.Empty(t, outcome.RouteLabel)

	// El prompt llega interpolado al proveedor
	require.Equal(t, "Responde a Ana", provider.requests[0].Prompt)
}

func TestAIExecutorSentimentClassification(t *testing.T) {
	for name, tc := range map[string]struct {
		completion string
		wantLabel  string
	}{
		"positive":           {"sí claro, perfecto, gracias", SentimentPositive},
		"negative":           {"no, es terrible, quiero cancelar", SentimentNegative},
		"neutral no matches": {"mañana te aviso", SentimentNeutral},
	} {
		t.Run(name, func(t *testing.T) {
			provider := &fakeProvider{responses: []string{tc.completion}}
			executor := NewAIExecutor(provider)

			node := aiNode(map[string]any{
				"provider":            "openai",
				"prompt":              "analiza",
				"classification_mode": "SENTIMENT",
			})

			outcome, err := executor.Execute(context.Background(), node, stepWithVariables(nil))
			require.NoError(t, err)
			require.Equal(t, tc.wantLabel, outcome.RouteLabel)
		})
	}
}

func TestAIExecutorKeywordClassification(t *testing.T) {
	provider := &fakeProvider{responses: []string{"el cliente quiere soporte técnico urgente"}}
	executor := NewAIExecutor(provider)

	node := aiNode(map[string]any{
		"provider":            "openai",
		"prompt":              "clasifica",
		"classification_mode": "KEYWORDS",
		"routes": []any{
			map[string]any{"label": "ventas", "keywords": []any{"comprar", "precio"}},
			map[string]any{"label": "soporte", "keywords": []any{"soporte", "ayuda"}},
		},
	})

	outcome, err := executor.Execute(context.Background(), node, stepWithVariables(nil))
	require.NoError(t, err)
	require.Equal(t, "soporte", outcome.RouteLabel)
}

func TestAIExecutorKeywordClassificationNoMatch(t *testing.T) {
	provider := &fakeProvider{responses: []string{"texto sin categoría"}}
	executor := NewAIExecutor(provider)

	node := aiNode(map[string]any{
		"provider":            "openai",
		"prompt":              "clasifica",
		"classification_mode": "KEYWORDS",
		"routes": []any{
			map[string]any{"label": "ventas", "keywords": []any{"comprar"}},
		},
	})

	outcome, err := executor.Execute(context.Background(), node, stepWithVariables(nil))
	require.NoError(t, err)
	require.Empty(t, outcome.RouteLabel)
}

func TestAIExecutorCustomClassification(t *testing.T) {
	// Primera completion es la respuesta, la segunda elige el label
	provider := &fakeProvider{responses: []string{"quiero devolver mi compra", " Devoluciones "}}
	executor := NewAIExecutor(provider)

	node := aiNode(map[string]any{
		"provider":            "openai",
		"prompt":              "responde",
		"classification_mode": "CUSTOM",
		"routes": []any{
			map[string]any{"label": "ventas"},
			map[string]any{"label": "devoluciones"},
		},
	})

	outcome, err := executor.Execute(context.Background(), node, stepWithVariables(nil))
	require.NoError(t, err)
	require.Equal(t, "devoluciones", outcome.RouteLabel)
	require.Len(t, provider.requests, 2)
}

func TestAIExecutorProviderFailure(t *testing.T) {
	provider := &fakeProvider{err: context.DeadlineExceeded}
	executor := NewAIExecutor(provider)

	node := aiNode(map[string]any{"provider": "openai", "prompt": "hola"})

	_, err := executor.Execute(context.Background(), node, stepWithVariables(nil))
	require.Error(t, err)
}

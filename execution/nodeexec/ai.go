package nodeexec

import (
	"context"
	"log"
	"strings"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/converzap/converzap/execution"
	"github.com/converzap/converzap/flow"
)

const defaultAIResultVariable = "ai_response"

// Labels de sentimiento para el modo SENTIMENT
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

var defaultPositiveKeywords = []string{"sí", "si", "yes", "ok", "claro", "bueno", "genial", "gracias", "perfecto", "excelente"}
var defaultNegativeKeywords = []string{"no", "nunca", "malo", "mal", "terrible", "cancelar", "basta", "error"}

// AIExecutor nodo AI: completion de un proveedor con clasificación opcional
// de la respuesta para seleccionar la arista de salida. Un fallo del
// proveedor es recuperable igual que en el nodo HTTP.
type AIExecutor struct {
	provider execution.CompletionProvider
}

var _ execution.NodeExecutor = (*AIExecutor)(nil)

func NewAIExecutor(provider execution.CompletionProvider) *AIExecutor {
	return &AIExecutor{provider: provider}
}

func (e *AIExecutor) Execute(ctx context.Context, node flow.Node, step execution.StepContext) (*execution.StepOutcome, error) {
	config, err := flow.ExtractAIConfig(node.Config)
	if err != nil {
		return nil, err
	}

	variables := step.Execution.Context.Variables
	prompt := execution.Interpolate(config.Prompt, variables)
	systemPrompt := execution.Interpolate(config.SystemPrompt, variables)

	log.Printf("🤖 AI node %s calling provider %s (model: %s)", node.ID, config.Provider, config.Model)

	completion, err := e.provider.Complete(ctx, execution.CompletionRequest{
		Provider:     config.Provider,
		Model:        config.Model,
		SystemPrompt: systemPrompt,
		Prompt:       prompt,
		Temperature:  config.Temperature,
		MaxTokens:    config.MaxTokens,
	})
	if err != nil {
		return nil, errx.Wrap(err, "AI completion failed", errx.TypeInternal).
			WithDetail("node_id", node.ID).
			WithDetail("provider", config.Provider)
	}

	saveAs := config.SaveResponseAs
	if saveAs == "" {
		saveAs = defaultAIResultVariable
	}

	outcome := &execution.StepOutcome{
		Signal:    execution.SignalAdvance,
		Variables: map[string]any{saveAs: completion},
	}

	if config.ClassificationMode != "" {
		label, err := e.classify(ctx, config, completion)
		if err != nil {
			return nil, err
		}
		outcome.RouteLabel = label
		log.Printf("🏷️  AI node %s classified response as %q", node.ID, label)
	}

	return outcome, nil
}

func (e *AIExecutor) Supports(nodeType flow.NodeType) bool {
	return nodeType == flow.NodeTypeAI
}

func (e *AIExecutor) classify(ctx context.Context, config *flow.AIConfig, completion string) (string, error) {
	switch config.ClassificationMode {
	case flow.ClassifySentiment:
		return classifySentiment(completion, config.PositiveKeywords, config.NegativeKeywords), nil
	case flow.ClassifyKeywords:
		return classifyByKeywords(completion, config.Routes), nil
	case flow.ClassifyCustom:
		return e.classifyCustom(ctx, config, completion)
	default:
		return "", nil
	}
}

// classifySentiment cuenta ocurrencias de keywords positivas y negativas en
// el texto. Empate o cero ocurrencias clasifica como neutral.
func classifySentiment(text string, positive, negative []string) string {
	if len(positive) == 0 {
		positive = defaultPositiveKeywords
	}
	if len(negative) == 0 {
		negative = defaultNegativeKeywords
	}

	lowered := strings.ToLower(text)
	positiveCount := countOccurrences(lowered, positive)
	negativeCount := countOccurrences(lowered, negative)

	switch {
	case positiveCount > negativeCount:
		return SentimentPositive
	case negativeCount > positiveCount:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

func countOccurrences(text string, keywords []string) int {
	count := 0
	for _, kw := range keywords {
		normalized := flow.NormalizeKeyword(kw)
		if normalized != "" && strings.Contains(text, normalized) {
			count++
		}
	}
	return count
}

// classifyByKeywords retorna el label de la primera ruta cuyo keyword
// aparece en el texto. Sin match retorna label vacío y el Runner cae a la
// arista sin label.
func classifyByKeywords(text string, routes []flow.ClassificationRoute) string {
	lowered := strings.ToLower(text)
	for _, route := range routes {
		for _, kw := range route.Keywords {
			normalized := flow.NormalizeKeyword(kw)
			if normalized != "" && strings.Contains(lowered, normalized) {
				return route.Label
			}
		}
	}
	return ""
}

// classifyCustom hace una segunda completion pidiendo al proveedor elegir
// exactamente uno de los labels de las rutas.
func (e *AIExecutor) classifyCustom(ctx context.Context, config *flow.AIConfig, completion string) (string, error) {
	labels := make([]string, 0, len(config.Routes))
	for _, route := range config.Routes {
		labels = append(labels, route.Label)
	}

	classifyPrompt := "Classify the following text into exactly one of these categories: " +
		strings.Join(labels, ", ") +
		". Respond with only the category name, nothing else.\n\nText: " + completion

	answer, err := e.provider.Complete(ctx, execution.CompletionRequest{
		Provider: config.Provider,
		Model:    config.Model,
		Prompt:   classifyPrompt,
	})
	if err != nil {
		return "", errx.Wrap(err, "AI classification failed", errx.TypeInternal)
	}

	normalized := flow.NormalizeKeyword(answer)
	for _, label := range labels {
		if flow.NormalizeKeyword(label) == normalized {
			return label, nil
		}
	}

	// Respuesta fuera del set: match laxo por contención
	for _, label := range labels {
		if strings.Contains(normalized, flow.NormalizeKeyword(label)) {
			return label, nil
		}
	}

	return "", nil
}

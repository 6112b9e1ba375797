package aiprovider

import (
	"context"
	"log"

	"github.com/Abraxas-365/craftable/ai/llm"
	"github.com/Abraxas-365/craftable/ai/providers/aiopenai"
	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/craftable/ptrx"
	"github.com/converzap/converzap/execution"
	"github.com/converzap/converzap/pkg/config"
)

// Provider resuelve el cliente LLM por request de nodo. Un provider no
// reconocido cae a openai, que es el default de la plataforma.
type Provider struct {
	cfg config.AIConfig
}

var _ execution.CompletionProvider = (*Provider)(nil)

func New(cfg config.AIConfig) *Provider {
	return &Provider{cfg: cfg}
}

func (p *Provider) Complete(ctx context.Context, req execution.CompletionRequest) (string, error) {
	client := p.clientFor(req.Provider)

	messages := []llm.Message{}
	if req.SystemPrompt != "" {
		messages = append(messages, llm.NewSystemMessage(req.SystemPrompt))
	}
	messages = append(messages, llm.NewUserMessage(req.Prompt))

	model := req.Model
	if model == "" {
		model = p.cfg.DefaultModel
	}

	options := []llm.Option{
		llm.WithModel(model),
		llm.WithTemperature(ptrx.Float32ValueOr(req.Temperature, 0.7)),
		llm.WithMaxTokens(ptrx.IntValueOr(req.MaxTokens, 512)),
	}

	response, err := client.Chat(ctx, messages, options...)
	if err != nil {
		return "", errx.Wrap(err, "LLM call failed", errx.TypeInternal).
			WithDetail("provider", req.Provider).
			WithDetail("model", model)
	}

	log.Printf("🤖 LLM completion done (model: %s, tokens: %d)", model, response.Usage.TotalTokens)
	return response.Message.Content, nil
}

func (p *Provider) clientFor(providerName string) llm.Client {
	switch providerName {
	case "openai", "":
		return *llm.NewClient(aiopenai.NewOpenAIProvider(p.cfg.OpenAIAPIKey))
	default:
		log.Printf("⚠️  Unknown AI provider %q, falling back to openai", providerName)
		return *llm.NewClient(aiopenai.NewOpenAIProvider(p.cfg.OpenAIAPIKey))
	}
}

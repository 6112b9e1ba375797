package flow

import (
	"encoding/json"
	"fmt"
	"time"
)

// ============================================================================
// Node Config Types
// ============================================================================
// Cada tipo de nodo lleva un config tipado dentro del map genérico del grafo.
// Los helpers Extract* convierten el map a la estructura y la validan.

// MessageConfig nodo MESSAGE: envía texto interpolado al contacto
type MessageConfig struct {
	Text string `json:"text"`
}

func (c MessageConfig) Validate() error {
	if c.Text == "" {
		return ErrInvalidNode().WithDetail("reason", "text is required for MESSAGE node")
	}
	return nil
}

// MediaConfig nodo MEDIA: envía una referencia multimedia con caption opcional
type MediaConfig struct {
	MediaURL  string `json:"media_url"`
	MediaType string `json:"media_type"` // image, audio, video, document
	Caption   string `json:"caption,omitempty"`
	Filename  string `json:"filename,omitempty"`
}

func (c MediaConfig) Validate() error {
	if c.MediaURL == "" {
		return ErrInvalidNode().WithDetail("reason", "media_url is required for MEDIA node")
	}
	switch c.MediaType {
	case "image", "audio", "video", "document":
		return nil
	default:
		return ErrInvalidNode().WithDetail("reason", "invalid media_type: "+c.MediaType)
	}
}

// ActionMode modo de espera de un nodo ACTION
type ActionMode string

const (
	ActionWaitResponse ActionMode = "WAIT_RESPONSE"
	ActionWaitInput    ActionMode = "WAIT_INPUT"
)

// ActionConfig nodo ACTION: suspende la ejecución hasta recibir input del
// contacto. TimeoutSeconds opcional fuerza el avance por la arista "timeout".
type ActionConfig struct {
	Mode           ActionMode `json:"mode"`
	SaveResponseAs string     `json:"save_response_as,omitempty"`
	TimeoutSeconds *int       `json:"timeout_seconds,omitempty"`
}

func (c ActionConfig) Validate() error {
	switch c.Mode {
	case ActionWaitResponse, ActionWaitInput, "":
		// mode vacío equivale a WAIT_RESPONSE
	default:
		return ErrInvalidNode().WithDetail("reason", "invalid action mode: "+string(c.Mode))
	}
	if c.TimeoutSeconds != nil && *c.TimeoutSeconds <= 0 {
		return ErrInvalidNode().WithDetail("reason", "timeout_seconds must be positive")
	}
	return nil
}

// TimerConfig nodo TIMER: suspende hasta que transcurra el retraso configurado
type TimerConfig struct {
	DelaySeconds int `json:"delay_seconds,omitempty"`
	DelayMinutes int `json:"delay_minutes,omitempty"`
	DelayHours   int `json:"delay_hours,omitempty"`
}

func (c TimerConfig) Validate() error {
	if c.Duration() <= 0 {
		return ErrInvalidNode().WithDetail("reason", "timer delay must be positive")
	}
	return nil
}

// Duration retorna el retraso total del timer
func (c TimerConfig) Duration() time.Duration {
	total := c.DelaySeconds + c.DelayMinutes*60 + c.DelayHours*3600
	return time.Duration(total) * time.Second
}

// HTTPConfig nodo HTTP: llamada externa genérica
type HTTPConfig struct {
	Method         string            `json:"method"`
	URL            string            `json:"url"`
	Headers        map[string]string `json:"headers,omitempty"`
	Body           map[string]any    `json:"body,omitempty"`
	Timeout        *int              `json:"timeout,omitempty"` // seconds
	SaveResponseAs string            `json:"save_response_as,omitempty"`
}

func (c HTTPConfig) Validate() error {
	if c.URL == "" {
		return ErrInvalidNode().WithDetail("reason", "url is required for HTTP node")
	}

	validMethods := []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}
	method := c.GetMethod()
	for _, vm := range validMethods {
		if method == vm {
			return nil
		}
	}
	return ErrInvalidNode().WithDetail("reason", "invalid HTTP method: "+method)
}

func (c HTTPConfig) GetMethod() string {
	if c.Method == "" {
		return "GET"
	}
	return c.Method
}

func (c HTTPConfig) GetTimeout() time.Duration {
	if c.Timeout != nil && *c.Timeout > 0 {
		return time.Duration(*c.Timeout) * time.Second
	}
	return 30 * time.Second
}

// ClassificationMode modo de clasificación de un nodo AI
type ClassificationMode string

const (
	ClassifySentiment ClassificationMode = "SENTIMENT"
	ClassifyKeywords  ClassificationMode = "KEYWORDS"
	ClassifyCustom    ClassificationMode = "CUSTOM"
)

// ClassificationRoute ruta de salida para AI en modo KEYWORDS
type ClassificationRoute struct {
	Label    string   `json:"label"`
	Keywords []string `json:"keywords,omitempty"`
}

// AIConfig nodo AI: completion de un proveedor, con clasificación opcional
// para seleccionar la arista de salida.
type AIConfig struct {
	Provider           string                `json:"provider"` // openai, gemini, anthropic
	Model              string                `json:"model"`
	SystemPrompt       string                `json:"system_prompt,omitempty"`
	Prompt             string                `json:"prompt"`
	Temperature        *float32              `json:"temperature,omitempty"`
	MaxTokens          *int                  `json:"max_tokens,omitempty"`
	SaveResponseAs     string                `json:"save_response_as,omitempty"`
	ClassificationMode ClassificationMode    `json:"classification_mode,omitempty"`
	Routes             []ClassificationRoute `json:"routes,omitempty"`
	PositiveKeywords   []string              `json:"positive_keywords,omitempty"`
	NegativeKeywords   []string              `json:"negative_keywords,omitempty"`
}

func (c AIConfig) Validate() error {
	if c.Prompt == "" {
		return ErrInvalidNode().WithDetail("reason", "prompt is required for AI node")
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return ErrInvalidNode().WithDetail("reason", "temperature must be between 0 and 2")
	}
	if c.MaxTokens != nil && *c.MaxTokens <= 0 {
		return ErrInvalidNode().WithDetail("reason", "max_tokens must be positive")
	}

	switch c.ClassificationMode {
	case "", ClassifySentiment:
	case ClassifyKeywords, ClassifyCustom:
		if len(c.Routes) == 0 {
			return ErrInvalidNode().WithDetail("reason", "routes are required for classification mode "+string(c.ClassificationMode))
		}
		for _, route := range c.Routes {
			if route.Label == "" {
				return ErrInvalidNode().WithDetail("reason", "classification route label cannot be empty")
			}
		}
	default:
		return ErrInvalidNode().WithDetail("reason", "invalid classification_mode: "+string(c.ClassificationMode))
	}

	return nil
}

// ConditionOperator operador de comparación de un nodo CONDITION
type ConditionOperator string

const (
	OperatorEquals      ConditionOperator = "EQUALS"
	OperatorContains    ConditionOperator = "CONTAINS"
	OperatorGreaterThan ConditionOperator = "GREATER_THAN"
	OperatorLessThan    ConditionOperator = "LESS_THAN"
)

// ConditionConfig nodo CONDITION: compara una variable del contexto
type ConditionConfig struct {
	Variable string            `json:"variable"`
	Operator ConditionOperator `json:"operator"`
	Value    string            `json:"value"`
}

func (c ConditionConfig) Validate() error {
	if c.Variable == "" {
		return ErrInvalidNode().WithDetail("reason", "variable is required for CONDITION node")
	}
	switch c.Operator {
	case OperatorEquals, OperatorContains, OperatorGreaterThan, OperatorLessThan:
		return nil
	default:
		return ErrInvalidNode().WithDetail("reason", "invalid condition operator: "+string(c.Operator))
	}
}

// EndConfig nodo END: mensaje final opcional antes de completar
type EndConfig struct {
	FinalMessage string `json:"final_message,omitempty"`
}

// ============================================================================
// Config Extraction Helpers
// ============================================================================

func extractConfig[T any](config map[string]any, out *T) error {
	data, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}

func ExtractMessageConfig(config map[string]any) (*MessageConfig, error) {
	var c MessageConfig
	if err := extractConfig(config, &c); err != nil {
		return nil, err
	}
	return &c, c.Validate()
}

func ExtractMediaConfig(config map[string]any) (*MediaConfig, error) {
	var c MediaConfig
	if err := extractConfig(config, &c); err != nil {
		return nil, err
	}
	return &c, c.Validate()
}

func ExtractActionConfig(config map[string]any) (*ActionConfig, error) {
	var c ActionConfig
	if err := extractConfig(config, &c); err != nil {
		return nil, err
	}
	return &c, c.Validate()
}

func ExtractTimerConfig(config map[string]any) (*TimerConfig, error) {
	var c TimerConfig
	if err := extractConfig(config, &c); err != nil {
		return nil, err
	}
	return &c, c.Validate()
}

func ExtractHTTPConfig(config map[string]any) (*HTTPConfig, error) {
	var c HTTPConfig
	if err := extractConfig(config, &c); err != nil {
		return nil, err
	}
	return &c, c.Validate()
}

func ExtractAIConfig(config map[string]any) (*AIConfig, error) {
	var c AIConfig
	if err := extractConfig(config, &c); err != nil {
		return nil, err
	}
	return &c, c.Validate()
}

func ExtractConditionConfig(config map[string]any) (*ConditionConfig, error) {
	var c ConditionConfig
	if err := extractConfig(config, &c); err != nil {
		return nil, err
	}
	return &c, c.Validate()
}

func ExtractEndConfig(config map[string]any) (*EndConfig, error) {
	var c EndConfig
	if err := extractConfig(config, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ValidateNodeConfig valida el config tipado de un nodo según su tipo
func ValidateNodeConfig(node Node) error {
	var err error
	switch node.Type {
	case NodeTypeStart, NodeTypeEnd:
		// START no lleva config propio; END es opcional
	case NodeTypeMessage:
		_, err = ExtractMessageConfig(node.Config)
	case NodeTypeMedia:
		_, err = ExtractMediaConfig(node.Config)
	case NodeTypeAction:
		_, err = ExtractActionConfig(node.Config)
	case NodeTypeTimer:
		_, err = ExtractTimerConfig(node.Config)
	case NodeTypeHTTP:
		_, err = ExtractHTTPConfig(node.Config)
	case NodeTypeAI:
		_, err = ExtractAIConfig(node.Config)
	case NodeTypeCondition:
		_, err = ExtractConditionConfig(node.Config)
	default:
		return ErrInvalidNode().
			WithDetail("node_id", node.ID).
			WithDetail("reason", "unknown node type: "+string(node.Type))
	}

	return err
}

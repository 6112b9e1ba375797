package flow

import (
	"strings"
	"time"

	"github.com/converzap/converzap/pkg/kernel"
)

// ============================================================================
// Flow Entity
// ============================================================================

// Flow representa la definición inmutable de un flujo conversacional.
// El motor solo la lee; la autoría ocurre en el editor externo.
type Flow struct {
	ID             kernel.FlowID `db:"id" json:"id"`
	Name           string        `db:"name" json:"name"`
	Description    string        `db:"description" json:"description"`
	Nodes          []Node        `db:"nodes" json:"nodes"`
	Edges          []Edge        `db:"edges" json:"edges"`
	TriggerType    TriggerType   `db:"trigger_type" json:"trigger_type"`
	TriggerKeyword string        `db:"trigger_keyword" json:"trigger_keyword"`
	Priority       int           `db:"priority" json:"priority"`
	IsActive       bool          `db:"is_active" json:"is_active"`
	Version        int           `db:"version" json:"version"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

// NodeType tipo de nodo
type NodeType string

const (
	NodeTypeStart     NodeType = "START"
	NodeTypeMessage   NodeType = "MESSAGE"
	NodeTypeMedia     NodeType = "MEDIA"
	NodeTypeAction    NodeType = "ACTION"
	NodeTypeTimer     NodeType = "TIMER"
	NodeTypeHTTP      NodeType = "HTTP"
	NodeTypeAI        NodeType = "AI"
	NodeTypeCondition NodeType = "CONDITION"
	NodeTypeEnd       NodeType = "END"
)

// Node paso tipado de un flujo
type Node struct {
	ID     string         `json:"id"`
	Type   NodeType       `json:"type"`
	Config map[string]any `json:"config"`
}

// Edge arista dirigida entre dos nodos. Label desambigua las salidas de
// nodos CONDITION y de nodos AI en modo clasificación.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
}

// TriggerType predicado del nodo START sobre el mensaje entrante
type TriggerType string

const (
	TriggerKeywordExact      TriggerType = "KEYWORD_EXACT"
	TriggerKeywordContains   TriggerType = "KEYWORD_CONTAINS"
	TriggerKeywordStartsWith TriggerType = "KEYWORD_STARTS_WITH"
	TriggerAnyResponse       TriggerType = "ANY_RESPONSE"
)

// ============================================================================
// Domain Methods - Flow
// ============================================================================

// IsValid verifica si el flujo es válido
func (f *Flow) IsValid() bool {
	return f.Name != "" && len(f.Nodes) > 0
}

// NodeByID obtiene un nodo por ID
func (f *Flow) NodeByID(nodeID string) *Node {
	for i := range f.Nodes {
		if f.Nodes[i].ID == nodeID {
			return &f.Nodes[i]
		}
	}
	return nil
}

// StartNode retorna el nodo START del flujo, si existe
func (f *Flow) StartNode() *Node {
	for i := range f.Nodes {
		if f.Nodes[i].Type == NodeTypeStart {
			return &f.Nodes[i]
		}
	}
	return nil
}

// EdgesFrom retorna las aristas salientes de un nodo, en el orden de definición
func (f *Flow) EdgesFrom(nodeID string) []Edge {
	var out []Edge
	for _, e := range f.Edges {
		if e.Source == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// EdgeFrom busca la arista saliente con un label exacto. Un label vacío
// busca la arista sin label.
func (f *Flow) EdgeFrom(nodeID, label string) *Edge {
	for i := range f.Edges {
		if f.Edges[i].Source == nodeID && f.Edges[i].Label == label {
			return &f.Edges[i]
		}
	}
	return nil
}

// MatchesTrigger evalúa el predicado del trigger contra el texto entrante.
// La normalización es minúsculas + trim en ambos lados; ANY_RESPONSE acepta
// cualquier texto no vacío.
func (f *Flow) MatchesTrigger(text string) bool {
	normalized := NormalizeKeyword(text)

	switch f.TriggerType {
	case TriggerKeywordExact:
		return normalized != "" && normalized == NormalizeKeyword(f.TriggerKeyword)
	case TriggerKeywordContains:
		keyword := NormalizeKeyword(f.TriggerKeyword)
		return keyword != "" && strings.Contains(normalized, keyword)
	case TriggerKeywordStartsWith:
		keyword := NormalizeKeyword(f.TriggerKeyword)
		return keyword != "" && strings.HasPrefix(normalized, keyword)
	case TriggerAnyResponse:
		return normalized != ""
	default:
		return false
	}
}

// NormalizeKeyword aplica la política de comparación de keywords
func NormalizeKeyword(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Activate activa el flujo
func (f *Flow) Activate() {
	f.IsActive = true
	f.UpdatedAt = time.Now()
}

// Deactivate desactiva el flujo
func (f *Flow) Deactivate() {
	f.IsActive = false
	f.UpdatedAt = time.Now()
}

// ============================================================================
// Graph Validation
// ============================================================================

// ValidateGraph valida la estructura del grafo: IDs únicos, un único START,
// aristas que referencian nodos existentes y configs tipadas extraíbles.
func (f *Flow) ValidateGraph() error {
	if !f.IsValid() {
		return ErrInvalidFlow().WithDetail("reason", "flow has no name or no nodes")
	}

	nodeIDs := make(map[string]bool)
	startCount := 0
	for _, node := range f.Nodes {
		if node.ID == "" {
			return ErrInvalidNode().WithDetail("reason", "node has no ID")
		}
		if nodeIDs[node.ID] {
			return ErrInvalidNode().
				WithDetail("node_id", node.ID).
				WithDetail("reason", "duplicate node ID")
		}
		nodeIDs[node.ID] = true

		if node.Type == NodeTypeStart {
			startCount++
		}

		if err := ValidateNodeConfig(node); err != nil {
			return err
		}
	}

	if startCount != 1 {
		return ErrInvalidFlow().
			WithDetail("start_nodes", startCount).
			WithDetail("reason", "flow must have exactly one START node")
	}

	edgeIDs := make(map[string]bool)
	for _, edge := range f.Edges {
		if edgeIDs[edge.ID] {
			return ErrInvalidEdge().
				WithDetail("edge_id", edge.ID).
				WithDetail("reason", "duplicate edge ID")
		}
		edgeIDs[edge.ID] = true

		if !nodeIDs[edge.Source] {
			return ErrInvalidEdge().
				WithDetail("edge_id", edge.ID).
				WithDetail("source", edge.Source).
				WithDetail("reason", "source references non-existent node")
		}
		if !nodeIDs[edge.Target] {
			return ErrInvalidEdge().
				WithDetail("edge_id", edge.ID).
				WithDetail("target", edge.Target).
				WithDetail("reason", "target references non-existent node")
		}
	}

	return nil
}

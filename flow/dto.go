package flow

import (
	"github.com/Abraxas-365/craftable/storex"
	"github.com/converzap/converzap/pkg/kernel"
)

// ============================================================================
// Flow DTOs
// ============================================================================

type ListRequest struct {
	storex.PaginationOptions
	IsActive *bool  `json:"is_active,omitempty"`
	Search   string `json:"search,omitempty"`
}

func (lr ListRequest) GetOffset() int {
	return (lr.Page - 1) * lr.PageSize
}

type ListResponse = storex.Paginated[Flow]

// ExportedFlow es la forma portable de un flujo: nodos y aristas tal como
// los produce el editor. Re-importarla debe reproducir el mismo
// comportamiento de ejecución.
type ExportedFlow struct {
	Name           string      `json:"name"`
	Description    string      `json:"description,omitempty"`
	Nodes          []Node      `json:"nodes"`
	Edges          []Edge      `json:"edges"`
	TriggerType    TriggerType `json:"trigger_type"`
	TriggerKeyword string      `json:"trigger_keyword,omitempty"`
	Priority       int         `json:"priority,omitempty"`
}

// Export serializa la parte portable del flujo
func (f *Flow) Export() ExportedFlow {
	return ExportedFlow{
		Name:           f.Name,
		Description:    f.Description,
		Nodes:          f.Nodes,
		Edges:          f.Edges,
		TriggerType:    f.TriggerType,
		TriggerKeyword: f.TriggerKeyword,
		Priority:       f.Priority,
	}
}

// Import materializa un flujo a partir de su forma exportada
func Import(id kernel.FlowID, exported ExportedFlow) Flow {
	return Flow{
		ID:             id,
		Name:           exported.Name,
		Description:    exported.Description,
		Nodes:          exported.Nodes,
		Edges:          exported.Edges,
		TriggerType:    exported.TriggerType,
		TriggerKeyword: exported.TriggerKeyword,
		Priority:       exported.Priority,
	}
}

// ============================================================================
// Validation DTOs
// ============================================================================

type ValidateFlowRequest struct {
	Nodes          []Node      `json:"nodes" validate:"required,min=1"`
	Edges          []Edge      `json:"edges"`
	TriggerType    TriggerType `json:"trigger_type"`
	TriggerKeyword string      `json:"trigger_keyword,omitempty"`
}

type ValidateFlowResponse struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

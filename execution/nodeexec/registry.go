package nodeexec

import (
	"github.com/converzap/converzap/execution"
	"github.com/converzap/converzap/flow"
)

// Registry resuelve el ejecutor para cada tipo de nodo
type Registry struct {
	executors []execution.NodeExecutor
}

// NewRegistry crea un registry con el set completo de ejecutores
func NewRegistry(caller execution.HTTPCaller, provider execution.CompletionProvider) *Registry {
	return &Registry{
		executors: []execution.NodeExecutor{
			NewStartExecutor(),
			NewMessageExecutor(),
			NewMediaExecutor(),
			NewActionExecutor(),
			NewTimerExecutor(),
			NewHTTPExecutor(caller),
			NewAIExecutor(provider),
			NewConditionExecutor(),
			NewEndExecutor(),
		},
	}
}

// ForType retorna el ejecutor que soporta el tipo, o nil
func (r *Registry) ForType(nodeType flow.NodeType) execution.NodeExecutor {
	for _, e := range r.executors {
		if e.Supports(nodeType) {
			return e
		}
	}
	return nil
}

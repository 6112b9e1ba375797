package flow

import (
	"sort"
	"strings"
	"sync"
)

// TriggerIndex resuelve un mensaje entrante al flujo cuyo trigger coincide.
// KEYWORD_EXACT se resuelve por hash sobre la keyword normalizada y
// KEYWORD_STARTS_WITH por recorrido de prefijos; CONTAINS y ANY_RESPONSE
// quedan en escaneo lineal. El índice se reconstruye completo en cada
// Rebuild; las lecturas son concurrentes.
type TriggerIndex struct {
	mu       sync.RWMutex
	exact    map[string][]*Flow
	prefixes []*Flow // ordenados por keyword; lookup por prefijo
	linear   []*Flow // CONTAINS y ANY_RESPONSE
}

func NewTriggerIndex() *TriggerIndex {
	return &TriggerIndex{exact: make(map[string][]*Flow)}
}

// Rebuild reconstruye el índice a partir de los flujos activos
func (idx *TriggerIndex) Rebuild(flows []*Flow) {
	exact := make(map[string][]*Flow)
	var prefixes []*Flow
	var linear []*Flow

	for _, f := range flows {
		if !f.IsActive {
			continue
		}
		switch f.TriggerType {
		case TriggerKeywordExact:
			key := NormalizeKeyword(f.TriggerKeyword)
			if key != "" {
				exact[key] = append(exact[key], f)
			}
		case TriggerKeywordStartsWith:
			if NormalizeKeyword(f.TriggerKeyword) != "" {
				prefixes = append(prefixes, f)
			}
		case TriggerKeywordContains, TriggerAnyResponse:
			linear = append(linear, f)
		}
	}

	sortByPriority := func(fs []*Flow) {
		sort.SliceStable(fs, func(i, j int) bool { return fs[i].Priority < fs[j].Priority })
	}
	for _, fs := range exact {
		sortByPriority(fs)
	}
	sortByPriority(prefixes)
	sortByPriority(linear)

	idx.mu.Lock()
	idx.exact = exact
	idx.prefixes = prefixes
	idx.linear = linear
	idx.mu.Unlock()
}

// Resolve retorna el flujo de mayor prioridad cuyo trigger coincide con el
// texto. Dos flujos con la misma prioridad que coinciden simultáneamente son
// un error de configuración, no una resolución silenciosa.
func (idx *TriggerIndex) Resolve(text string) (*Flow, error) {
	normalized := NormalizeKeyword(text)
	if normalized == "" {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var matches []*Flow
	matches = append(matches, idx.exact[normalized]...)

	for _, f := range idx.prefixes {
		if strings.HasPrefix(normalized, NormalizeKeyword(f.TriggerKeyword)) {
			matches = append(matches, f)
		}
	}

	for _, f := range idx.linear {
		if f.MatchesTrigger(text) {
			matches = append(matches, f)
		}
	}

	if len(matches) == 0 {
		return nil, nil
	}

	best := matches[0]
	tied := false
	for _, m := range matches[1:] {
		if m.Priority < best.Priority {
			best = m
			tied = false
		} else if m.Priority == best.Priority && m.ID != best.ID {
			tied = true
		}
	}

	if tied {
		return nil, ErrAmbiguousTrigger().
			WithDetail("text", text).
			WithDetail("flow_id", best.ID.String())
	}

	return best, nil
}

// DetectTriggerConflict verifica que activar el candidato no deje dos flujos
// activos con el mismo trigger y la misma prioridad. Se chequea en la
// activación para que el conflicto falle ahí y no en el dispatch.
func DetectTriggerConflict(candidate *Flow, active []*Flow) error {
	key := NormalizeKeyword(candidate.TriggerKeyword)
	for _, f := range active {
		if f.ID == candidate.ID || !f.IsActive {
			continue
		}
		if f.TriggerType != candidate.TriggerType || f.Priority != candidate.Priority {
			continue
		}
		if candidate.TriggerType == TriggerAnyResponse || NormalizeKeyword(f.TriggerKeyword) == key {
			return ErrAmbiguousTrigger().
				WithDetail("flow_id", candidate.ID.String()).
				WithDetail("conflicting_flow_id", f.ID.String()).
				WithDetail("trigger_keyword", candidate.TriggerKeyword)
		}
	}
	return nil
}

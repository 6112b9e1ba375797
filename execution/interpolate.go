package execution

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ============================================================================
// Variable Interpolation
// ============================================================================

var placeholderPattern = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// Interpolate reemplaza los placeholders {{variable}} de un texto con los
// valores del contexto. Un placeholder sin valor queda como literal; la
// interpolación nunca falla.
func Interpolate(text string, variables map[string]any) string {
	if text == "" || !strings.Contains(text, "{{") {
		return text
	}

	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		path := placeholderPattern.FindStringSubmatch(match)[1]
		value, ok := LookupPath(variables, path)
		if !ok {
			return match
		}
		return stringify(value)
	})
}

// InterpolateMap interpola recursivamente los valores string de un map,
// incluyendo maps y slices anidados. Las llaves no se interpolan.
func InterpolateMap(m map[string]any, variables map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = interpolateValue(v, variables)
	}
	return out
}

// InterpolateHeaders interpola los valores de un map de headers HTTP
func InterpolateHeaders(headers map[string]string, variables map[string]any) map[string]string {
	if headers == nil {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		out[k] = Interpolate(v, variables)
	}
	return out
}

func interpolateValue(v any, variables map[string]any) any {
	switch val := v.(type) {
	case string:
		return Interpolate(val, variables)
	case map[string]any:
		return InterpolateMap(val, variables)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = interpolateValue(item, variables)
		}
		return out
	default:
		return v
	}
}

// LookupPath resuelve una ruta con puntos (ej. "api_result.status") sobre
// el map de variables. Los segmentos numéricos indexan slices.
func LookupPath(variables map[string]any, path string) (any, bool) {
	segments := strings.Split(path, ".")

	var current any = variables
	for _, segment := range segments {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// stringify convierte un valor del contexto a su representación textual
func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		// JSON decodifica todo número como float64; enteros sin decimales
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}

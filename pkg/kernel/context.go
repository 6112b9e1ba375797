package kernel

// ============================================================================
// Context Keys - claves para context.Context
// ============================================================================

type ContextKey string

const (
	// RequestIDKey es la clave para almacenar el ID de la petición
	RequestIDKey ContextKey = "request_id"
)

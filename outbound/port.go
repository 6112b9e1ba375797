package outbound

import "context"

// Queue cola de acciones salientes. Enqueue es fire-and-forget desde la
// perspectiva del motor; la entrega, el rate limit y los reintentos viven
// del lado de los workers.
type Queue interface {
	Enqueue(ctx context.Context, req ActionRequest) error
}

// Gateway transporte hacia la plataforma de mensajería
type Gateway interface {
	Send(ctx context.Context, action *OutboundAction) error
}

// FailureRecorder recibe las acciones que agotaron sus reintentos para que
// el fallo quede visible en la ejecución de origen.
type FailureRecorder interface {
	RecordDeliveryFailure(ctx context.Context, action *OutboundAction)
}

package outbound

import (
	"net/http"

	"github.com/Abraxas-365/craftable/errx"
)

var ErrRegistry = errx.NewRegistry("OUTBOUND")

var (
	CodeEnqueueFailed   = ErrRegistry.Register("ENQUEUE_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Failed to enqueue outbound action")
	CodeDeliveryFailed  = ErrRegistry.Register("DELIVERY_FAILED", errx.TypeInternal, http.StatusBadGateway, "Gateway delivery failed")
	CodeInvalidAction   = ErrRegistry.Register("INVALID_ACTION", errx.TypeValidation, http.StatusBadRequest, "Invalid outbound action")
	CodeGatewayRejected = ErrRegistry.Register("GATEWAY_REJECTED", errx.TypeBusiness, http.StatusUnprocessableEntity, "Gateway rejected the action")
)

func ErrEnqueueFailed() *errx.Error   { return ErrRegistry.New(CodeEnqueueFailed) }
func ErrDeliveryFailed() *errx.Error  { return ErrRegistry.New(CodeDeliveryFailed) }
func ErrInvalidAction() *errx.Error   { return ErrRegistry.New(CodeInvalidAction) }
func ErrGatewayRejected() *errx.Error { return ErrRegistry.New(CodeGatewayRejected) }

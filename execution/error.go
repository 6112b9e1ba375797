package execution

import (
	"net/http"

	"github.com/Abraxas-365/craftable/errx"
)

var ErrRegistry = errx.NewRegistry("EXEC")

var (
	CodeExecutionNotFound  = ErrRegistry.Register("EXECUTION_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Execution not found")
	CodeExecutionConflict  = ErrRegistry.Register("EXECUTION_CONFLICT", errx.TypeConflict, http.StatusConflict, "Execution was modified concurrently")
	CodeDuplicateExecution = ErrRegistry.Register("DUPLICATE_ACTIVE_EXECUTION", errx.TypeConflict, http.StatusConflict, "Contact already has an active execution")
	CodeExecutionTerminal  = ErrRegistry.Register("EXECUTION_TERMINAL", errx.TypeBusiness, http.StatusConflict, "Execution is in a terminal state")
	CodeNodeNotFound       = ErrRegistry.Register("NODE_NOT_FOUND", errx.TypeValidation, http.StatusBadRequest, "Current node does not exist in flow graph")
	CodeNoRouteEdge        = ErrRegistry.Register("NO_ROUTE_EDGE", errx.TypeValidation, http.StatusBadRequest, "No outgoing edge matches the computed route")
	CodeNodeExecution      = ErrRegistry.Register("NODE_EXECUTION_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Node execution failed")
	CodeTransportFailure   = ErrRegistry.Register("TRANSPORT_FAILURE", errx.TypeInternal, http.StatusBadGateway, "External call failed")
	CodeContactLocked      = ErrRegistry.Register("CONTACT_LOCKED", errx.TypeConflict, http.StatusConflict, "Contact is being processed by another event")
)

func ErrExecutionNotFound() *errx.Error  { return ErrRegistry.New(CodeExecutionNotFound) }
func ErrExecutionConflict() *errx.Error  { return ErrRegistry.New(CodeExecutionConflict) }
func ErrDuplicateExecution() *errx.Error { return ErrRegistry.New(CodeDuplicateExecution) }
func ErrExecutionTerminal() *errx.Error  { return ErrRegistry.New(CodeExecutionTerminal) }
func ErrNodeNotFound() *errx.Error       { return ErrRegistry.New(CodeNodeNotFound) }
func ErrNoRouteEdge() *errx.Error        { return ErrRegistry.New(CodeNoRouteEdge) }
func ErrNodeExecution() *errx.Error      { return ErrRegistry.New(CodeNodeExecution) }
func ErrTransportFailure() *errx.Error   { return ErrRegistry.New(CodeTransportFailure) }
func ErrContactLocked() *errx.Error      { return ErrRegistry.New(CodeContactLocked) }

package flow

import (
	"net/http"

	"github.com/Abraxas-365/craftable/errx"
)

var ErrRegistry = errx.NewRegistry("FLOW")

var (
	CodeFlowNotFound       = ErrRegistry.Register("FLOW_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Flow not found")
	CodeInvalidFlow        = ErrRegistry.Register("INVALID_FLOW", errx.TypeValidation, http.StatusBadRequest, "Invalid flow definition")
	CodeInvalidNode        = ErrRegistry.Register("INVALID_NODE", errx.TypeValidation, http.StatusBadRequest, "Invalid flow node")
	CodeInvalidEdge        = ErrRegistry.Register("INVALID_EDGE", errx.TypeValidation, http.StatusBadRequest, "Invalid flow edge")
	CodeFlowInactive       = ErrRegistry.Register("FLOW_INACTIVE", errx.TypeBusiness, http.StatusForbidden, "Flow is inactive")
	CodeAmbiguousTrigger   = ErrRegistry.Register("AMBIGUOUS_TRIGGER", errx.TypeConflict, http.StatusConflict, "Multiple flows match the same trigger keyword")
	CodeScheduleNotFound   = ErrRegistry.Register("SCHEDULE_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Flow schedule not found")
	CodeInvalidSchedule    = ErrRegistry.Register("INVALID_SCHEDULE", errx.TypeValidation, http.StatusBadRequest, "Invalid flow schedule")
)

func ErrFlowNotFound() *errx.Error     { return ErrRegistry.New(CodeFlowNotFound) }
func ErrInvalidFlow() *errx.Error      { return ErrRegistry.New(CodeInvalidFlow) }
func ErrInvalidNode() *errx.Error      { return ErrRegistry.New(CodeInvalidNode) }
func ErrInvalidEdge() *errx.Error      { return ErrRegistry.New(CodeInvalidEdge) }
func ErrFlowInactive() *errx.Error     { return ErrRegistry.New(CodeFlowInactive) }
func ErrAmbiguousTrigger() *errx.Error { return ErrRegistry.New(CodeAmbiguousTrigger) }
func ErrScheduleNotFound() *errx.Error { return ErrRegistry.New(CodeScheduleNotFound) }
func ErrInvalidSchedule() *errx.Error  { return ErrRegistry.New(CodeInvalidSchedule) }

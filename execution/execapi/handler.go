package execapi

import (
	"context"
	"log"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/converzap/converzap/execution"
	"github.com/converzap/converzap/execution/execsrv"
	"github.com/converzap/converzap/pkg/kernel"
	"github.com/gofiber/fiber/v2"
)

// ExecutionHandler endpoints del motor: ingreso de mensajes, disparo manual
// y operaciones del operador sobre ejecuciones.
type ExecutionHandler struct {
	dispatcher execution.Dispatcher
	service    *execsrv.Service
}

func NewExecutionHandler(dispatcher execution.Dispatcher, service *execsrv.Service) *ExecutionHandler {
	return &ExecutionHandler{
		dispatcher: dispatcher,
		service:    service,
	}
}

type inboundMessageRequest struct {
	ContactID string `json:"contact_id"`
	Text      string `json:"text"`
}

// ReceiveMessage POST /webhooks/messages
// El webhook responde de inmediato; el avance del flujo corre en background
// para no bloquear al gateway.
func (h *ExecutionHandler) ReceiveMessage(c *fiber.Ctx) error {
	var req inboundMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.New("invalid request body", errx.TypeValidation)
	}
	if req.ContactID == "" {
		return errx.New("contact_id is required", errx.TypeValidation)
	}

	event := execution.MessageReceived{
		ContactID: kernel.ContactID(req.ContactID),
		Text:      req.Text,
	}

	log.Printf("📨 Inbound message from contact %s", req.ContactID)

	go func() {
		if err := h.dispatcher.Handle(context.Background(), event); err != nil {
			log.Printf("❌ Failed to process inbound message from %s: %v", req.ContactID, err)
		}
	}()

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status": "received",
	})
}

type manualTriggerRequest struct {
	ContactID string `json:"contact_id"`
	// StartNodeID opcional: arranca la ejecución en ese nodo en vez del START
	StartNodeID string `json:"start_node_id,omitempty"`
}

// TriggerFlow POST /flows/:flowId/trigger
// Disparo manual síncrono: el caller quiere saber si la ejecución arrancó.
func (h *ExecutionHandler) TriggerFlow(c *fiber.Ctx) error {
	flowID := kernel.FlowID(c.Params("flowId"))
	if flowID.IsEmpty() {
		return errx.New("flowId is required", errx.TypeValidation)
	}

	var req manualTriggerRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.New("invalid request body", errx.TypeValidation)
	}
	if req.ContactID == "" {
		return errx.New("contact_id is required", errx.TypeValidation)
	}

	event := execution.ManualTrigger{
		FlowID:      flowID,
		ContactID:   kernel.ContactID(req.ContactID),
		StartNodeID: req.StartNodeID,
	}
	if err := h.dispatcher.Handle(c.Context(), event); err != nil {
		return err
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status":  "triggered",
		"flow_id": flowID.String(),
	})
}

// ListExecutions GET /executions
func (h *ExecutionHandler) ListExecutions(c *fiber.Ctx) error {
	req := execution.ListRequest{}
	req.Page = c.QueryInt("page", 1)
	req.PageSize = c.QueryInt("page_size", 20)
	req.FlowID = kernel.FlowID(c.Query("flow_id"))
	req.ContactID = kernel.ContactID(c.Query("contact_id"))
	req.Status = execution.Status(c.Query("status"))

	result, err := h.service.List(c.Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

// GetExecution GET /executions/:executionId
func (h *ExecutionHandler) GetExecution(c *fiber.Ctx) error {
	executionID := kernel.ExecutionID(c.Params("executionId"))
	if executionID.IsEmpty() {
		return errx.New("executionId is required", errx.TypeValidation)
	}

	exec, err := h.service.Get(c.Context(), executionID)
	if err != nil {
		return err
	}
	return c.JSON(exec)
}

// ResetExecution POST /executions/:executionId/reset
func (h *ExecutionHandler) ResetExecution(c *fiber.Ctx) error {
	executionID := kernel.ExecutionID(c.Params("executionId"))
	if executionID.IsEmpty() {
		return errx.New("executionId is required", errx.TypeValidation)
	}

	exec, err := h.service.Reset(c.Context(), executionID)
	if err != nil {
		return err
	}
	return c.JSON(exec)
}

// CancelExecution POST /executions/:executionId/cancel
func (h *ExecutionHandler) CancelExecution(c *fiber.Ctx) error {
	executionID := kernel.ExecutionID(c.Params("executionId"))
	if executionID.IsEmpty() {
		return errx.New("executionId is required", errx.TypeValidation)
	}

	exec, err := h.service.Cancel(c.Context(), executionID)
	if err != nil {
		return err
	}
	return c.JSON(exec)
}

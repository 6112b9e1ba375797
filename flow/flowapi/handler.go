package flowapi

import (
	"context"
	"log"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/converzap/converzap/flow"
	"github.com/converzap/converzap/pkg/kernel"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// TriggerRefresher reconstruye el índice de triggers tras cambios de flujos
type TriggerRefresher interface {
	RefreshTriggers(ctx context.Context) error
}

// FlowHandler endpoints de lectura, import/export, validación y schedules
// de flujos
type FlowHandler struct {
	flows     flow.Repository
	schedules flow.ScheduleRepository
	triggers  TriggerRefresher
}

func NewFlowHandler(flows flow.Repository, schedules flow.ScheduleRepository, triggers TriggerRefresher) *FlowHandler {
	return &FlowHandler{
		flows:     flows,
		schedules: schedules,
		triggers:  triggers,
	}
}

// ListFlows GET /flows
func (h *FlowHandler) ListFlows(c *fiber.Ctx) error {
	req := flow.ListRequest{}
	req.Page = c.QueryInt("page", 1)
	req.PageSize = c.QueryInt("page_size", 20)
	req.Search = c.Query("search")

	if activeParam := c.Query("is_active"); activeParam != "" {
		isActive := activeParam == "true"
		req.IsActive = &isActive
	}

	result, err := h.flows.List(c.Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

// GetFlow GET /flows/:flowId
func (h *FlowHandler) GetFlow(c *fiber.Ctx) error {
	flowID := kernel.FlowID(c.Params("flowId"))
	if flowID.IsEmpty() {
		return errx.New("flowId is required", errx.TypeValidation)
	}

	f, err := h.flows.FindByID(c.Context(), flowID)
	if err != nil {
		return err
	}
	return c.JSON(f)
}

// ExportFlow GET /flows/:flowId/export
func (h *FlowHandler) ExportFlow(c *fiber.Ctx) error {
	flowID := kernel.FlowID(c.Params("flowId"))
	if flowID.IsEmpty() {
		return errx.New("flowId is required", errx.TypeValidation)
	}

	f, err := h.flows.FindByID(c.Context(), flowID)
	if err != nil {
		return err
	}
	return c.JSON(f.Export())
}

// ImportFlow POST /flows/import
func (h *FlowHandler) ImportFlow(c *fiber.Ctx) error {
	var exported flow.ExportedFlow
	if err := c.BodyParser(&exported); err != nil {
		return errx.New("invalid request body", errx.TypeValidation)
	}

	f := flow.Import(kernel.NewFlowID(uuid.New().String()), exported)
	if err := f.ValidateGraph(); err != nil {
		return err
	}

	if err := h.flows.Save(c.Context(), f); err != nil {
		return err
	}

	if err := h.triggers.RefreshTriggers(c.Context()); err != nil {
		log.Printf("⚠️  Failed to refresh trigger index after import: %v", err)
	}

	log.Printf("📥 Imported flow %s (%s)", f.ID, f.Name)
	return c.Status(fiber.StatusCreated).JSON(f)
}

// ActivateFlow POST /flows/:flowId/activate
func (h *FlowHandler) ActivateFlow(c *fiber.Ctx) error {
	return h.setActive(c, true)
}

// DeactivateFlow POST /flows/:flowId/deactivate
func (h *FlowHandler) DeactivateFlow(c *fiber.Ctx) error {
	return h.setActive(c, false)
}

func (h *FlowHandler) setActive(c *fiber.Ctx, active bool) error {
	flowID := kernel.FlowID(c.Params("flowId"))
	if flowID.IsEmpty() {
		return errx.New("flowId is required", errx.TypeValidation)
	}

	f, err := h.flows.FindByID(c.Context(), flowID)
	if err != nil {
		return err
	}

	if active {
		// Un flujo inválido no puede entrar al índice de triggers
		if err := f.ValidateGraph(); err != nil {
			return err
		}
		activeFlows, err := h.flows.FindActive(c.Context())
		if err != nil {
			return err
		}
		if err := flow.DetectTriggerConflict(f, activeFlows); err != nil {
			return err
		}
		f.Activate()
	} else {
		f.Deactivate()
	}

	if err := h.flows.Save(c.Context(), *f); err != nil {
		return err
	}
	if err := h.triggers.RefreshTriggers(c.Context()); err != nil {
		log.Printf("⚠️  Failed to refresh trigger index: %v", err)
	}

	return c.JSON(f)
}

type createScheduleRequest struct {
	CronExpression string   `json:"cron_expression"`
	ContactIDs     []string `json:"contact_ids"`
}

// CreateSchedule POST /flows/:flowId/schedules
// Programa un disparo masivo del flujo para una lista de contactos.
func (h *FlowHandler) CreateSchedule(c *fiber.Ctx) error {
	flowID := kernel.FlowID(c.Params("flowId"))
	if flowID.IsEmpty() {
		return errx.New("flowId is required", errx.TypeValidation)
	}

	var req createScheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.New("invalid request body", errx.TypeValidation)
	}
	if len(req.ContactIDs) == 0 {
		return flow.ErrInvalidSchedule().WithDetail("reason", "contact_ids is required")
	}

	f, err := h.flows.FindByID(c.Context(), flowID)
	if err != nil {
		return err
	}
	if !f.IsActive {
		return flow.ErrFlowInactive().WithDetail("flow_id", flowID.String())
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	cronSchedule, err := parser.Parse(req.CronExpression)
	if err != nil {
		return flow.ErrInvalidSchedule().
			WithDetail("cron_expression", req.CronExpression).
			WithDetail("reason", err.Error())
	}

	contacts := make([]kernel.ContactID, 0, len(req.ContactIDs))
	for _, id := range req.ContactIDs {
		contacts = append(contacts, kernel.ContactID(id))
	}

	now := time.Now()
	nextRun := cronSchedule.Next(now)
	schedule := flow.Schedule{
		ID:             kernel.NewScheduleID(uuid.New().String()),
		FlowID:         flowID,
		CronExpression: req.CronExpression,
		ContactIDs:     contacts,
		IsActive:       true,
		NextRunAt:      &nextRun,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := h.schedules.Save(c.Context(), schedule); err != nil {
		return err
	}

	log.Printf("📅 Created broadcast schedule %s for flow %s (%d contacts, next run %s)",
		schedule.ID, flowID, len(contacts), nextRun.Format(time.RFC3339))
	return c.Status(fiber.StatusCreated).JSON(schedule)
}

// GetSchedule GET /flows/schedules/:scheduleId
func (h *FlowHandler) GetSchedule(c *fiber.Ctx) error {
	scheduleID := kernel.ScheduleID(c.Params("scheduleId"))
	if scheduleID.IsEmpty() {
		return errx.New("scheduleId is required", errx.TypeValidation)
	}

	schedule, err := h.schedules.FindByID(c.Context(), scheduleID)
	if err != nil {
		return err
	}
	return c.JSON(schedule)
}

// DeleteSchedule DELETE /flows/schedules/:scheduleId
func (h *FlowHandler) DeleteSchedule(c *fiber.Ctx) error {
	scheduleID := kernel.ScheduleID(c.Params("scheduleId"))
	if scheduleID.IsEmpty() {
		return errx.New("scheduleId is required", errx.TypeValidation)
	}

	if err := h.schedules.Delete(c.Context(), scheduleID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ValidateFlow POST /flows/validate
// Valida un grafo sin persistirlo; retorna la lista de problemas.
func (h *FlowHandler) ValidateFlow(c *fiber.Ctx) error {
	var req flow.ValidateFlowRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.New("invalid request body", errx.TypeValidation)
	}

	candidate := flow.Flow{
		Name:           "validation-candidate",
		Nodes:          req.Nodes,
		Edges:          req.Edges,
		TriggerType:    req.TriggerType,
		TriggerKeyword: req.TriggerKeyword,
	}

	resp := flow.ValidateFlowResponse{IsValid: true}
	if err := candidate.ValidateGraph(); err != nil {
		resp.IsValid = false
		resp.Errors = append(resp.Errors, err.Error())
	}

	// Avisos no bloqueantes
	for _, node := range req.Nodes {
		if node.Type != flow.NodeTypeEnd && len(candidate.EdgesFrom(node.ID)) == 0 {
			resp.Warnings = append(resp.Warnings,
				"node "+node.ID+" has no outgoing edges, the flow completes there")
		}
	}

	return c.JSON(resp)
}

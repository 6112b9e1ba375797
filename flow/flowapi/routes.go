package flowapi

import "github.com/gofiber/fiber/v2"

// SetupRoutes registra las rutas de flujos
func SetupRoutes(app *fiber.App, handler *FlowHandler) {
	flows := app.Group("/api/v1/flows")

	flows.Get("/", handler.ListFlows)
	flows.Post("/import", handler.ImportFlow)
	flows.Post("/validate", handler.ValidateFlow)
	flows.Get("/schedules/:scheduleId", handler.GetSchedule)
	flows.Delete("/schedules/:scheduleId", handler.DeleteSchedule)
	flows.Get("/:flowId", handler.GetFlow)
	flows.Get("/:flowId/export", handler.ExportFlow)
	flows.Post("/:flowId/activate", handler.ActivateFlow)
	flows.Post("/:flowId/deactivate", handler.DeactivateFlow)
	flows.Post("/:flowId/schedules", handler.CreateSchedule)
}

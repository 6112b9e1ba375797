package execapi

import "github.com/gofiber/fiber/v2"

// SetupRoutes registra las rutas del motor de ejecución
func SetupRoutes(app *fiber.App, handler *ExecutionHandler) {
	app.Post("/webhooks/messages", handler.ReceiveMessage)

	api := app.Group("/api/v1")
	api.Post("/flows/:flowId/trigger", handler.TriggerFlow)

	executions := api.Group("/executions")
	executions.Get("/", handler.ListExecutions)
	executions.Get("/:executionId", handler.GetExecution)
	executions.Post("/:executionId/reset", handler.ResetExecution)
	executions.Post("/:executionId/cancel", handler.CancelExecution)
}

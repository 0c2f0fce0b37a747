package web

import "github.com/gofiber/fiber/v3"

// Register mounts every automation route on router.
func (h *APIHandlers) Register(router fiber.Router) {
	a := router.Group("/automations")
	a.Get("/", h.GetAutomations)
	a.Post("/", h.CreateAutomation)
	a.Post("/test", h.TestAutomation)
	a.Get("/:id", h.GetAutomation)
	a.Put("/:id", h.UpdateAutomation)
	a.Delete("/:id", h.DeleteAutomation)
	a.Post("/:id/run", h.RunAutomation)
	a.Post("/:id/activate", h.ActivateAutomation)
	a.Post("/:id/pause", h.PauseAutomation)
	a.Get("/:id/logs", h.GetAutomationLogs)

	router.Post("/runs", h.RunBatch)
	router.Get("/actions", h.GetActions)
	router.Post("/events/records", h.PublishRecordEvent)
	router.Get("/health", h.HealthCheck)
}

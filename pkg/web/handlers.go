package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukex/flowbase/pkg/automation"
	"github.com/dukex/flowbase/pkg/eventbus"
	"github.com/dukex/flowbase/pkg/events"
	"github.com/dukex/flowbase/pkg/log"
	"github.com/dukex/flowbase/pkg/models"
	"github.com/dukex/flowbase/pkg/persistence"
	"github.com/dukex/flowbase/pkg/registry"
	"github.com/dukex/flowbase/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// Runner executes batches and sandbox runs.
type Runner interface {
	RunBatch(ctx context.Context, filter automation.Filter) (models.RunSummary, error)
	TestAutomation(ctx context.Context, request automation.TestRequest) *models.TestReport
}

type APIHandlers struct {
	automations *services.Automation
	runner      Runner
	registry    *registry.Registry
	// publisher is nil when the API runs without an event bus.
	publisher eventbus.EventPublisher
	validator *validator.Validate
	logger    *slog.Logger
}

func NewAPIHandlers(
	automations *services.Automation,
	runner Runner,
	registry *registry.Registry,
	publisher eventbus.EventPublisher,
	validator *validator.Validate,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		automations: automations,
		runner:      runner,
		registry:    registry,
		publisher:   publisher,
		validator:   validator,
		logger:      log.Module(logger, "api_handlers"),
	}
}

func (h *APIHandlers) GetAutomations(c fiber.Ctx) error {
	automations, err := h.automations.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(ListAutomationsResponse{Automations: automations, TotalCount: len(automations)})
}

func (h *APIHandlers) GetAutomation(c fiber.Ctx) error {
	automation, err := h.automations.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(automation)
}

func (h *APIHandlers) CreateAutomation(c fiber.Ctx) error {
	var automation models.Automation
	if err := c.Bind().JSON(&automation); err != nil {
		return badRequest(c, "Invalid JSON format: "+err.Error())
	}

	created, err := h.automations.Create(c.Context(), &automation)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateAutomation(c fiber.Ctx) error {
	var automation models.Automation
	if err := c.Bind().JSON(&automation); err != nil {
		return badRequest(c, "Invalid JSON format: "+err.Error())
	}

	updated, err := h.automations.Update(c.Context(), c.Params("id"), &automation)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteAutomation(c fiber.Ctx) error {
	err := h.automations.Delete(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ActivateAutomation(c fiber.Ctx) error {
	automation, err := h.automations.Activate(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(automation)
}

func (h *APIHandlers) PauseAutomation(c fiber.Ctx) error {
	automation, err := h.automations.Pause(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(automation)
}

// RunAutomation runs one automation regardless of its status or trigger
// kind. The body is optional.
func (h *APIHandlers) RunAutomation(c fiber.Ctx) error {
	var req RunRequest

	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format: "+err.Error())
		}
	}

	summary, err := h.runner.RunBatch(c.Context(), automation.Filter{
		AutomationID: c.Params("id"),
		Record:       req.Record,
		OldRecord:    req.OldRecord,
		NewRecord:    req.NewRecord,
		Table:        req.Table,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(summary)
}

func (h *APIHandlers) GetAutomationLogs(c fiber.Ctx) error {
	limit := persistence.DefaultLogLimit

	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			return badRequest(c, "Invalid query parameters: limit must be a positive integer")
		}

		limit = persistence.NormalizeLimit(parsed)
	}

	logs, err := h.automations.Logs(c.Context(), c.Params("id"), limit)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(ListLogsResponse{Logs: logs, Limit: limit})
}

// TestAutomation dry-runs an automation draft against a sample record.
func (h *APIHandlers) TestAutomation(c fiber.Ctx) error {
	var req automation.TestRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format: "+err.Error())
	}

	if req.Automation == nil {
		return badRequest(c, "automation is required")
	}

	return c.JSON(h.runner.TestAutomation(c.Context(), req))
}

// RunBatch runs every automation selected by the filter body.
func (h *APIHandlers) RunBatch(c fiber.Ctx) error {
	var filter automation.Filter

	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&filter); err != nil {
			return badRequest(c, "Invalid JSON format: "+err.Error())
		}
	}

	summary, err := h.runner.RunBatch(c.Context(), filter)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(summary)
}

func (h *APIHandlers) GetActions(c fiber.Ctx) error {
	return c.JSON(h.registry.Descriptors())
}

// PublishRecordEvent validates a record mutation and hands it to the workers.
func (h *APIHandlers) PublishRecordEvent(c fiber.Ctx) error {
	if h.publisher == nil {
		return unavailable(c, errBusUnavailable)
	}

	var req RecordEventRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	var (
		event eventbus.Event
		id    string
		key   string
	)

	switch events.EventType(req.Type) {
	case events.RecordCreatedEvent:
		if req.Record == nil {
			return badRequest(c, "record is required for record.created")
		}

		created := events.NewRecordCreated(req.Table, req.Record)
		event, id, key = created, created.ID, req.Record.ID()
	case events.RecordUpdatedEvent:
		if req.OldRecord == nil || req.NewRecord == nil {
			return badRequest(c, "old_record and new_record are required for record.updated")
		}

		updated := events.NewRecordUpdated(req.Table, req.OldRecord, req.NewRecord)
		event, id, key = updated, updated.ID, req.NewRecord.ID()
	}

	err := h.publisher.Publish(c.Context(), key, event)
	if err != nil {
		h.logger.ErrorContext(c.Context(), "Failed to publish record event", "type", req.Type, "error", err)

		return internalError(c, errors.New("failed to publish record event"))
	}

	return c.Status(fiber.StatusAccepted).JSON(RecordEventResponse{EventID: id, Type: req.Type})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.automations.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Flowbase API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Flowbase API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
			"actions":    strconv.Itoa(len(h.registry.Descriptors())) + " action types registered",
		},
		"timestamp": time.Now().UTC(),
	})
}

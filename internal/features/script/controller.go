package script

import (
	"context"
	"fmt"
	"time"

	"coprox/internal/common/api"
	cron_feature "coprox/internal/features/cron"

	"github.com/gofiber/fiber/v2"
)

type ScriptController struct {
	Service ScriptService
}

func NewScriptController(service ScriptService) *ScriptController {
	return &ScriptController{Service: service}
}

// ListScripts godoc
// @Summary List script execution records
// @Description Logs and history are omitted from the listing
// @Tags scripts
// @Produce json
// @Success 200 {array} Script
// @Router /api/scripts [get]
func (ctrl *ScriptController) ListScripts(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 10*time.Second)
	defer cancel()

	scripts, err := ctrl.Service.List(ctx)
	if err != nil {
		return cron_feature.WriteError(c, err)
	}
	return c.JSON(scripts)
}

// GetScript godoc
// @Summary Get a script with its logs and history
// @Tags scripts
// @Produce json
// @Param name path string true "Script name"
// @Success 200 {object} Script
// @Router /api/scripts/{name} [get]
func (ctrl *ScriptController) GetScript(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	sc, err := ctrl.Service.Get(ctx, c.Params("name"))
	if err != nil {
		return cron_feature.WriteError(c, err)
	}
	return c.JSON(sc)
}

// CreateScript godoc
// @Summary Create a script execution record
// @Tags scripts
// @Accept json
// @Produce json
// @Param script body ScriptInput true "Script"
// @Success 201 {object} Script
// @Router /api/scripts [post]
func (ctrl *ScriptController) CreateScript(c *fiber.Ctx) error {
	var in ScriptInput
	if err := api.ParseBody(c, &in); err != nil {
		return api.BadRequest(c, err)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 10*time.Second)
	defer cancel()

	sc, err := ctrl.Service.Create(ctx, in)
	if err != nil {
		return cron_feature.WriteError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(sc)
}

// DeleteScript godoc
// @Summary Delete a script execution record
// @Tags scripts
// @Param name path string true "Script name"
// @Success 204
// @Router /api/scripts/{name} [delete]
func (ctrl *ScriptController) DeleteScript(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	if err := ctrl.Service.Delete(ctx, c.Params("name")); err != nil {
		return cron_feature.WriteError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// QueueScript godoc
// @Summary Mark a script as queued
// @Tags scripts
// @Param name path string true "Script name"
// @Success 200 {object} Script
// @Failure 409 {object} map[string]interface{}
// @Router /api/scripts/{name}/queue [post]
func (ctrl *ScriptController) QueueScript(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 10*time.Second)
	defer cancel()

	sc, err := ctrl.Service.Enqueue(ctx, c.Params("name"))
	if err != nil {
		return cron_feature.WriteError(c, err)
	}
	return c.JSON(sc)
}

// StartScript godoc
// @Summary Open a new execution attempt
// @Tags scripts
// @Param name path string true "Script name"
// @Success 201 {object} LogEntry
// @Failure 409 {object} map[string]interface{}
// @Router /api/scripts/{name}/start [post]
func (ctrl *ScriptController) StartScript(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 10*time.Second)
	defer cancel()

	_, entry, err := ctrl.Service.Start(ctx, c.Params("name"))
	if err != nil {
		return cron_feature.WriteError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(entry)
}

// FinishScript godoc
// @Summary Close an execution attempt
// @Tags scripts
// @Accept json
// @Produce json
// @Param name path string true "Script name"
// @Param logId path string true "Log id"
// @Param outcome body Outcome true "Outcome"
// @Success 200 {object} LogEntry
// @Failure 409 {object} map[string]interface{}
// @Router /api/scripts/{name}/logs/{logId}/finish [post]
func (ctrl *ScriptController) FinishScript(c *fiber.Ctx) error {
	var out Outcome
	if err := c.BodyParser(&out); err != nil {
		return api.BadRequest(c, fmt.Errorf("invalid request body: %w", err))
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 10*time.Second)
	defer cancel()

	_, entry, err := ctrl.Service.Finish(ctx, c.Params("name"), c.Params("logId"), out)
	if err != nil {
		return cron_feature.WriteError(c, err)
	}
	return c.JSON(entry)
}

// GetScriptLogs godoc
// @Summary Most recent execution attempts, newest first
// @Tags scripts
// @Produce json
// @Param name path string true "Script name"
// @Param limit query int false "Max entries"
// @Success 200 {array} LogEntry
// @Router /api/scripts/{name}/logs [get]
func (ctrl *ScriptController) GetScriptLogs(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 10*time.Second)
	defer cancel()

	logs, err := ctrl.Service.Logs(ctx, c.Params("name"), c.QueryInt("limit", 50))
	if err != nil {
		return cron_feature.WriteError(c, err)
	}
	return c.JSON(logs)
}

// GetScriptHistory godoc
// @Summary Finished attempts, newest first
// @Tags scripts
// @Produce json
// @Param name path string true "Script name"
// @Param limit query int false "Max entries"
// @Success 200 {array} HistoryEntry
// @Router /api/scripts/{name}/history [get]
func (ctrl *ScriptController) GetScriptHistory(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 10*time.Second)
	defer cancel()

	history, err := ctrl.Service.History(ctx, c.Params("name"), c.QueryInt("limit", 50))
	if err != nil {
		return cron_feature.WriteError(c, err)
	}
	return c.JSON(history)
}

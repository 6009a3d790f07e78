package cron_feature

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"coprox/internal/common/api"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type CronController struct {
	Service   CronService
	Scheduler Scheduler
	logger    *zap.Logger
}

func NewCronController(service CronService, scheduler Scheduler, logger *zap.Logger) *CronController {
	return &CronController{
		Service:   service,
		Scheduler: scheduler,
		logger:    logger.Named("cron_api"),
	}
}

// ConfigResponse is a config document plus its derived health figures.
type ConfigResponse struct {
	Document
	ErrorRate        float64 `json:"errorRate"`
	NextRunFormatted string  `json:"nextRunFormatted,omitempty"`
	Valid            bool    `json:"valid"`
}

func NewConfigResponse(c *CronConfig) ConfigResponse {
	return ConfigResponse{
		Document:         c.ToObject(),
		ErrorRate:        c.ErrorRate(),
		NextRunFormatted: c.NextRunFormatted(),
		Valid:            c.IsValid(),
	}
}

func newConfigResponses(configs []*CronConfig) []ConfigResponse {
	out := make([]ConfigResponse, 0, len(configs))
	for _, c := range configs {
		out = append(out, NewConfigResponse(c))
	}
	return out
}

type ValidateScheduleRequest struct {
	Schedule string `json:"schedule" validate:"required"`
	Timezone string `json:"timezone"`
}

type ValidateScheduleResponse struct {
	Valid    bool     `json:"valid"`
	Error    string   `json:"error,omitempty"`
	NextRuns []string `json:"nextRuns,omitempty"`
}

type RunStatsRequest struct {
	RunTimeMs int64 `json:"runTimeMs" validate:"gte=0"`
	Success   *bool `json:"success" validate:"required"`
}

// WriteError maps domain errors to HTTP statuses.
func WriteError(c *fiber.Ctx, err error) error {
	switch KindOf(err) {
	case KindNotFound:
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case KindDuplicateName, KindInvalidTransition:
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case KindValidationFailed:
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":   err.Error(),
			"details": ProblemsOf(err),
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}

// ListCronConfigs godoc
// @Summary List cron configs
// @Tags cron
// @Produce json
// @Param category query string false "Filter by category"
// @Param enabled query boolean false "Filter by enabled flag"
// @Success 200 {array} ConfigResponse
// @Router /api/cron-configs [get]
func (ctrl *CronController) ListCronConfigs(c *fiber.Ctx) error {
	filter := ListFilter{Category: Category(c.Query("category"))}
	if v := c.Query("enabled"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return api.BadRequest(c, fmt.Errorf("enabled must be a boolean"))
		}
		filter.Enabled = &enabled
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 10*time.Second)
	defer cancel()

	configs, err := ctrl.Service.List(ctx, filter)
	if err != nil {
		return WriteError(c, err)
	}
	return c.JSON(newConfigResponses(configs))
}

// ListEnabledCronConfigs godoc
// @Summary List enabled cron configs, highest priority first
// @Tags cron
// @Produce json
// @Success 200 {array} ConfigResponse
// @Router /api/cron-configs/enabled [get]
func (ctrl *CronController) ListEnabledCronConfigs(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 10*time.Second)
	defer cancel()

	configs, err := ctrl.Service.ListEnabled(ctx)
	if err != nil {
		return WriteError(c, err)
	}
	return c.JSON(newConfigResponses(configs))
}

// ListDueCronConfigs godoc
// @Summary List enabled cron configs whose next run has passed
// @Tags cron
// @Produce json
// @Success 200 {array} ConfigResponse
// @Router /api/cron-configs/due [get]
func (ctrl *CronController) ListDueCronConfigs(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 10*time.Second)
	defer cancel()

	configs, err := ctrl.Service.ListDue(ctx, time.Now().UTC())
	if err != nil {
		return WriteError(c, err)
	}
	return c.JSON(newConfigResponses(configs))
}

// GetCronStats godoc
// @Summary Aggregate statistics over all cron configs
// @Tags cron
// @Produce json
// @Success 200 {object} Statistics
// @Router /api/cron-configs/stats [get]
func (ctrl *CronController) GetCronStats(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 10*time.Second)
	defer cancel()

	stats, err := ctrl.Service.Stats(ctx)
	if err != nil {
		return WriteError(c, err)
	}
	return c.JSON(stats)
}

// ExportCronConfigs godoc
// @Summary Export cron configs and their scripts as XLSX
// @Tags cron
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} file
// @Router /api/cron-configs/export [get]
func (ctrl *CronController) ExportCronConfigs(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 30*time.Second)
	defer cancel()

	data, filename, err := ctrl.Service.Export(ctx)
	if err != nil {
		return WriteError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Attachment(filename)
	return c.Send(data)
}

// GetCronConfig godoc
// @Summary Get a cron config by name
// @Tags cron
// @Produce json
// @Param name path string true "Config name"
// @Success 200 {object} ConfigResponse
// @Failure 404 {object} map[string]interface{}
// @Router /api/cron-configs/{name} [get]
func (ctrl *CronController) GetCronConfig(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	cfg, err := ctrl.Service.Get(ctx, c.Params("name"))
	if err != nil {
		return WriteError(c, err)
	}
	return c.JSON(NewConfigResponse(cfg))
}

// CreateCronConfig godoc
// @Summary Create a cron config
// @Tags cron
// @Accept json
// @Produce json
// @Param config body CronConfigInput true "Cron config"
// @Success 201 {object} ConfigResponse
// @Failure 409 {object} map[string]interface{}
// @Failure 422 {object} map[string]interface{}
// @Router /api/cron-configs [post]
func (ctrl *CronController) CreateCronConfig(c *fiber.Ctx) error {
	var in CronConfigInput
	if err := c.BodyParser(&in); err != nil {
		return api.BadRequest(c, fmt.Errorf("invalid request body: %w", err))
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 10*time.Second)
	defer cancel()

	cfg, err := ctrl.Service.Create(ctx, in)
	if err != nil {
		return WriteError(c, err)
	}
	ctrl.sync(ctx, cfg.Name)
	return c.Status(fiber.StatusCreated).JSON(NewConfigResponse(cfg))
}

// UpdateCronConfig godoc
// @Summary Partially update a cron config
// @Tags cron
// @Accept json
// @Produce json
// @Param name path string true "Config name"
// @Param patch body CronConfigPatch true "Fields to change"
// @Success 200 {object} ConfigResponse
// @Router /api/cron-configs/{name} [put]
func (ctrl *CronController) UpdateCronConfig(c *fiber.Ctx) error {
	var patch CronConfigPatch
	if err := c.BodyParser(&patch); err != nil {
		return api.BadRequest(c, fmt.Errorf("invalid request body: %w", err))
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 10*time.Second)
	defer cancel()

	cfg, err := ctrl.Service.Update(ctx, c.Params("name"), patch)
	if err != nil {
		return WriteError(c, err)
	}
	ctrl.sync(ctx, cfg.Name)
	return c.JSON(NewConfigResponse(cfg))
}

// DeleteCronConfig godoc
// @Summary Delete a cron config
// @Tags cron
// @Param name path string true "Config name"
// @Success 204
// @Router /api/cron-configs/{name} [delete]
func (ctrl *CronController) DeleteCronConfig(c *fiber.Ctx) error {
	name := c.Params("name")

	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	if err := ctrl.Service.Delete(ctx, name); err != nil {
		return WriteError(c, err)
	}
	ctrl.sync(ctx, name)
	return c.SendStatus(fiber.StatusNoContent)
}

// ValidateSchedule godoc
// @Summary Validate a cron expression and preview its next runs
// @Tags cron
// @Accept json
// @Produce json
// @Param request body ValidateScheduleRequest true "Expression"
// @Success 200 {object} ValidateScheduleResponse
// @Router /api/cron-configs/validate-schedule [post]
func (ctrl *CronController) ValidateSchedule(c *fiber.Ctx) error {
	var req ValidateScheduleRequest
	if err := api.ParseBody(c, &req); err != nil {
		return api.BadRequest(c, err)
	}
	return c.JSON(CheckSchedule(req.Schedule, req.Timezone, time.Now().UTC(), 5))
}

// CheckSchedule validates expr and lists its next n activations.
func CheckSchedule(expr, timezone string, from time.Time, n int) ValidateScheduleResponse {
	schedule, err := ParseSchedule(expr, timezone)
	if err != nil {
		return ValidateScheduleResponse{Valid: false, Error: err.Error()}
	}
	resp := ValidateScheduleResponse{Valid: true, NextRuns: make([]string, 0, n)}
	t := from
	for i := 0; i < n; i++ {
		t = schedule.Next(t)
		resp.NextRuns = append(resp.NextRuns, t.UTC().Format(time.RFC3339))
	}
	return resp
}

// EnableCronConfig godoc
// @Summary Enable a cron config
// @Tags cron
// @Param name path string true "Config name"
// @Success 200 {object} ConfigResponse
// @Router /api/cron-configs/{name}/enable [post]
func (ctrl *CronController) EnableCronConfig(c *fiber.Ctx) error {
	return ctrl.setEnabled(c, true)
}

// DisableCronConfig godoc
// @Summary Disable a cron config
// @Tags cron
// @Param name path string true "Config name"
// @Success 200 {object} ConfigResponse
// @Router /api/cron-configs/{name}/disable [post]
func (ctrl *CronController) DisableCronConfig(c *fiber.Ctx) error {
	return ctrl.setEnabled(c, false)
}

func (ctrl *CronController) setEnabled(c *fiber.Ctx, enabled bool) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 10*time.Second)
	defer cancel()

	cfg, err := ctrl.Service.SetEnabled(ctx, c.Params("name"), enabled)
	if err != nil {
		return WriteError(c, err)
	}
	ctrl.sync(ctx, cfg.Name)
	return c.JSON(NewConfigResponse(cfg))
}

// ReloadScheduler godoc
// @Summary Re-register every enabled config with the scheduler
// @Tags cron
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/cron-configs/reload [post]
func (ctrl *CronController) ReloadScheduler(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 30*time.Second)
	defer cancel()

	registered, err := ctrl.Scheduler.Reload(ctx)
	if err != nil {
		return WriteError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Scheduler reloaded", "registered": registered})
}

// RunCronConfig godoc
// @Summary Trigger a run of a cron config now
// @Tags cron
// @Param name path string true "Config name"
// @Success 202 {object} map[string]interface{}
// @Router /api/cron-configs/{name}/run [post]
func (ctrl *CronController) RunCronConfig(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	if err := ctrl.Scheduler.RunNow(ctx, c.Params("name")); err != nil {
		return WriteError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"message": "Run started"})
}

// ReportRun godoc
// @Summary Record the outcome of an externally executed run
// @Tags cron
// @Accept json
// @Produce json
// @Param name path string true "Config name"
// @Param request body RunStatsRequest true "Run outcome"
// @Success 200 {object} ConfigResponse
// @Router /api/cron-configs/{name}/run-stats [post]
func (ctrl *CronController) ReportRun(c *fiber.Ctx) error {
	var req RunStatsRequest
	if err := api.ParseBody(c, &req); err != nil {
		return api.BadRequest(c, err)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 10*time.Second)
	defer cancel()

	cfg, err := ctrl.Service.RecordRun(ctx, c.Params("name"), req.RunTimeMs, *req.Success)
	if err != nil {
		return WriteError(c, err)
	}
	return c.JSON(NewConfigResponse(cfg))
}

// AddScript godoc
// @Summary Add a script to a cron config
// @Tags cron
// @Accept json
// @Produce json
// @Param name path string true "Config name"
// @Param script body CronScriptInput true "Script"
// @Success 201 {object} ConfigResponse
// @Router /api/cron-configs/{name}/scripts [post]
func (ctrl *CronController) AddScript(c *fiber.Ctx) error {
	var in CronScriptInput
	if err := c.BodyParser(&in); err != nil {
		return api.BadRequest(c, fmt.Errorf("invalid request body: %w", err))
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 10*time.Second)
	defer cancel()

	cfg, err := ctrl.Service.AddScript(ctx, c.Params("name"), in)
	if err != nil {
		return WriteError(c, err)
	}
	ctrl.sync(ctx, cfg.Name)
	return c.Status(fiber.StatusCreated).JSON(NewConfigResponse(cfg))
}

// UpdateScript godoc
// @Summary Partially update a script of a cron config
// @Tags cron
// @Accept json
// @Produce json
// @Param name path string true "Config name"
// @Param script path string true "Script name"
// @Param patch body CronScriptPatch true "Fields to change"
// @Success 200 {object} ConfigResponse
// @Router /api/cron-configs/{name}/scripts/{script} [put]
func (ctrl *CronController) UpdateScript(c *fiber.Ctx) error {
	var patch CronScriptPatch
	if err := c.BodyParser(&patch); err != nil {
		return api.BadRequest(c, fmt.Errorf("invalid request body: %w", err))
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 10*time.Second)
	defer cancel()

	cfg, err := ctrl.Service.UpdateScript(ctx, c.Params("name"), c.Params("script"), patch)
	if err != nil {
		return WriteError(c, err)
	}
	ctrl.sync(ctx, cfg.Name)
	return c.JSON(NewConfigResponse(cfg))
}

// RemoveScript godoc
// @Summary Remove a script from a cron config
// @Tags cron
// @Produce json
// @Param name path string true "Config name"
// @Param script path string true "Script name"
// @Success 200 {object} ConfigResponse
// @Router /api/cron-configs/{name}/scripts/{script} [delete]
func (ctrl *CronController) RemoveScript(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 10*time.Second)
	defer cancel()

	cfg, err := ctrl.Service.RemoveScript(ctx, c.Params("name"), c.Params("script"))
	if err != nil {
		return WriteError(c, err)
	}
	ctrl.sync(ctx, cfg.Name)
	return c.JSON(NewConfigResponse(cfg))
}

// sync keeps the scheduler in step with a stored change. A failure here does
// not undo the change; the next reload picks it up.
func (ctrl *CronController) sync(ctx context.Context, name string) {
	if err := ctrl.Scheduler.Sync(ctx, name); err != nil {
		ctrl.logger.Error("Failed to sync scheduler", zap.String("config", name), zap.Error(err))
	}
}

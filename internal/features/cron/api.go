package cron_feature

import (
	"coprox/internal/common/api"

	"github.com/gofiber/fiber/v2"
)

type CronApi struct {
	cronController *CronController
}

func NewCronApi(cronController *CronController) api.Route {
	return &CronApi{
		cronController: cronController,
	}
}

func (h *CronApi) Setup(app *fiber.App) {
	configs := app.Group("/api/cron-configs")

	configs.Get("/", h.cronController.ListCronConfigs)
	configs.Get("/enabled", h.cronController.ListEnabledCronConfigs)
	configs.Get("/due", h.cronController.ListDueCronConfigs)
	configs.Get("/stats", h.cronController.GetCronStats)
	configs.Get("/export", h.cronController.ExportCronConfigs)
	configs.Post("/validate-schedule", h.cronController.ValidateSchedule)
	configs.Post("/reload", h.cronController.ReloadScheduler)
	configs.Post("/", h.cronController.CreateCronConfig)

	configs.Get("/:name", h.cronController.GetCronConfig)
	configs.Put("/:name", h.cronController.UpdateCronConfig)
	configs.Delete("/:name", h.cronController.DeleteCronConfig)
	configs.Post("/:name/enable", h.cronController.EnableCronConfig)
	configs.Post("/:name/disable", h.cronController.DisableCronConfig)
	configs.Post("/:name/run", h.cronController.RunCronConfig)
	configs.Post("/:name/run-stats", h.cronController.ReportRun)

	configs.Post("/:name/scripts", h.cronController.AddScript)
	configs.Put("/:name/scripts/:script", h.cronController.UpdateScript)
	configs.Delete("/:name/scripts/:script", h.cronController.RemoveScript)
}

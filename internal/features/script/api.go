package script

import (
	"coprox/internal/common/api"

	"github.com/gofiber/fiber/v2"
)

type ScriptApi struct {
	controller *ScriptController
}

func NewScriptApi(controller *ScriptController) api.Route {
	return &ScriptApi{controller: controller}
}

func (h *ScriptApi) Setup(app *fiber.App) {
	scripts := app.Group("/api/scripts")

	scripts.Get("/", h.controller.ListScripts)
	scripts.Post("/", h.controller.CreateScript)
	scripts.Get("/:name", h.controller.GetScript)
	scripts.Delete("/:name", h.controller.DeleteScript)
	scripts.Post("/:name/queue", h.controller.QueueScript)
	scripts.Post("/:name/start", h.controller.StartScript)
	scripts.Get("/:name/logs", h.controller.GetScriptLogs)
	scripts.Post("/:name/logs/:logId/finish", h.controller.FinishScript)
	scripts.Get("/:name/history", h.controller.GetScriptHistory)
}

package system

import (
	"coprox/internal/common/api"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
)

// EventsApi serves the live run feed.
type EventsApi struct {
	hub *WebSocketController
}

func NewEventsApi(hub *WebSocketController) api.Route {
	return &EventsApi{hub: hub}
}

func (h *EventsApi) Setup(app *fiber.App) {
	app.Get("/api/ws", requireUpgrade, websocket.New(h.hub.HandleWebSocket))
}

// requireUpgrade answers plain HTTP requests to the feed with 426.
func requireUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "websocket upgrade required"})
	}
	return c.Next()
}

type DocsApi struct{}

func NewDocsApi() api.Route {
	return &DocsApi{}
}

func (h *DocsApi) Setup(app *fiber.App) {
	app.Get("/swagger", func(c *fiber.Ctx) error {
		return c.Redirect("/swagger/index.html", fiber.StatusMovedPermanently)
	})
	app.Get("/swagger/*", swagger.HandlerDefault)
}

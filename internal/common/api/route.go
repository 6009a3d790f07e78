package api

import "github.com/gofiber/fiber/v2"

// Route is implemented by every feature API that registers handlers on the app.
type Route interface {
	Setup(app *fiber.App)
}

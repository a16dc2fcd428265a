package runtimeRoutes

import (
	controllers "coursebridge/controllers/runtime"
	validators "coursebridge/validators/runtime"

	"github.com/gofiber/fiber/v2"
)

// SetupRuntimeRoutes sets up the runtime protocol endpoints called by the
// injected shim. Calls are scoped by registration id only.
func SetupRuntimeRoutes(app *fiber.App, basePath string, h *controllers.Handler) {
	runtimeGroup := app.Group(basePath)

	runtimeGroup.Post("/initialize", validators.Registration(), h.Initialize)
	runtimeGroup.Post("/get", validators.Keyed(), h.GetValue)
	runtimeGroup.Post("/set", validators.Keyed(), h.SetValue)
	runtimeGroup.Post("/commit", validators.Registration(), h.Commit)
	runtimeGroup.Post("/finish", validators.Registration(), h.Finish)
}

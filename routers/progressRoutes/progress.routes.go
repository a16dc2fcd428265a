package progressRoutes

import (
	controllers "coursebridge/controllers/progress"
	"coursebridge/middleware"
	validators "coursebridge/validators/progress"

	"github.com/gofiber/fiber/v2"
)

// SetupProgressRoutes sets up progress tracking routes
func SetupProgressRoutes(app *fiber.App, h *controllers.Handler) {
	progressGroup := app.Group("/progress", middleware.JWTMiddleware)
	progressGroup.Get("/:id", validators.ProgressID(), h.GetProgress)
	progressGroup.Post("/:id/element/:position/start", validators.Element(), h.StartElement)
	progressGroup.Post("/:id/element/:position/complete", validators.Element(), h.CompleteElement)

	app.Get("/user/progress", middleware.JWTMiddleware, h.ListMyProgress)

	app.Post("/admin/progress/expire", middleware.JWTMiddleware, middleware.RequireRole(middleware.RoleSuperAdmin), validators.Expire(), h.ExpireOverdue)
}

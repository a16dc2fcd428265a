package scheduleRoutes

import (
	controllers "coursebridge/controllers/schedule"
	"coursebridge/middleware"
	validators "coursebridge/validators/schedule"

	"github.com/gofiber/fiber/v2"
)

// SetupScheduleRoutes sets up assignment and enrollment routes
func SetupScheduleRoutes(app *fiber.App, h *controllers.Handler) {
	assignmentGroup := app.Group("/assignment", middleware.JWTMiddleware, middleware.AdminOnly)
	assignmentGroup.Post("/", validators.CreateAssignment(), h.CreateAssignment)
	assignmentGroup.Delete("/:id", validators.ID("assignmentID", "assignment"), h.DeleteAssignment)
	assignmentGroup.Post("/:id/reconcile", validators.ID("assignmentID", "assignment"), h.ReconcileAssignment)

	enrollmentGroup := app.Group("/enrollment", middleware.JWTMiddleware)
	enrollmentGroup.Post("/", validators.Enroll(), h.Enroll)
	enrollmentGroup.Delete("/:id", validators.ID("enrollmentID", "enrollment"), h.DeleteEnrollment)
}

package coursewareRoutes

import (
	controllers "coursebridge/controllers/courseware"
	"coursebridge/middleware"
	validators "coursebridge/validators/courseware"

	"github.com/gofiber/fiber/v2"
)

// SetupPackageRoutes sets up package upload, management and launch routes
func SetupPackageRoutes(app *fiber.App, h *controllers.Handler, maxUploadMB int) {
	packageGroup := app.Group("/package", middleware.JWTMiddleware)

	// Administration
	packageGroup.Post("/upload", middleware.AdminOnly, validators.UploadPackage(maxUploadMB), h.UploadPackage)
	packageGroup.Get("/jobs/:id", middleware.AdminOnly, validators.JobID(), h.GetJob)
	packageGroup.Get("/list", middleware.AdminOnly, validators.ListPackages(), h.ListPackages)
	packageGroup.Get("/:id", middleware.AdminOnly, validators.PackageID(), h.GetPackage)
	packageGroup.Put("/:id", middleware.AdminOnly, validators.UpdatePackage(), h.UpdatePackage)
	packageGroup.Post("/:id/publish", middleware.AdminOnly, validators.PackageID(), h.PublishPackage)
	packageGroup.Delete("/:id", middleware.AdminOnly, validators.PackageID(), h.DeletePackage)

	// Learners
	packageGroup.Post("/:id/launch", validators.PackageID(), h.LaunchPackage)
}

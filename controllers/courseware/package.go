package controllers

import (
	"coursebridge/apperr"
	"coursebridge/middleware"
	"coursebridge/services/catalog"
	"coursebridge/services/ingest"
	"coursebridge/services/launch"
	"coursebridge/utils"
	"log"
	"mime/multipart"
	"os"

	"github.com/gofiber/fiber/v2"
)

// Handler serves package upload, management and launch.
type Handler struct {
	Ingestor   *ingest.Ingestor
	Pool       *ingest.Pool // nil runs ingestion inside the request
	Catalog    *catalog.Catalog
	Launcher   *launch.Resolver
	StagingDir string
}

func (h *Handler) UploadPackage(c *fiber.Ctx) error {
	userID, orgID, ok := middleware.Identity(c)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	file := c.Locals("uploadFile").(*multipart.FileHeader)
	meta := c.Locals("uploadMeta").(ingest.Metadata)
	meta.OrganizationID = orgID
	meta.CreatedBy = userID

	archive, err := utils.SaveUploadedArchive(file, h.StagingDir)
	if err != nil {
		log.Printf("stage upload: %v", err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to store the uploaded archive!", nil)
	}

	if h.Pool != nil {
		job, err := h.Pool.Submit(c.UserContext(), archive, meta)
		if err != nil {
			os.Remove(archive)
			return middleware.ErrorResponse(c, err)
		}
		return middleware.JsonResponse(c, fiber.StatusAccepted, true, "Package queued for processing!", job)
	}

	defer os.Remove(archive)
	pkg, err := h.Ingestor.Ingest(c.UserContext(), archive, meta)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Package uploaded successfully!", pkg)
}

func (h *Handler) GetJob(c *fiber.Ctx) error {
	_, orgID, ok := middleware.Identity(c)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}
	if h.Pool == nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Background ingestion is disabled!", nil)
	}

	job, err := h.Pool.Job(c.UserContext(), c.Locals("jobID").(string))
	if err == nil && job.OrganizationID != orgID {
		err = apperr.NotFound("ingest job %s not found", job.ID)
	}
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Job fetched successfully!", job)
}

func (h *Handler) ListPackages(c *fiber.Ctx) error {
	_, orgID, ok := middleware.Identity(c)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	filter := c.Locals("packageFilter").(catalog.Filter)
	pkgs, total, err := h.Catalog.List(c.UserContext(), orgID, filter)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Packages fetched successfully!", fiber.Map{
		"packages": pkgs,
		"total":    total,
		"page":     filter.Page,
		"limit":    filter.Limit,
	})
}

func (h *Handler) GetPackage(c *fiber.Ctx) error {
	_, orgID, ok := middleware.Identity(c)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	pkg, err := h.Catalog.Get(c.UserContext(), orgID, c.Locals("packageID").(uint))
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Package fetched successfully!", pkg)
}

func (h *Handler) UpdatePackage(c *fiber.Ctx) error {
	_, orgID, ok := middleware.Identity(c)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	update := c.Locals("packageUpdate").(*catalog.Update)
	pkg, err := h.Catalog.Update(c.UserContext(), orgID, c.Locals("packageID").(uint), *update)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Package updated successfully!", pkg)
}

func (h *Handler) PublishPackage(c *fiber.Ctx) error {
	_, orgID, ok := middleware.Identity(c)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	pkg, err := h.Catalog.Publish(c.UserContext(), orgID, c.Locals("packageID").(uint))
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Package published successfully!", pkg)
}

func (h *Handler) DeletePackage(c *fiber.Ctx) error {
	_, orgID, ok := middleware.Identity(c)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	if err := h.Catalog.Delete(c.UserContext(), orgID, c.Locals("packageID").(uint)); err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Package deleted successfully!", nil)
}

func (h *Handler) LaunchPackage(c *fiber.Ctx) error {
	userID, orgID, ok := middleware.Identity(c)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	res, err := h.Launcher.Launch(c.UserContext(), c.Locals("packageID").(uint), launch.Learner{UserID: userID, OrganizationID: orgID})
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Package launched successfully!", res)
}

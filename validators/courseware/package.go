package coursewareValidator

import (
	"coursebridge/middleware"
	"coursebridge/services/catalog"
	"coursebridge/services/ingest"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// splitList accepts repeated form fields or one comma separated value.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// UploadPackage validates the multipart upload of a courseware archive
func UploadPackage(maxUploadMB int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		form, err := c.MultipartForm()
		if err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid multipart form!", nil)
		}

		errors := make(map[string]string)

		files := form.File["file"]
		if len(files) == 0 {
			errors["file"] = "Archive file is required!"
		} else {
			file := files[0]
			if strings.ToLower(filepath.Ext(file.Filename)) != ".zip" {
				errors["file"] = "Archive must be a .zip file!"
			} else if maxUploadMB > 0 && file.Size > int64(maxUploadMB)<<20 {
				errors["file"] = fmt.Sprintf("Archive must not exceed %d MB!", maxUploadMB)
			}
		}

		field := func(name string) string {
			if v := form.Value[name]; len(v) > 0 {
				return strings.TrimSpace(v[0])
			}
			return ""
		}

		meta := ingest.Metadata{
			Title:            field("title"),
			Description:      field("description"),
			Status:           strings.ToUpper(field("status")),
			Tags:             splitList(form.Value["tags"]),
			Prerequisites:    splitList(form.Value["prerequisites"]),
			LearningOutcomes: splitList(form.Value["learning_outcomes"]),
		}

		if meta.Title == "" {
			errors["title"] = "Title is required!"
		} else if len(meta.Title) < 3 {
			errors["title"] = "Title must be at least 3 characters long!"
		}

		if meta.Status != "" && meta.Status != "DRAFT" && meta.Status != "PUBLISHED" {
			errors["status"] = "Status must be DRAFT or PUBLISHED!"
		}

		if credits := field("credits"); credits != "" {
			value, err := strconv.ParseFloat(credits, 64)
			if err != nil || value < 0 {
				errors["credits"] = "Credits must be a non-negative number!"
			}
			meta.Credits = value
		}

		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("uploadFile", files[0])
		c.Locals("uploadMeta", meta)
		return c.Next()
	}
}

// PackageID validates the :id route parameter
func PackageID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := strconv.ParseUint(strings.TrimSpace(c.Params("id")), 10, 64)
		if err != nil || id == 0 {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid package ID!", nil)
		}
		c.Locals("packageID", uint(id))
		return c.Next()
	}
}

// UpdatePackage validates a package metadata edit
func UpdatePackage() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := strconv.ParseUint(strings.TrimSpace(c.Params("id")), 10, 64)
		if err != nil || id == 0 {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid package ID!", nil)
		}

		reqData := new(catalog.Update)
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		errors := make(map[string]string)

		if reqData.Title != nil {
			title := strings.TrimSpace(*reqData.Title)
			if len(title) < 3 {
				errors["title"] = "Title must be at least 3 characters long!"
			}
			reqData.Title = &title
		}
		if reqData.Credits != nil && *reqData.Credits < 0 {
			errors["credits"] = "Credits must be a non-negative number!"
		}
		if reqData.Title == nil && reqData.Description == nil && reqData.Tags == nil &&
			reqData.Credits == nil && reqData.Prerequisites == nil && reqData.LearningOutcomes == nil {
			errors["body"] = "Nothing to update!"
		}

		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("packageID", uint(id))
		c.Locals("packageUpdate", reqData)
		return c.Next()
	}
}

// ListPackages validates list query parameters
func ListPackages() fiber.Handler {
	return func(c *fiber.Ctx) error {
		errors := make(map[string]string)

		filter := catalog.Filter{
			Status: strings.ToUpper(strings.TrimSpace(c.Query("status"))),
			Search: strings.TrimSpace(c.Query("search")),
			Page:   c.QueryInt("page", 1),
			Limit:  c.QueryInt("limit", 20),
		}

		if filter.Status != "" && filter.Status != "DRAFT" && filter.Status != "PUBLISHED" {
			errors["status"] = "Status must be DRAFT or PUBLISHED!"
		}
		if filter.Page < 1 {
			errors["page"] = "Page must be a positive number!"
		}
		if filter.Limit < 1 || filter.Limit > 100 {
			errors["limit"] = "Limit must be between 1 and 100!"
		}

		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("packageFilter", filter)
		return c.Next()
	}
}

// JobID validates the :id route parameter of an ingest job
func JobID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := uuid.Parse(strings.TrimSpace(c.Params("id")))
		if err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid job ID!", nil)
		}
		c.Locals("jobID", id.String())
		return c.Next()
	}
}

package scheduleValidator

import (
	"coursebridge/middleware"
	"coursebridge/models/learning"
	"coursebridge/services/schedule"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

var contentTypes = map[string]bool{
	learning.ContentPackageType:  true,
	learning.ContentModule:       true,
	learning.ContentAssessment:   true,
	learning.ContentSurvey:       true,
	learning.ContentLearningPath: true,
}

func checkContent(errors map[string]string, contentType string, contentID uint, elements []schedule.ElementInput) {
	if !contentTypes[contentType] {
		errors["content_type"] = "Content type must be one of package, module, assessment, survey, learning_path!"
	}
	if contentID == 0 {
		errors["content_id"] = "Content ID is required!"
	}
	for i, e := range elements {
		if !contentTypes[e.ContentType] || e.ContentID == 0 {
			errors[fmt.Sprintf("elements[%d]", i)] = "Element needs a valid content type and content ID!"
		}
		if e.AssignOn != nil && e.DueAt != nil && e.DueAt.Before(*e.AssignOn) {
			errors[fmt.Sprintf("elements[%d]", i)] = "Element due date must not be before its assign-on date!"
		}
	}
}

// CreateAssignment validates an administrator's assignment request
func CreateAssignment() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(schedule.AssignmentInput)
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		errors := make(map[string]string)
		reqData.ContentType = strings.ToLower(strings.TrimSpace(reqData.ContentType))
		checkContent(errors, reqData.ContentType, reqData.ContentID, reqData.Elements)

		if len(reqData.UserIDs) == 0 {
			errors["user_ids"] = "At least one learner is required!"
		}
		for _, id := range reqData.UserIDs {
			if id == 0 {
				errors["user_ids"] = "Learner IDs must be positive!"
				break
			}
		}
		if reqData.AssignOn != nil && reqData.DueAt != nil && reqData.DueAt.Before(*reqData.AssignOn) {
			errors["due_at"] = "Due date must not be before the assign-on date!"
		}

		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("validatedAssignment", reqData)
		return c.Next()
	}
}

// Enroll validates a learner's self-enrollment
func Enroll() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(schedule.EnrollmentInput)
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		errors := make(map[string]string)
		reqData.ContentType = strings.ToLower(strings.TrimSpace(reqData.ContentType))
		checkContent(errors, reqData.ContentType, reqData.ContentID, reqData.Elements)

		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("validatedEnrollment", reqData)
		return c.Next()
	}
}

// ID validates a numeric :id route parameter and stores it under key
func ID(key, label string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := strconv.ParseUint(strings.TrimSpace(c.Params("id")), 10, 64)
		if err != nil || id == 0 {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid "+label+" ID!", nil)
		}
		c.Locals(key, uint(id))
		return c.Next()
	}
}

package progressValidator

import (
	"coursebridge/middleware"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// ProgressID validates the :id route parameter
func ProgressID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := strconv.ParseUint(strings.TrimSpace(c.Params("id")), 10, 64)
		if err != nil || id == 0 {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid progress ID!", nil)
		}
		c.Locals("progressID", uint(id))
		return c.Next()
	}
}

// Element validates the :id and :position route parameters
func Element() fiber.Handler {
	return func(c *fiber.Ctx) error {
		errors := make(map[string]string)

		id, err := strconv.ParseUint(strings.TrimSpace(c.Params("id")), 10, 64)
		if err != nil || id == 0 {
			errors["id"] = "Invalid progress ID!"
		}
		position, err := strconv.Atoi(strings.TrimSpace(c.Params("position")))
		if err != nil || position < 0 {
			errors["position"] = "Position must be a non-negative number!"
		}

		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("progressID", uint(id))
		c.Locals("position", position)
		return c.Next()
	}
}

// Expire validates a manual expiry run; "at" defaults to now
func Expire() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(struct {
			At *time.Time `json:"at"`
		})
		if len(c.Body()) > 0 {
			if err := c.BodyParser(reqData); err != nil {
				return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
			}
		}

		at := time.Now().UTC()
		if reqData.At != nil {
			at = reqData.At.UTC()
		}
		c.Locals("expireAt", at)
		return c.Next()
	}
}

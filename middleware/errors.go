package middleware

import (
	"log"

	"coursebridge/apperr"

	"github.com/gofiber/fiber/v2"
)

// ErrorResponse writes a service error with the status its kind maps to.
// Storage failures are logged and reported without detail.
func ErrorResponse(c *fiber.Ctx, err error) error {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return JsonResponse(c, fiber.StatusUnprocessableEntity, false, apperr.MessageOf(err), nil)
	case apperr.KindNotFound:
		return JsonResponse(c, fiber.StatusNotFound, false, apperr.MessageOf(err), nil)
	case apperr.KindConflict:
		return JsonResponse(c, fiber.StatusConflict, false, apperr.MessageOf(err), nil)
	case apperr.KindState:
		return JsonResponse(c, fiber.StatusConflict, false, apperr.MessageOf(err), nil)
	default:
		log.Printf("%s %s: %v", c.Method(), c.Path(), err)
		return JsonResponse(c, fiber.StatusInternalServerError, false, "Something went wrong, please try again!", nil)
	}
}

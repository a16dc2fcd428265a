package runtimeValidator

import (
	"coursebridge/middleware"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Request is the body of every runtime protocol call
type Request struct {
	RegistrationID string            `json:"rid"`
	Key            string            `json:"key"`
	Value          string            `json:"value"`
	Values         map[string]string `json:"values"`
}

func parse(c *fiber.Ctx, needKey bool) (*Request, map[string]string, error) {
	reqData := new(Request)
	if err := c.BodyParser(reqData); err != nil {
		return nil, nil, err
	}

	errors := make(map[string]string)
	reqData.RegistrationID = strings.TrimSpace(reqData.RegistrationID)
	if reqData.RegistrationID == "" {
		errors["rid"] = "Registration ID is required!"
	}
	if needKey && strings.TrimSpace(reqData.Key) == "" {
		errors["key"] = "Key is required!"
	}
	for k := range reqData.Values {
		if strings.TrimSpace(k) == "" {
			errors["values"] = "Keys must not be empty!"
			break
		}
	}
	return reqData, errors, nil
}

func validate(needKey bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData, errors, err := parse(c, needKey)
		if err != nil {
			return middleware.ValidationErrorResponse(c, map[string]string{"body": "Invalid request body!"})
		}
		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}
		c.Locals("runtimeRequest", reqData)
		return c.Next()
	}
}

// Registration validates calls that carry only the registration id (and optional values)
func Registration() fiber.Handler { return validate(false) }

// Keyed validates GetValue/SetValue calls
func Keyed() fiber.Handler { return validate(true) }

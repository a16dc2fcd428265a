package controllers

import (
	"coursebridge/metrics"
	"coursebridge/middleware"
	"coursebridge/services/registration"
	runtimeValidator "coursebridge/validators/runtime"
	"log"

	"github.com/gofiber/fiber/v2"
)

// Handler serves the runtime protocol. Protocol failures are reported in
// errorCode with status 200 so bridged content can read them.
type Handler struct {
	Registrations *registration.Manager
}

func request(c *fiber.Ctx) *runtimeValidator.Request {
	return c.Locals("runtimeRequest").(*runtimeValidator.Request)
}

func respond(c *fiber.Ctx, operation string, err error, data fiber.Map) error {
	code := registration.ErrorCode(err)
	metrics.RuntimeCalls.WithLabelValues(operation, code).Inc()

	if data == nil {
		data = fiber.Map{}
	}
	data["success"] = err == nil
	data["errorCode"] = code

	message := "OK"
	if err != nil {
		message = err.Error()
		if code == registration.CodeStoreFailure || code == registration.CodeGeneral {
			log.Printf("runtime %s failed: %v", operation, err)
		}
	}
	return middleware.JsonResponse(c, fiber.StatusOK, err == nil, message, data)
}

func (h *Handler) Initialize(c *fiber.Ctx) error {
	req := request(c)
	values, err := h.Registrations.Initialize(c.UserContext(), req.RegistrationID)
	if values == nil {
		values = map[string]string{}
	}
	return respond(c, "initialize", err, fiber.Map{"values": values})
}

func (h *Handler) GetValue(c *fiber.Ctx) error {
	req := request(c)
	value, err := h.Registrations.GetValue(c.UserContext(), req.RegistrationID, req.Key)
	return respond(c, "get", err, fiber.Map{"value": value})
}

func (h *Handler) SetValue(c *fiber.Ctx) error {
	req := request(c)
	err := h.Registrations.SetValue(c.UserContext(), req.RegistrationID, req.Key, req.Value)
	return respond(c, "set", err, nil)
}

func (h *Handler) Commit(c *fiber.Ctx) error {
	req := request(c)
	err := h.Registrations.Commit(c.UserContext(), req.RegistrationID, req.Values)
	return respond(c, "commit", err, nil)
}

func (h *Handler) Finish(c *fiber.Ctx) error {
	req := request(c)
	reg, err := h.Registrations.Finish(c.UserContext(), req.RegistrationID, req.Values)
	data := fiber.Map{}
	if reg != nil && reg.CompletedAt != nil {
		data["completedAt"] = reg.CompletedAt
	}
	return respond(c, "finish", err, data)
}

package controllers

import (
	"coursebridge/middleware"
	"coursebridge/services/schedule"

	"github.com/gofiber/fiber/v2"
)

// Handler serves assignments and enrollments.
type Handler struct {
	Schedules *schedule.Service
}

func (h *Handler) CreateAssignment(c *fiber.Ctx) error {
	userID, orgID, ok := middleware.Identity(c)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	in := c.Locals("validatedAssignment").(*schedule.AssignmentInput)
	in.OrganizationID = orgID
	in.CreatedBy = userID

	res, err := h.Schedules.CreateAssignment(c.UserContext(), *in)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Assignment created successfully!", res)
}

func (h *Handler) DeleteAssignment(c *fiber.Ctx) error {
	_, orgID, ok := middleware.Identity(c)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	if err := h.Schedules.DeleteAssignment(c.UserContext(), orgID, c.Locals("assignmentID").(uint)); err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Assignment deleted successfully!", nil)
}

func (h *Handler) ReconcileAssignment(c *fiber.Ctx) error {
	_, orgID, ok := middleware.Identity(c)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	created, err := h.Schedules.Reconcile(c.UserContext(), orgID, c.Locals("assignmentID").(uint))
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Assignment reconciled successfully!", fiber.Map{"created": created})
}

func (h *Handler) Enroll(c *fiber.Ctx) error {
	userID, orgID, ok := middleware.Identity(c)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	in := c.Locals("validatedEnrollment").(*schedule.EnrollmentInput)
	in.OrganizationID = orgID
	in.UserID = userID

	res, err := h.Schedules.Enroll(c.UserContext(), *in)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Enrolled successfully!", res)
}

func (h *Handler) DeleteEnrollment(c *fiber.Ctx) error {
	userID, orgID, ok := middleware.Identity(c)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	// administrators may remove any enrollment of their organization
	if role, _ := c.Locals("role").(string); role == middleware.RoleAdmin || role == middleware.RoleSuperAdmin {
		userID = 0
	}
	if err := h.Schedules.DeleteEnrollment(c.UserContext(), orgID, userID, c.Locals("enrollmentID").(uint)); err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Enrollment deleted successfully!", nil)
}

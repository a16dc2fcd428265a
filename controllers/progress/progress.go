package controllers

import (
	"coursebridge/middleware"
	"coursebridge/services/progress"
	"coursebridge/utils"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Handler serves progress records.
type Handler struct {
	Tracker *progress.Tracker
}

func isAdmin(c *fiber.Ctx) bool {
	role, _ := c.Locals("role").(string)
	return role == middleware.RoleAdmin || role == middleware.RoleSuperAdmin
}

func (h *Handler) GetProgress(c *fiber.Ctx) error {
	userID, orgID, ok := middleware.Identity(c)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	view, err := h.Tracker.Get(c.UserContext(), c.Locals("progressID").(uint))
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	// learners see their own records, administrators their organization's
	if view.OrganizationID != orgID || (view.UserID != userID && !isAdmin(c)) {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Progress not found!", nil)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Progress fetched successfully!", view)
}

func (h *Handler) ListMyProgress(c *fiber.Ctx) error {
	userID, _, ok := middleware.Identity(c)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	views, err := h.Tracker.ListForUser(c.UserContext(), userID)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Progress fetched successfully!", views)
}

func (h *Handler) StartElement(c *fiber.Ctx) error {
	userID, _, ok := middleware.Identity(c)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	view, err := h.Tracker.StartElement(c.UserContext(), c.Locals("progressID").(uint), userID, c.Locals("position").(int))
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Element started!", view)
}

func (h *Handler) CompleteElement(c *fiber.Ctx) error {
	userID, _, ok := middleware.Identity(c)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	view, err := h.Tracker.CompleteElement(c.UserContext(), c.Locals("progressID").(uint), userID, c.Locals("position").(int))
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Element completed!", view)
}

func (h *Handler) ExpireOverdue(c *fiber.Ctx) error {
	res, err := utils.RunExpiry(c.UserContext(), h.Tracker, c.Locals("expireAt").(time.Time))
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Expiry pass completed!", res)
}

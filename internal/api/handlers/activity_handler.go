package handlers

import (
	"github.com/crosspostr/crosspostr/internal/service"
	"github.com/gofiber/fiber/v2"
)

type ActivityHandler struct {
	s service.ActivityService
}

func NewActivityHandler(s service.ActivityService) *ActivityHandler {
	return &ActivityHandler{s: s}
}

func (h *ActivityHandler) Feed(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.QueryInt("post_id", 0)

	if postID != 0 {
		results, err := h.s.ResultsForPost(c.Context(), userID, int64(postID))
		if err != nil {
			return c.Status(statusFor(err)).JSON(fiber.Map{
				"error": "Unable to list post results",
			})
		}
		return c.Status(fiber.StatusOK).JSON(results)
	}

	feed, err := h.s.Feed(c.Context(), userID, c.QueryInt("limit", 0))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list activity",
		})
	}

	return c.Status(fiber.StatusOK).JSON(feed)
}

func (h *ActivityHandler) Analytics(c *fiber.Ctx) error {
	userID := GetUserID(c)

	entries, err := h.s.Analytics(c.Context(), userID, c.QueryInt("days", 0))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list analytics",
		})
	}

	return c.Status(fiber.StatusOK).JSON(entries)
}

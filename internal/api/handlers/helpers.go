package handlers

import (
	"errors"
	"strconv"

	"github.com/crosspostr/crosspostr/internal/service"
	"github.com/crosspostr/crosspostr/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

func GetUserID(c *fiber.Ctx) int64 {
	userID, _ := strconv.Atoi(c.Locals("user_id").(string))
	return int64(userID)
}

// userIDFromState recovers the user from the OAuth state, which carries the
// session token through the round trip to the platform.
func userIDFromState(secretKey, state string) (int64, error) {
	claims, err := utils.ValidateToken(secretKey, state)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(claims.UserID, 10, 64)
}

// statusFor maps validation failures to 400 and everything else to 500.
func statusFor(err error) int {
	if errors.Is(err, service.ErrValidation) {
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}

package handlers

import (
	"fmt"
	"log/slog"

	config "github.com/crosspostr/crosspostr/configs"
	"github.com/crosspostr/crosspostr/internal/service"
	"github.com/gofiber/fiber/v2"
)

type PlatformHandler struct {
	s   service.PlatformService
	cfg config.Config
}

func NewPlatformHandler(s service.PlatformService, cfg config.Config) *PlatformHandler {
	return &PlatformHandler{s: s, cfg: cfg}
}

// AddSocialAccount starts the OAuth connect flow for platforms that have
// one; the session token rides along as state so the callback can recover
// the user.
func (h *PlatformHandler) AddSocialAccount(c *fiber.Ctx) error {
	platform := c.Params("platform")
	tokenString := c.Cookies(h.cfg.CookieName)

	authURL, err := h.s.GetAuthURL(c.Context(), platform, tokenString)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Redirect(authURL, fiber.StatusTemporaryRedirect)
}

func (h *PlatformHandler) CallbackHandler(c *fiber.Ctx) error {
	platform := c.Params("platform")
	code := c.Query("code")
	state := c.Query("state")

	userID, err := userIDFromState(h.cfg.SecretKey, state)
	if err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid state",
		})
	}

	if err := h.s.HandleOAuthCallback(c.Context(), platform, code, userID); err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to connect account",
		})
	}

	return c.Redirect(fmt.Sprintf("%s/accounts", h.cfg.FrontendURL), fiber.StatusTemporaryRedirect)
}

// ConnectAccount connects credential platforms: the request body carries the
// platform-specific secret (bot token, webhook URL, app password).
func (h *PlatformHandler) ConnectAccount(c *fiber.Ctx) error {
	userID := GetUserID(c)
	platform := c.Params("platform")

	accountID, err := h.s.ConnectWithCredentials(c.Context(), platform, c.Body(), userID)
	if err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":    "Account connected",
		"account_id": accountID,
	})
}

func (h *PlatformHandler) ListSocialAccounts(c *fiber.Ctx) error {
	userID := GetUserID(c)

	accounts, err := h.s.List(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list social accounts",
		})
	}

	return c.Status(fiber.StatusOK).JSON(accounts)
}

func (h *PlatformHandler) DeleteSocialAccount(c *fiber.Ctx) error {
	userID := GetUserID(c)
	accountID := c.QueryInt("id", 0)

	if err := h.s.Disconnect(c.Context(), userID, int64(accountID)); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to remove account",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}

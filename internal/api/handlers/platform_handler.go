package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/calebms/postbridge/internal/apperr"
	"github.com/calebms/postbridge/internal/service"
)

type PlatformHandler struct {
	ls service.LinkingService
}

func NewPlatformHandler(ls service.LinkingService) *PlatformHandler {
	return &PlatformHandler{ls: ls}
}

// AddSocialAccount starts the authorize leg and redirects the caller to
// the provider.
func (h *PlatformHandler) AddSocialAccount(c *fiber.Ctx) error {
	userID := GetUserID(c)
	orgID := int64(c.QueryInt("org_id", 0))
	accountType := c.Query("account_type")

	authURL, err := h.ls.AuthURL(c.Context(), c.Params("platform"), userID, orgID, accountType)
	if err != nil {
		status := fiber.StatusBadRequest
		if apperr.IsConfig(err) {
			status = fiber.StatusInternalServerError
		}
		return c.Status(status).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Redirect(authURL)
}

// CallbackHandler finishes the callback leg. It always redirects back to
// the frontend; failures surface only as a coarse error code in the query.
func (h *PlatformHandler) CallbackHandler(c *fiber.Ctx) error {
	redirectURL := h.ls.HandleCallback(
		c.Context(),
		c.Params("platform"),
		c.Query("code"),
		c.Query("state"),
		c.Query("error"),
	)
	return c.Redirect(redirectURL, fiber.StatusTemporaryRedirect)
}

func (h *PlatformHandler) ListSocialAccounts(c *fiber.Ctx) error {
	userID := GetUserID(c)

	accountList, err := h.ls.List(c.Context(), userID)
	if err != nil {
		log.Println(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch social accounts",
		})
	}

	return c.Status(fiber.StatusOK).JSON(accountList)
}

func (h *PlatformHandler) DisconnectSocialAccount(c *fiber.Ctx) error {
	userID := GetUserID(c)
	accountID := c.QueryInt("id", 0)

	err := h.ls.Disconnect(c.Context(), userID, int64(accountID))
	if err != nil {
		status := fiber.StatusInternalServerError
		if err == apperr.ErrNotFound {
			status = fiber.StatusNotFound
		} else if apperr.IsValidation(err) {
			status = fiber.StatusBadRequest
		}
		return c.Status(status).JSON(fiber.Map{
			"error": "Unable to disconnect social account",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}

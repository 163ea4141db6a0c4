package controller

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"gpodo/lifecycle"
	"gpodo/models"
	"gpodo/utils"
)

func currentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals("user").(*models.User)
	return user
}

func currentUserID(c *fiber.Ctx) uint {
	if user := currentUser(c); user != nil {
		return user.ID
	}
	return 0
}

func parseIDParam(c *fiber.Ctx, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// parseBody decodes and validates a JSON body; on failure the 400
// response has already been written and ok is false.
func parseBody(c *fiber.Ctx, req interface{}) (bool, error) {
	if err := c.BodyParser(req); err != nil {
		return false, badRequest(c, "Invalid request body")
	}
	if err := utils.ValidateStruct(req); err != nil {
		return false, badRequest(c, err.Error())
	}
	return true, nil
}

// requestLanguage picks ?lang=, then the profile preference, then
// Accept-Language.
func requestLanguage(c *fiber.Ctx) lifecycle.Language {
	if q := c.Query("lang"); q != "" {
		return lifecycle.NormalizeLanguage(q)
	}
	if user := currentUser(c); user != nil && user.Language != "" {
		return lifecycle.NormalizeLanguage(user.Language)
	}
	return lifecycle.NormalizeLanguage(c.Get(fiber.HeaderAcceptLanguage))
}

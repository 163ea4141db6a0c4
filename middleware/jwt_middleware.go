package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"gpodo/models"
	"gpodo/utils"
)

var (
	errMalformedAuth = errors.New("Invalid authorization format")
	errMissingAuth   = errors.New("Authorization required")
)

// Protected authenticates the request with an access token taken from
// the Authorization header or, for browsers and websocket handshakes,
// the access_token cookie. The loaded user is stored in Locals("user").
func Protected(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := accessToken(c)
		if err != nil {
			return unauthorized(c, err.Error())
		}

		claims, err := utils.ParseAccessToken(token)
		if err != nil {
			return unauthorized(c, "Invalid or expired token")
		}

		var user models.User
		if err := db.WithContext(c.UserContext()).First(&user, claims.UserID).Error; err != nil {
			return unauthorized(c, "User not found")
		}
		if !user.IsActive {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Account is not active",
			})
		}
		// sign-out bumps the version
		if claims.TokenVersion != user.TokenVersion {
			return unauthorized(c, "Token has been revoked")
		}

		c.Locals("user", &user)
		c.Locals("sessionID", claims.SessionID)
		return c.Next()
	}
}

func accessToken(c *fiber.Ctx) (string, error) {
	if header := c.Get(fiber.HeaderAuthorization); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || scheme != "Bearer" || token == "" {
			return "", errMalformedAuth
		}
		return token, nil
	}
	if token := c.Cookies("access_token"); token != "" {
		return token, nil
	}
	return "", errMissingAuth
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": msg})
}

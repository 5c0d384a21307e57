package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"

	"github.com/zepulhq/meetings/pkg/internal/database"
	"github.com/zepulhq/meetings/pkg/internal/models"
)

// authMiddleware resolves the recruiter account behind a bearer token.
// Candidate-facing routes stay out of this; the capability token in the
// path is their only credential.
func authMiddleware(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	rawToken := strings.TrimPrefix(header, "Bearer ")
	if rawToken == "" || rawToken == header {
		return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(rawToken, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(viper.GetString("security.jwt_secret")), nil
	})
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, err.Error())
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "malformed token subject")
	}

	var account models.Account
	if err := database.C.Where("email = ?", sub).First(&account).Error; err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "unknown account")
	}

	c.Locals("user", account)
	return c.Next()
}

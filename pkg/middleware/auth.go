// Package middleware holds the fiber middleware shared by the HTTP routes.
package middleware

import (
	"errors"
	"strings"

	"github.com/amirasaad/giftfund/pkg/config"
	"github.com/amirasaad/giftfund/pkg/domain"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// UserContextKey is where the verified token is stored in c.Locals.
	UserContextKey = "user"
	// UserIDClaim carries the caller identity.
	UserIDClaim = "user_id"
)

// JwtProtected verifies the bearer token with the configured HS256 secret.
func JwtProtected(cfg *config.Jwt) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:   jwtware.SigningKey{JWTAlg: jwtware.HS256, Key: []byte(cfg.Secret)},
		ContextKey:   UserContextKey,
		ErrorHandler: jwtError,
	})
}

const problemContentType = "application/problem+json"

func jwtError(c *fiber.Ctx, err error) error {
	if errors.Is(err, jwtware.ErrJWTMissingOrMalformed) || (err != nil && strings.EqualFold(err.Error(), jwtware.ErrJWTMissingOrMalformed.Error())) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"type":   "about:blank",
			"title":  "Missing or malformed JWT",
			"status": fiber.StatusBadRequest,
			"detail": err.Error(),
		}, problemContentType)
	}
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"type":   "about:blank",
		"title":  "Invalid or expired JWT",
		"status": fiber.StatusUnauthorized,
	}, problemContentType)
}

// CurrentUserID returns the caller identity from the verified token. The
// user_id claim is preferred; sub is accepted for tokens minted elsewhere.
func CurrentUserID(c *fiber.Ctx) (string, error) {
	token, ok := c.Locals(UserContextKey).(*jwt.Token)
	if !ok || token == nil {
		return "", domain.ErrUnauthorized
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", domain.ErrUnauthorized
	}
	if id, ok := claims[UserIDClaim].(string); ok && strings.TrimSpace(id) != "" {
		return id, nil
	}
	sub, err := claims.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return "", errors.Join(domain.ErrUnauthorized, errors.New("token carries no user id"))
	}
	return sub, nil
}

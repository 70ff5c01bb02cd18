package serverutils

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const userIDKey = "user_id"

var ErrMissingIdentity = errors.New("missing user identity")

// NewJwtMiddleware verifies an HS256 bearer token and stores its user_id
// claim, which is the owner id for every document operation.
func NewJwtMiddleware(secret string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		authHeader := ctx.Get("Authorization")
		if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Missing token"))
		}
		tokenStr := authHeader[7:]

		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

		if err != nil || !token.Valid {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Invalid token"))
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Invalid claims"))
		}

		userId, _ := claims[userIDKey].(string)
		if _, err := uuid.Parse(userId); err != nil {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Invalid user id claim"))
		}

		ctx.Locals(userIDKey, userId)
		return ctx.Next()
	}
}

// UserID returns the owner id stored by the JWT middleware.
func UserID(ctx *fiber.Ctx) (uuid.UUID, error) {
	raw, ok := ctx.Locals(userIDKey).(string)
	if !ok {
		return uuid.Nil, NewHTTPError(fiber.StatusUnauthorized, "Unauthorized", ErrMissingIdentity)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, NewHTTPError(fiber.StatusUnauthorized, "Unauthorized", err)
	}
	return id, nil
}

// SignToken issues a token for userId. Used by tests and the reconcile CLI.
func SignToken(secret string, userId uuid.UUID) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{userIDKey: userId.String()})
	return token.SignedString([]byte(secret))
}

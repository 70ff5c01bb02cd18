package serverutils

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newApp() *fiber.App {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware())
	app.Get("/me", NewJwtMiddleware(testSecret), func(ctx *fiber.Ctx) error {
		id, err := UserID(ctx)
		if err != nil {
			return err
		}
		return ctx.JSON(SuccessResponse("ok", id.String()))
	})
	return app
}

func TestJwtMiddleware(t *testing.T) {
	owner := uuid.New()
	valid, err := SignToken(testSecret, owner)
	require.NoError(t, err)
	forged, err := SignToken("other-secret", owner)
	require.NoError(t, err)
	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x"}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "valid", header: "Bearer " + valid, status: 200},
		{name: "missing", header: "", status: 401},
		{name: "wrong secret", header: "Bearer " + forged, status: 401},
		{name: "no user claim", header: "Bearer " + noUser, status: 401},
	}

	app := newApp()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			var body BaseResponse[string]
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			if tt.status == 200 {
				assert.True(t, body.Success)
				assert.Equal(t, owner.String(), body.Data)
			} else {
				assert.False(t, body.Success)
			}
		})
	}
}

type probe struct {
	Query string `query:"q" validate:"required"`
	K     int    `query:"k" validate:"omitempty,min=1,max=50"`
}

func TestErrorHandlerMapsErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{name: "http error", err: NewHTTPError(404, "Document not found", errors.New("x")), status: 404, message: "Document not found"},
		{name: "validation", err: ValidateRequest(probe{K: 99}), status: 400, message: "q is required"},
		{name: "fiber error", err: fiber.ErrRequestEntityTooLarge, status: 413},
		{name: "unknown", err: errors.New("db down"), status: 500, message: "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Use(ErrorHandlerMiddleware())
			app.Get("/", func(*fiber.Ctx) error { return tt.err })

			resp, err := app.Test(httptest.NewRequest("GET", "/", nil), -1)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			var body BaseResponse[any]
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.status, body.Code)
			if tt.message != "" {
				assert.Contains(t, body.Message, tt.message)
			}
		})
	}
}

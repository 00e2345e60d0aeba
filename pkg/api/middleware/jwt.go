package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jordanlanch/rivalscope/pkg/auth"
	"github.com/jordanlanch/rivalscope/pkg/models"
	"github.com/labstack/echo/v4"
)

// Context keys set by JWTMiddleware
const (
	ContextUserID         = "user_id"
	ContextOrganizationID = "organization_id"
	ContextUserEmail      = "user_email"
	ContextToken          = "token"
)

// JWTMiddleware creates a JWT authentication middleware
func JWTMiddleware(secret string) echo.MiddlewareFunc {
	return JWTMiddlewareWithBlacklist(secret, nil)
}

// JWTMiddlewareWithBlacklist creates a JWT authentication middleware with revocation checks.
// Tokens are accepted from the Authorization header, or from the token query parameter
// for download links such as the XLSX export.
func JWTMiddlewareWithBlacklist(secret string, blacklist *auth.TokenBlacklist) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, errResp := extractToken(c)
			if errResp != nil {
				return c.JSON(http.StatusUnauthorized, errResp)
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()

			claims, err := auth.ValidateJWTWithBlacklist(ctx, token, secret, blacklist)
			if err != nil {
				code := "invalid_token"
				if errors.Is(err, auth.ErrTokenRevoked) {
					code = "token_revoked"
				}
				return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
					Error:   code,
					Message: "Token is invalid or expired",
				})
			}

			c.Set(ContextToken, token)
			c.Set(ContextUserID, claims.UserID)
			c.Set(ContextOrganizationID, claims.OrganizationID)
			c.Set(ContextUserEmail, claims.Email)

			return next(c)
		}
	}
}

func extractToken(c echo.Context) (string, *models.ErrorResponse) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", &models.ErrorResponse{
				Error:   "invalid_token_format",
				Message: "Authorization header must be 'Bearer {token}'",
			}
		}
		return parts[1], nil
	}

	if c.Request().Method == http.MethodGet {
		if token := c.QueryParam("token"); token != "" {
			return token, nil
		}
	}

	return "", &models.ErrorResponse{
		Error:   "missing_token",
		Message: "Authorization header is required",
	}
}

// UserID returns the authenticated user id
func UserID(c echo.Context) string {
	id, _ := c.Get(ContextUserID).(string)
	return id
}

// OrganizationID returns the caller's organization id
func OrganizationID(c echo.Context) string {
	id, _ := c.Get(ContextOrganizationID).(string)
	return id
}

package middleware

import (
	"net/http"

	"github.com/jordanlanch/rivalscope/pkg/models"
	"github.com/labstack/echo/v4"
)

// RequireOrganization rejects callers whose token carries no organization.
// Every analysis belongs to an organization, so tenant-less tokens cannot use the API.
// Apply it after the JWT middleware.
func RequireOrganization() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if userID, _ := c.Get("user_id").(string); userID == "" {
				return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
					Error:   "unauthorized",
					Message: "Authentication required",
				})
			}
			if orgID, _ := c.Get("organization_id").(string); orgID == "" {
				return c.JSON(http.StatusForbidden, models.ErrorResponse{
					Error:   "organization_required",
					Message: "Token is not bound to an organization",
				})
			}
			return next(c)
		}
	}
}

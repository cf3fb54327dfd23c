package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	// OperatorIDHeader carries the acting operator's profile id, set by the
	// authenticating frontend proxy.
	OperatorIDHeader = "X-Operator-ID"

	operatorIDContextKey = "operator_id"
)

// Operator extracts the acting operator's id from the request header so
// regeneration runs can be attributed. Absent or malformed headers leave the
// context empty; endpoints that require attribution check for it themselves.
func Operator() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if raw := c.Request().Header.Get(OperatorIDHeader); raw != "" {
				if id, err := uuid.Parse(raw); err == nil {
					c.Set(operatorIDContextKey, id)
				}
			}
			return next(c)
		}
	}
}

// GetOperatorID returns the operator id from the echo context, if present.
func GetOperatorID(c echo.Context) (uuid.UUID, bool) {
	id, ok := c.Get(operatorIDContextKey).(uuid.UUID)
	return id, ok
}

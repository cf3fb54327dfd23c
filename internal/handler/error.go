package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/NachoGeno/kinetix-flow-scheduler-sub001/internal/domain"
)

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

// statusFromCode maps domain error codes to HTTP statuses.
func statusFromCode(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest
	case domain.ENOTFOUND:
		return http.StatusNotFound
	case domain.ECONFLICT:
		return http.StatusConflict
	case domain.EGONE:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the JSON error envelope. Pipeline messages go out
// verbatim; operators need the missing document or storage key to act.
func respondError(c echo.Context, err error) error {
	code := domain.ErrorCode(err)
	return c.JSON(statusFromCode(code), errorResponse{
		Error: domain.ErrorMessage(err),
		Code:  code,
	})
}

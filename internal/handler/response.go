package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"transit/internal/domain"
	"transit/internal/repository"
	"transit/internal/service"
)

// Settlement status codes on the wire: 0 = settled normally,
// 1 = payment anomaly, 2 = travel anomaly.
const (
	statusNormal         = 0
	statusPaymentAnomaly = 1
	statusTravelAnomaly  = 2
)

// timeLayout is the wire format for timestamps.
const timeLayout = "2006-01-02T15:04:05Z07:00"

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	if code == http.StatusInternalServerError {
		_ = c.Error(err)
		c.JSON(code, ErrorResponse{Error: "internal error"})
		return
	}
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidUserID),
		errors.Is(err, service.ErrInvalidMode),
		errors.Is(err, service.ErrInvalidStation),
		errors.Is(err, service.ErrInvalidTimestamp),
		errors.Is(err, service.ErrInvalidTripID),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrUnknownStation):
		return http.StatusBadRequest

	// Conflict errors
	case errors.Is(err, service.ErrOpenTripConflict),
		errors.Is(err, service.ErrNoOpenTrip),
		errors.Is(err, service.ErrNotRepayable),
		errors.Is(err, service.ErrUserBusy):
		return http.StatusConflict

	// Repay rejections with no state change
	case errors.Is(err, service.ErrRepayAmountMismatch):
		return http.StatusUnprocessableEntity

	// Repay-time insufficient funds: the trip stays PAYMENT_FAILED.
	case errors.Is(err, domain.ErrInsufficientBalance):
		return http.StatusPaymentRequired

	case errors.Is(err, service.ErrTripAccessDenied):
		return http.StatusForbidden

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}

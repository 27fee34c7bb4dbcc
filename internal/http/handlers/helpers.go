// README: Error mapping between module sentinels and HTTP statuses.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cookroute/internal/modules/driver"
	"cookroute/internal/modules/order"
	"cookroute/internal/modules/payment"
)

func abortError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusOf(err), gin.H{"error": err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, order.ErrBadRequest), errors.Is(err, order.ErrTooNew):
		return http.StatusBadRequest
	case errors.Is(err, order.ErrNotFound), errors.Is(err, driver.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, order.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, order.ErrInvalidState),
		errors.Is(err, order.ErrConflict),
		errors.Is(err, order.ErrMixedCooks),
		errors.Is(err, order.ErrAlreadyPaid):
		return http.StatusConflict
	case errors.Is(err, order.ErrNoDriver):
		return http.StatusServiceUnavailable
	case errors.Is(err, driver.ErrThrottled):
		return http.StatusTooManyRequests
	case errors.Is(err, payment.ErrBadSignature):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

package rest

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Asuura666/game-habits/game/gameerr"
)

// statusFor maps the engine's error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, gameerr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, gameerr.ErrInsufficientResource):
		return http.StatusPaymentRequired
	case errors.Is(err, gameerr.ErrConcurrencyConflict):
		return http.StatusConflict
	case errors.Is(err, gameerr.ErrProviderUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, gameerr.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with its mapped status. Unclassified errors are
// not echoed to the client.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		msg = "internal error"
	}
	c.JSON(status, gin.H{"error": msg})
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// isUniqueViolation detects duplicate-key errors from common database drivers.
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") ||
		strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "already exists")
}

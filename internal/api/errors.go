package api

import (
	"errors"
	"net/http"

	"powerbank-rental-go/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type errorBody struct {
	Kind    store.Kind        `json:"kind"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func statusFor(kind store.Kind) int {
	switch kind {
	case store.KindNotFound:
		return http.StatusNotFound
	case store.KindInvalidState, store.KindConflict:
		return http.StatusConflict
	case store.KindInsufficientFunds:
		return http.StatusPaymentRequired
	case store.KindResourceUnavailable:
		return http.StatusServiceUnavailable
	case store.KindAuth:
		return http.StatusUnauthorized
	case store.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError writes a typed error response. Internal failures are logged
// and reported without their cause.
func abortWithError(c *gin.Context, err error) {
	kind := store.KindOf(err)
	body := errorBody{Kind: kind, Message: err.Error()}

	var se *store.Error
	if errors.As(err, &se) {
		body.Message = se.Message
		body.Details = se.Details
	}
	if kind == store.KindInternal {
		zap.L().Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		body.Message = "internal error"
		body.Details = nil
	}

	c.AbortWithStatusJSON(statusFor(kind), gin.H{"error": body})
}

func abortWithStatus(c *gin.Context, status int, kind store.Kind, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": errorBody{Kind: kind, Message: message}})
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/vinitamart/storefront/internal/domain/apperr"
)

type errorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// statusOf maps an error kind to its HTTP status.
func statusOf(k apperr.Kind) int {
	switch k {
	case apperr.KindValidation, apperr.KindConflict:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the error response. Unclassified errors are logged and hidden
// behind a generic message.
func fail(c *gin.Context, err error) {
	kind, msg := apperr.Classify(err)
	lg := zctx.From(c.Request.Context())
	switch kind {
	case apperr.KindInternal:
		lg.Error("Request failed", zap.Error(err))
		msg = "Internal Server Error"
	case apperr.KindUpstream:
		lg.Warn("Upstream failure", zap.Error(err))
	}
	c.AbortWithStatusJSON(statusOf(kind), errorBody{Message: msg})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Message: msg})
}

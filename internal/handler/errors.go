package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ultrathink/discovery-web/internal/client"
	"github.com/ultrathink/discovery-web/internal/export"
	"github.com/ultrathink/discovery-web/internal/service"
	"github.com/ultrathink/discovery-web/internal/session"
	"github.com/ultrathink/discovery-web/pkg/log"
	"github.com/ultrathink/discovery-web/pkg/response"
)

const (
	// UnhandledMessage is shown when a handler panics.
	UnhandledMessage = "Something went wrong. Reload the page to try again."

	// StatusClientClosedRequest is written when the caller went away mid-request.
	StatusClientClosedRequest = 499
)

// respondError maps a service error onto the response envelope.
func respondError(c *gin.Context, err error, msg string) {
	l := log.Ctx(c.Request.Context())

	var verr *service.ValidationError
	if errors.As(err, &verr) {
		response.ValidationFailed(c, verr.Field, verr.Message)
		return
	}

	// Upstream errors wrap the transport error, so a deadline or a client
	// disconnect has to be recognised before the APIError branch.
	switch {
	case errors.Is(err, context.Canceled):
		l.Debug().Err(err).Msg(msg)
		c.AbortWithStatus(StatusClientClosedRequest)
		return
	case errors.Is(err, context.DeadlineExceeded):
		l.Warn().Err(err).Msg(msg)
		response.Error(c, http.StatusGatewayTimeout, response.CodeUpstream, "Request timed out")
		return
	}

	if apiErr, ok := client.AsAPIError(err); ok {
		l.Warn().Err(err).Str(log.FieldUpstream, apiErr.Upstream).Msg(msg)
		response.Upstream(c, apiErr.Message, apiErr.Status, apiErr.Details)
		return
	}

	switch {
	case errors.Is(err, session.ErrNoData):
		response.NotFound(c, "No data available")
	case errors.Is(err, export.ErrUnknownKind), errors.Is(err, export.ErrUnsupportedFormat):
		response.BadRequest(c, err.Error())
	default:
		l.Error().Err(err).Msg(msg)
		response.InternalError(c, msg)
	}
}

// Recovery turns a panic into the generic error envelope.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		l := log.Ctx(c.Request.Context())
		l.Error().Interface("panic", recovered).Msg("handler panicked")
		response.Fail(c, http.StatusInternalServerError, &response.ErrorInfo{
			Code:    response.CodeUnhandled,
			Message: UnhandledMessage,
		})
	})
}

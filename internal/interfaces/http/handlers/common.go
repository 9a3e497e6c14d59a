// Package handlers implements the gin handlers of the resolver API.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/substance-resolver/pkg/errors"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// requiredQuery returns the named query parameter. A parameter that is
// present but empty is valid; only an absent one is rejected.
func requiredQuery(c *gin.Context, name string) (string, bool) {
	v, ok := c.GetQuery(name)
	if !ok {
		writeAppError(c, errors.New(errors.ErrCodeBadRequest, "missing required query parameter").
			WithDetail("parameter="+name))
		return "", false
	}
	return v, true
}

// writeAppError maps err to its HTTP status. Server-side failures other than
// an unavailable store are reported with the generic message of their code.
func writeAppError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	if code == errors.CodeUnknown {
		code = errors.ErrCodeInternal
	}
	status := errors.HTTPStatusForCode(code)

	msg := errors.DefaultMessageForCode(code)
	var appErr *errors.AppError
	if status < http.StatusInternalServerError || code == errors.ErrCodeStoreUnavailable {
		if errors.As(err, &appErr) && appErr.Message != "" {
			msg = appErr.Message
			if appErr.Detail != "" {
				msg += ": " + appErr.Detail
			}
		}
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorResponse{Code: string(code), Message: msg})
}

package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/topk-planner/internal/interfaces/http/middleware"
	"github.com/turtacn/topk-planner/pkg/errors"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// errorBody maps err to a status and body.  Server-side failures other than
// the planning codes are masked.
func errorBody(c *gin.Context, err error) (int, ErrorResponse) {
	code := errors.GetCode(err)
	status := errors.HTTPStatusForCode(code)
	resp := ErrorResponse{Code: code.String(), RequestID: middleware.GetRequestID(c)}

	var ae *errors.AppError
	switch {
	case errors.As(err, &ae) && (errors.IsClientError(code) || errors.ModuleForCode(code) == "PLAN"):
		resp.Message = ae.Message
		resp.Detail = ae.Detail
	default:
		resp.Code = errors.ErrCodeInternal.String()
		resp.Message = errors.DefaultMessageForCode(errors.ErrCodeInternal)
	}
	return status, resp
}

// writeAppError writes err as an ErrorResponse and records it on the gin
// context for the access log.
func writeAppError(c *gin.Context, err error) {
	_ = c.Error(err)
	status, body := errorBody(c, err)
	c.JSON(status, body)
}

// bindJSON decodes the request body into v.  Malformed JSON is reported as
// InvalidConfig.
func bindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		writeAppError(c, errors.Wrap(err, errors.ErrCodeInvalidConfig, "malformed request body").WithDetail(err.Error()))
		return false
	}
	return true
}

// wantsText reports whether the client asked for the plain-text report via
// ?format=text or an Accept header preferring text/plain.
func wantsText(c *gin.Context) bool {
	if f := c.Query("format"); f != "" {
		return f == "text"
	}
	accept := c.GetHeader("Accept")
	return strings.HasPrefix(accept, "text/plain")
}

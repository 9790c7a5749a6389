package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xraph/parklot"
)

// errorResponse is the body of every non-2xx reply.
type errorResponse struct {
	Code      string `json:"code"`
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// StatusOf maps an engine error to an HTTP status by its kind.
func StatusOf(err error) int {
	switch parklot.KindOf(err) {
	case parklot.KindExhaustion, parklot.KindConflict:
		return http.StatusConflict
	case parklot.KindInvalidInput:
		return http.StatusBadRequest
	case parklot.KindNotFound:
		return http.StatusNotFound
	case parklot.KindContention:
		return http.StatusServiceUnavailable
	case parklot.KindConfiguration:
		return http.StatusUnprocessableEntity
	case parklot.KindCanceled:
		return http.StatusRequestTimeout
	}
	return http.StatusInternalServerError
}

// abort writes err as the response and stops the handler chain.
func abort(c *gin.Context, err error) {
	abortStatus(c, StatusOf(err), err)
}

// abortStatus is abort with the status chosen by the handler.
func abortStatus(c *gin.Context, status int, err error) {
	msg := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err) //nolint:errcheck // recorded for the access log
		msg = "internal error"
	}
	if status == http.StatusServiceUnavailable {
		c.Header("Retry-After", "1")
	}
	c.AbortWithStatusJSON(status, errorResponse{
		Code:      parklot.Code(err),
		Error:     msg,
		RequestID: requestID(c),
	})
}

// badRequest reports a request that failed binding or validation.
func badRequest(c *gin.Context, err error) {
	if !errors.Is(err, parklot.ErrInvalidInput) && parklot.KindOf(err) != parklot.KindInvalidInput {
		err = fmt.Errorf("%w: %v", parklot.ErrInvalidInput, err)
	}
	abort(c, err)
}

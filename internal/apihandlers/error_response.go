package apihandlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"vouchercat/internal/jobs"
	"vouchercat/internal/models"
	"vouchercat/internal/store"
)

// APIError is the body of every failed request:
// { "error": { "code": "not_found", "message": "run not found" } }
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error APIError `json:"error"`
}

func JSONError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: APIError{Code: code, Message: msg}})
}

func BadRequest(c *gin.Context, msg string) {
	JSONError(c, http.StatusBadRequest, "bad_request", msg)
}

func NotFound(c *gin.Context, msg string) {
	JSONError(c, http.StatusNotFound, "not_found", msg)
}

func Internal(c *gin.Context, msg string) {
	JSONError(c, http.StatusInternalServerError, "internal_error", msg)
}

func Unavailable(c *gin.Context, msg string) {
	JSONError(c, http.StatusServiceUnavailable, "unavailable", msg)
}

// RespondError picks the status for err from the sentinel it wraps. Anything
// unrecognised is logged and reported as an internal error prefixed by action.
func RespondError(c *gin.Context, action string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		NotFound(c, err.Error())
	case errors.Is(err, models.ErrValidation):
		BadRequest(c, err.Error())
	case errors.Is(err, jobs.ErrQueueFull), errors.Is(err, jobs.ErrStopped), errors.Is(err, store.ErrClosed):
		Unavailable(c, err.Error())
	default:
		log.WithError(err).Errorf("API failed to %s", action)
		Internal(c, "failed to "+action+": "+err.Error())
	}
}

package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/romanzh1/course-player/internal/models"
	"go.uber.org/zap"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// respondServiceError maps service sentinels onto HTTP statuses.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrSessionNotFound):
		RespondError(c, http.StatusNotFound, "session_not_found", err)
	case errors.Is(err, models.ErrCourseNotFound):
		RespondError(c, http.StatusNotFound, "course_not_found", err)
	case errors.Is(err, models.ErrUnknownTarget):
		RespondError(c, http.StatusBadRequest, "unknown_target", err)
	case errors.Is(err, models.ErrNoPendingConfirmation):
		RespondError(c, http.StatusConflict, "no_pending_confirmation", err)
	case errors.Is(err, models.ErrSessionClosed):
		RespondError(c, http.StatusGone, "session_closed", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		RespondError(c, http.StatusRequestTimeout, "timeout", err)
	default:
		zap.L().Error("request failed", zap.Error(err), zap.String("path", c.FullPath()))
		RespondError(c, http.StatusInternalServerError, "internal", err)
	}
}

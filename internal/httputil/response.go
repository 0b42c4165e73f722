// Package httputil provides HTTP utility functions for request and response handling.
package httputil

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/allisson/directory/internal/errors"
	appvalidation "github.com/allisson/directory/internal/validation"
)

// Envelope is the uniform response wrapper returned by every endpoint. Data
// carries a single record, a list, a boolean, a violation set, or null.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// Respond writes a success envelope with the given status code, message and data.
func Respond(c *gin.Context, statusCode int, message string, data any) {
	c.JSON(statusCode, Envelope{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// HandleErrorGin maps domain errors to HTTP status codes and writes a failure
// envelope. Field-level validation errors keep their per-field violation set in
// the envelope data so a client sees every problem in one response.
func HandleErrorGin(c *gin.Context, err error, logger *slog.Logger) {
	if err == nil {
		return
	}

	var statusCode int
	envelope := Envelope{Success: false}

	var fieldErrs *appvalidation.FieldErrors

	switch {
	case apperrors.As(err, &fieldErrs):
		statusCode = http.StatusBadRequest
		envelope.Message = "Validation failed"
		envelope.Data = fieldErrs.Fields()

	case apperrors.Is(err, apperrors.ErrInvalidInput):
		statusCode = http.StatusBadRequest
		envelope.Message = err.Error()

	case apperrors.Is(err, apperrors.ErrNotFound):
		statusCode = http.StatusNotFound
		envelope.Message = "The requested resource was not found"

	case apperrors.Is(err, apperrors.ErrConflict):
		statusCode = http.StatusConflict
		envelope.Message = "A conflict occurred with existing data"

	default:
		// For unknown/internal errors, don't expose details to the client
		statusCode = http.StatusInternalServerError
		envelope.Message = "An internal error occurred"
	}

	// Log the full error details (including wrapped errors)
	if logger != nil {
		logger.Error("request failed",
			slog.Int("status_code", statusCode),
			slog.Any("error", err),
		)
	}

	c.JSON(statusCode, envelope)
}

// HandleBadRequestGin writes a 400 Bad Request envelope for malformed JSON or parameters.
func HandleBadRequestGin(c *gin.Context, err error, logger *slog.Logger) {
	if logger != nil {
		logger.Warn("bad request", slog.Any("error", err))
	}

	c.JSON(http.StatusBadRequest, Envelope{
		Success: false,
		Message: err.Error(),
	})
}

package utils

import (
	"context"
	"errors"
	"net/http"

	"cognichat/models"

	"github.com/gin-gonic/gin"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	ErrorCode string      `json:"error_code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}

// RespondWithError sends a standardized error response
func RespondWithError(c *gin.Context, statusCode int, errorCode, message string, details interface{}) {
	c.JSON(statusCode, ErrorResponse{
		ErrorCode: errorCode,
		Message:   message,
		Details:   details,
	})
}

// RespondWithBadRequest sends a 400 Bad Request error
func RespondWithBadRequest(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusBadRequest, "bad_request", message, details)
}

// RespondWithUnauthorized sends a 401 Unauthorized error
func RespondWithUnauthorized(c *gin.Context, message string) {
	RespondWithError(c, http.StatusUnauthorized, "unauthorized", message, nil)
}

// RespondWithForbidden sends a 403 Forbidden error
func RespondWithForbidden(c *gin.Context, message string) {
	RespondWithError(c, http.StatusForbidden, "forbidden", message, nil)
}

// RespondWithNotFound sends a 404 Not Found error
func RespondWithNotFound(c *gin.Context, message string) {
	RespondWithError(c, http.StatusNotFound, "not_found", message, nil)
}

// RespondWithInternalError sends a 500 Internal Server Error
func RespondWithInternalError(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusInternalServerError, "internal_error", message, details)
}

// RespondWithServiceUnavailable sends a 503 with the given code
func RespondWithServiceUnavailable(c *gin.Context, errorCode, message string, details interface{}) {
	RespondWithError(c, http.StatusServiceUnavailable, errorCode, message, details)
}

// RespondWithGatewayTimeout sends a 504 Gateway Timeout error
func RespondWithGatewayTimeout(c *gin.Context, message string) {
	RespondWithError(c, http.StatusGatewayTimeout, "timeout", message, nil)
}

// RespondWithDomainError maps pipeline and session errors onto HTTP responses.
func RespondWithDomainError(c *gin.Context, err error) {
	var (
		genErr     *models.GenerationError
		timeoutErr *models.TimeoutError
		fetchErr   *models.FetchError
	)

	switch {
	case errors.Is(err, context.Canceled):
		// client went away
		c.Status(499)
	case errors.Is(err, models.ErrEmptyQuestion), errors.Is(err, models.ErrEmptyPrompt), errors.Is(err, models.ErrUnknownComposition):
		RespondWithBadRequest(c, err.Error(), nil)
	case errors.Is(err, models.ErrSessionNotFound):
		RespondWithNotFound(c, "Session not found")
	case errors.As(err, &timeoutErr):
		RespondWithGatewayTimeout(c, "The model took too long to respond. Please try again.")
	case errors.As(err, &genErr):
		RespondWithServiceUnavailable(c, "generation_failed", "The model could not answer right now. Please try again.", nil)
	case errors.As(err, &fetchErr):
		RespondWithServiceUnavailable(c, "index_unavailable", "The document index could not be built.", gin.H{"locator": models.RedactLocator(fetchErr.Locator)})
	case errors.Is(err, models.ErrEmptyCorpus):
		RespondWithServiceUnavailable(c, "index_unavailable", "The configured sources produced no indexable text.", nil)
	case errors.Is(err, models.ErrInvalidK):
		RespondWithInternalError(c, "Retrieval is misconfigured", nil)
	default:
		RespondWithInternalError(c, "Failed to process request", nil)
	}
}

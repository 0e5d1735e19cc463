package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"social-integration-backend/internal/instagram"
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

// RespondWithPlatformError maps a Graph API failure onto the status code
// and error code the caller can act on.
func RespondWithPlatformError(c *gin.Context, err error) {
	var apiErr *instagram.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Kind {
		case instagram.KindTokenExpired:
			RespondWithError(c, http.StatusUnauthorized, "token_expired",
				"Instagram access token has expired. Please reconnect your account.", nil)
			return
		case instagram.KindPermission:
			RespondWithError(c, http.StatusForbidden, "insufficient_permissions",
				"The connected account lacks permission for this operation.", nil)
			return
		case instagram.KindRateLimited:
			RespondWithError(c, http.StatusTooManyRequests, "platform_rate_limited",
				"Instagram API rate limit reached. Please try again later.", nil)
			return
		case instagram.KindPlatformConfig:
			RespondWithError(c, http.StatusBadGateway, "platform_config_error",
				"The Instagram application is misconfigured.", nil)
			return
		}
	}

	var timeoutErr *instagram.ProcessingTimeoutError
	if errors.As(err, &timeoutErr) {
		RespondWithError(c, http.StatusGatewayTimeout, "processing_timeout",
			"Media processing did not finish in time.", gin.H{
				"container_id": timeoutErr.ContainerID,
				"last_status":  timeoutErr.LastStatus,
			})
		return
	}

	RespondWithInternalError(c, "Instagram API request failed", gin.H{"error": err.Error()})
}

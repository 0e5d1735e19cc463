package instagram

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoCredentials is returned when no Instagram API variant is configured.
// Callers must treat it as a configuration error and refuse to proceed.
var ErrNoCredentials = errors.New("no instagram credentials configured: set IG_ACCESS_TOKEN+IG_USER_ID or INSTAGRAM_ACCESS_TOKEN")

// Auth error codes surfaced to the interactive caller during the OAuth flow.
const (
	AuthCodeInvalid   = "AUTH_CODE_INVALID"
	AuthAccessDenied  = "ACCESS_DENIED"
	NoBusinessAccount = "NO_BUSINESS_ACCOUNT"
)

// AuthError is a user-recoverable failure of the token exchange. The user
// must restart the OAuth flow from the beginning.
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth exchange failed (%s): %s", e.Code, e.Message)
}

// ErrorKind classifies upstream Graph API failures.
type ErrorKind string

const (
	KindTokenExpired   ErrorKind = "TOKEN_EXPIRED"
	KindPermission     ErrorKind = "PERMISSION_DENIED"
	KindRateLimited    ErrorKind = "RATE_LIMITED"
	KindPlatformConfig ErrorKind = "PLATFORM_CONFIG_MISMATCH"
	KindUnknown        ErrorKind = "UNKNOWN"
)

// APIError is a non-2xx response from the platform, classified by
// inspecting the error payload.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Code       int
	Subcode    int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("instagram API error (%s, status %d): %s", e.Kind, e.StatusCode, e.Message)
}

// ProcessingTimeoutError means the video container polling ceiling was
// exceeded. Distinct from generic upstream errors so callers can tell
// "still processing, check status later" apart from "failed".
type ProcessingTimeoutError struct {
	ContainerID string
	LastStatus  string
	Attempts    int
}

func (e *ProcessingTimeoutError) Error() string {
	return fmt.Sprintf("video processing did not finish after %d status checks (container %s, last status %s)",
		e.Attempts, e.ContainerID, e.LastStatus)
}

// graphErrorBody is the error envelope the Graph API returns on non-2xx.
type graphErrorBody struct {
	Error struct {
		Message      string `json:"message"`
		Type         string `json:"type"`
		Code         int    `json:"code"`
		ErrorSubcode int    `json:"error_subcode"`
	} `json:"error"`
	// Basic Display token endpoint uses a flat shape.
	ErrorMessage string `json:"error_message"`
	ErrorType    string `json:"error_type"`
}

func (b *graphErrorBody) message() string {
	if b.Error.Message != "" {
		return b.Error.Message
	}
	return b.ErrorMessage
}

// classifyError maps a Graph error payload to an APIError kind.
// Code 190 is the platform's invalid/expired token family; codes 4, 17 and
// 32 are its throttling family; code 10 and the 200-299 band are permission
// errors.
func classifyError(statusCode int, body *graphErrorBody) *APIError {
	apiErr := &APIError{
		Kind:       KindUnknown,
		StatusCode: statusCode,
		Message:    body.message(),
		Code:       body.Error.Code,
		Subcode:    body.Error.ErrorSubcode,
	}

	msg := strings.ToLower(apiErr.Message)
	switch {
	case body.Error.Code == 190 || strings.Contains(msg, "access token"):
		apiErr.Kind = KindTokenExpired
	case body.Error.Code == 4 || body.Error.Code == 17 || body.Error.Code == 32 ||
		statusCode == 429 || strings.Contains(msg, "rate limit"):
		apiErr.Kind = KindRateLimited
	case body.Error.Code == 10 || (body.Error.Code >= 200 && body.Error.Code < 300) ||
		strings.Contains(msg, "permission"):
		apiErr.Kind = KindPermission
	case strings.Contains(msg, "invalid platform app") || strings.Contains(msg, "platform app"):
		apiErr.Kind = KindPlatformConfig
	}

	return apiErr
}

// IsKind reports whether err is an APIError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind == kind
	}
	return false
}

// IsAuthCode reports whether err is an AuthError with the given code.
func IsAuthCode(err error, code string) bool {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Code == code
	}
	return false
}

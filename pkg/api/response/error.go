package response

import (
	"errors"
	"net/http"
)

// ErrorResponse is the envelope for every error body served by the API.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the machine-readable code alongside the human message.
type ErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id"`
}

// Error codes returned in ErrorDetail.Code.
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	ErrCodeInternalServer     = "INTERNAL_SERVER_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeGatewayTimeout     = "GATEWAY_TIMEOUT"
)

// Sentinel errors that handlers may return to describe a failure class
// without choosing an HTTP status themselves.
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("request timeout")
	ErrInternalServer     = errors.New("internal server error")
)

var statusForError = []struct {
	err    error
	status int
}{
	{ErrNotFound, http.StatusNotFound},
	{ErrInvalidInput, http.StatusBadRequest},
	{ErrServiceUnavailable, http.StatusServiceUnavailable},
	{ErrTimeout, http.StatusGatewayTimeout},
}

var codeForStatus = map[int]string{
	http.StatusBadRequest:         ErrCodeBadRequest,
	http.StatusNotFound:           ErrCodeNotFound,
	http.StatusMethodNotAllowed:   ErrCodeMethodNotAllowed,
	http.StatusServiceUnavailable: ErrCodeServiceUnavailable,
	http.StatusGatewayTimeout:     ErrCodeGatewayTimeout,
}

// HTTPStatusFromError maps a sentinel error (or anything wrapping one)
// to its HTTP status. Unrecognized errors become a 500.
func HTTPStatusFromError(err error) int {
	for _, m := range statusForError {
		if errors.Is(err, m.err) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

// ErrorCodeFromStatus returns the error code conventionally paired with
// an HTTP status.
func ErrorCodeFromStatus(status int) string {
	if code, ok := codeForStatus[status]; ok {
		return code
	}
	return ErrCodeInternalServer
}

// Error writes a JSON error body with the given status, code, and message.
func Error(w http.ResponseWriter, statusCode int, code, message, requestID string) {
	ErrorWithDetails(w, statusCode, code, message, nil, requestID)
}

// ErrorWithDetails is Error with an extra free-form details map.
func ErrorWithDetails(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}, requestID string) {
	JSON(w, statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:      code,
			Message:   message,
			Details:   details,
			RequestID: requestID,
		},
	})
}

// HandleError derives status and code from err and writes the response.
func HandleError(w http.ResponseWriter, err error, requestID string) {
	status := HTTPStatusFromError(err)
	Error(w, status, ErrorCodeFromStatus(status), err.Error(), requestID)
}

// internal/common/errors/handler.go
package errors

import "net/http"

// HTTPStatus maps an internal error code to the HTTP status the API layer
// responds with. INSUFFICIENT_TOKENS surfaces as 402 per the token economy
// contract; DUPLICATE_REVEAL is never surfaced (idempotent success upstream)
// but maps to 409 as a safety net.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInsufficientTokens:
		return http.StatusPaymentRequired
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeValidationFailed, ErrCodeUnknownTokenAction:
		return http.StatusBadRequest
	case ErrCodeDuplicateReveal:
		return http.StatusConflict
	case ErrCodeQueryTimeout, ErrCodeSearchTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse is the JSON error body returned by API handlers.
type ErrorResponse struct {
	Code     ErrorCode              `json:"code"`
	Message  string                 `json:"message"`
	Details  string                 `json:"details,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ToResponse converts any error into the HTTP status and body to send.
// Non-StandardError values degrade to an opaque 500.
func ToResponse(err error) (int, ErrorResponse) {
	if se, ok := AsStandardError(err); ok {
		return HTTPStatus(se.Code), ErrorResponse{
			Code:     se.Code,
			Message:  se.Message,
			Details:  se.Details,
			Metadata: se.Metadata,
		}
	}
	return http.StatusInternalServerError, ErrorResponse{
		Code:    "INTERNAL_ERROR",
		Message: "Internal server error",
	}
}

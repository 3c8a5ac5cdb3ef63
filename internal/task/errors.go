package task

// ErrorCode is the closed set of error codes emitted in result envelopes.
type ErrorCode string

const (
	CodeTimeout          ErrorCode = "TIMEOUT"
	CodeConnectionError  ErrorCode = "CONNECTION_ERROR"
	CodeHTTPError        ErrorCode = "HTTP_ERROR"
	CodeProxyError       ErrorCode = "PROXY_ERROR"
	CodeSelectorNotFound ErrorCode = "SELECTOR_NOT_FOUND"
	CodeValidationError  ErrorCode = "VALIDATION_ERROR"
	CodeRateLimited      ErrorCode = "RATE_LIMITED"
	CodeBlocked          ErrorCode = "BLOCKED"
	CodeCaptcha          ErrorCode = "CAPTCHA"
	CodeAuthRequired     ErrorCode = "AUTH_REQUIRED"
	CodeParseError       ErrorCode = "PARSE_ERROR"
	CodeUnknown          ErrorCode = "UNKNOWN"
)

// defaultRetryable captures the retryable-by-default classification from
// the error handling design: network/transport class errors retry, schema
// or operator-intervention class errors do not.
var defaultRetryable = map[ErrorCode]bool{
	CodeTimeout:          true,
	CodeConnectionError:  true,
	CodeProxyError:       true,
	CodeRateLimited:      true,
	CodeHTTPError:        false, // computed per-status, see IsRetryableHTTPStatus
	CodeValidationError:  false,
	CodeBlocked:          false,
	CodeCaptcha:          false,
	CodeAuthRequired:     false,
	CodeSelectorNotFound: false,
	CodeParseError:       false,
	CodeUnknown:          false,
}

// DefaultRetryable reports the default is_retryable value for a code.
func DefaultRetryable(code ErrorCode) bool { return defaultRetryable[code] }

// retryableHTTPStatuses is the closed set of HTTP status codes classified
// as transient.
var retryableHTTPStatuses = map[int]bool{429: true, 500: true, 502: true, 503: true, 504: true}

// IsRetryableHTTPStatus reports whether an HTTP status code should be
// treated as a retryable HTTP_ERROR.
func IsRetryableHTTPStatus(status int) bool { return retryableHTTPStatuses[status] }

// ErrorDetail is one entry of a result envelope's ordered error list.
type ErrorDetail struct {
	Code        ErrorCode      `json:"code"`
	Message     string         `json:"message"`
	IsRetryable bool           `json:"is_retryable"`
	Context     map[string]any `json:"context,omitempty"`
}

// NewError builds an ErrorDetail using the code's default retryability.
func NewError(code ErrorCode, message string) ErrorDetail {
	return ErrorDetail{Code: code, Message: message, IsRetryable: DefaultRetryable(code)}
}

// NewHTTPError builds an ErrorDetail for an HTTP_ERROR whose retryability
// depends on the observed status code.
func NewHTTPError(status int, message string) ErrorDetail {
	return ErrorDetail{Code: CodeHTTPError, Message: message, IsRetryable: IsRetryableHTTPStatus(status)}
}

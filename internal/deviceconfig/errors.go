package deviceconfig

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
)

// Error types for configuration service operations

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeNetwork indicates a network-level error (connection refused, timeout, etc.)
	ErrTypeNetwork ErrorType = iota
	// ErrTypeAuth indicates an authentication failure (invalid credentials)
	ErrTypeAuth
	// ErrTypeHTTP indicates an HTTP-level error (non-200 status code)
	ErrTypeHTTP
	// ErrTypeParse indicates a parsing error (malformed JSON, invalid response)
	ErrTypeParse
	// ErrTypeValidation indicates a validation error (invalid configuration)
	ErrTypeValidation
	// ErrTypeTimeout indicates a request timeout
	ErrTypeTimeout
	// ErrTypeConnectionRefused indicates the device refused the connection
	ErrTypeConnectionRefused
	// ErrTypeDNS indicates a DNS resolution failure
	ErrTypeDNS
	// ErrTypeUnknown indicates an unknown or unexpected error
	ErrTypeUnknown
)

// NetworkErrorSubtype provides more specific network error classification
type NetworkErrorSubtype int

const (
	NetworkErrorGeneral NetworkErrorSubtype = iota
	NetworkErrorTimeout
	NetworkErrorConnectionRefused
	NetworkErrorDNS
	NetworkErrorHostUnreachable
	NetworkErrorNetworkUnreachable
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeAuth:
		return "Authentication Error"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeParse:
		return "Parse Error"
	case ErrTypeValidation:
		return "Validation Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeDNS:
		return "DNS Error"
	case ErrTypeUnknown:
		return "Unknown Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// DeviceError represents an error that occurred while talking to the configuration service
type DeviceError struct {
	Type           ErrorType           // Category of error
	Message        string              // Human-readable error message
	StatusCode     int                 // HTTP status code (if applicable)
	Err            error               // Underlying error (if any)
	NetworkSubtype NetworkErrorSubtype // More specific network error type
	Host           string              // Service host (for context)
	Retryable      bool                // Whether the error is retryable
}

// Error implements the error interface
func (e *DeviceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *DeviceError) Unwrap() error {
	return e.Err
}

// errnoClasses maps socket errnos to their classification. Order matters
// only for readability; each errno appears once.
var errnoClasses = []struct {
	errno   syscall.Errno
	typ     ErrorType
	subtype NetworkErrorSubtype
	message string
}{
	{syscall.ECONNREFUSED, ErrTypeConnectionRefused, NetworkErrorConnectionRefused, "Service refused connection"},
	{syscall.EHOSTUNREACH, ErrTypeNetwork, NetworkErrorHostUnreachable, "Host unreachable"},
	{syscall.ENETUNREACH, ErrTypeNetwork, NetworkErrorNetworkUnreachable, "Network unreachable"},
}

// ClassifyNetworkError maps a transport error from the HTTP client onto a
// DeviceError. host is recorded for troubleshooting hints.
func ClassifyNetworkError(err error, host string) *DeviceError {
	if err == nil {
		return nil
	}

	// url.Error wraps everything net/http returns; classify what it carries.
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}

	devErr := &DeviceError{
		Type:           ErrTypeNetwork,
		Message:        "Network error occurred",
		Err:            err,
		NetworkSubtype: NetworkErrorGeneral,
		Host:           host,
		Retryable:      true,
	}

	var dnsErr *net.DNSError
	switch {
	case os.IsTimeout(err):
		devErr.Type = ErrTypeTimeout
		devErr.Message = "Request timed out"
		devErr.NetworkSubtype = NetworkErrorTimeout
	case errors.As(err, &dnsErr):
		devErr.Type = ErrTypeDNS
		devErr.Message = fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name)
		devErr.NetworkSubtype = NetworkErrorDNS
		devErr.Retryable = false
	default:
		for _, c := range errnoClasses {
			if errors.Is(err, c.errno) {
				devErr.Type = c.typ
				devErr.Message = c.message
				devErr.NetworkSubtype = c.subtype
				break
			}
		}
	}
	return devErr
}

// NewNetworkError creates a network-level error with automatic classification
func NewNetworkError(message string, err error) *DeviceError {
	if err == nil {
		return &DeviceError{Type: ErrTypeNetwork, Message: message, Retryable: true}
	}
	devErr := ClassifyNetworkError(err, "")
	devErr.Message = message
	return devErr
}

// NewAuthError creates an authentication error
func NewAuthError(message string) *DeviceError {
	return &DeviceError{
		Type:       ErrTypeAuth,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
		Retryable:  false,
	}
}

// NewHTTPError creates an HTTP-level error. message is the response body
// as the service sent it.
func NewHTTPError(statusCode int, message string) *DeviceError {
	retryable := statusCode >= 500 // Server errors are retryable
	return &DeviceError{
		Type:       ErrTypeHTTP,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
	}
}

// NewParseError creates a parsing error
func NewParseError(message string, err error) *DeviceError {
	return &DeviceError{
		Type:      ErrTypeParse,
		Message:   message,
		Err:       err,
		Retryable: false,
	}
}

// NewValidationError creates a validation error
func NewValidationError(message string) *DeviceError {
	return &DeviceError{
		Type:      ErrTypeValidation,
		Message:   message,
		Retryable: false,
	}
}

func asDeviceError(err error) (*DeviceError, bool) {
	var devErr *DeviceError
	if errors.As(err, &devErr) {
		return devErr, true
	}
	return nil, false
}

func hasType(err error, types ...ErrorType) bool {
	devErr, ok := asDeviceError(err)
	if !ok {
		return false
	}
	for _, t := range types {
		if devErr.Type == t {
			return true
		}
	}
	return false
}

// IsNetworkError reports transport failures of any kind, including
// timeouts, refused connections and DNS failures.
func IsNetworkError(err error) bool {
	return hasType(err, ErrTypeNetwork, ErrTypeTimeout, ErrTypeConnectionRefused, ErrTypeDNS)
}

// IsAuthError reports a rejected write (HTTP 401).
func IsAuthError(err error) bool { return hasType(err, ErrTypeAuth) }

// IsHTTPError reports a non-success status other than 401.
func IsHTTPError(err error) bool { return hasType(err, ErrTypeHTTP) }

// IsParseError reports an undecodable response body.
func IsParseError(err error) bool { return hasType(err, ErrTypeParse) }

// IsValidationError reports a configuration rejected before or by the service.
func IsValidationError(err error) bool { return hasType(err, ErrTypeValidation) }

// IsRetryable reports whether the client may repeat the request. Errors
// that are not DeviceErrors are never retried.
func IsRetryable(err error) bool {
	devErr, ok := asDeviceError(err)
	return ok && devErr.Retryable
}

// NotificationMessage returns the text an operator should see for err.
// Service-side failures carry the raw response body; everything else
// falls back to the error string.
func NotificationMessage(err error) string {
	if err == nil {
		return ""
	}
	devErr, ok := asDeviceError(err)
	if !ok {
		return err.Error()
	}
	switch devErr.Type {
	case ErrTypeHTTP, ErrTypeAuth, ErrTypeValidation:
		return devErr.Message
	default:
		return GetShortErrorMessage(devErr)
	}
}

// GetTroubleshootingHint returns user-friendly troubleshooting advice for an error
func GetTroubleshootingHint(err error) string {
	devErr, ok := asDeviceError(err)
	if !ok {
		return "An unexpected error occurred. Please try again."
	}

	switch devErr.Type {
	case ErrTypeTimeout:
		return strings.Join([]string{
			"The configuration service did not respond in time.",
			"Troubleshooting:",
			"  • Check that the reader is powered on",
			"  • A Modbus timeout on the service side can delay the response",
			"  • Try increasing the timeout with --timeout",
		}, "\n")

	case ErrTypeConnectionRefused:
		return strings.Join([]string{
			"The configuration service refused the connection.",
			"Troubleshooting:",
			"  • Check that modbusreader-server is running",
			"  • Verify the port number (default is 8080)",
		}, "\n")

	case ErrTypeDNS:
		return strings.Join([]string{
			"Could not resolve the service hostname.",
			"Troubleshooting:",
			"  • Use the IP address instead of hostname",
			"  • Try 'modbusreader-cfg scan' to find services on the network",
		}, "\n")

	case ErrTypeAuth:
		return strings.Join([]string{
			"Authentication failed.",
			"Troubleshooting:",
			"  • Writing the runtime configuration requires the admin account",
			"  • Pass credentials with --user and --password",
		}, "\n")

	case ErrTypeNetwork:
		hint := []string{"Network communication failed."}

		switch devErr.NetworkSubtype {
		case NetworkErrorHostUnreachable:
			hint = append(hint, "The service host is not reachable on the network.",
				"Troubleshooting:",
				"  • Verify the host address is correct",
				"  • Try pinging the host: ping "+devErr.Host)

		case NetworkErrorNetworkUnreachable:
			hint = append(hint, "Your computer cannot reach the service's network.",
				"Troubleshooting:",
				"  • Check your network adapter settings")

		default:
			hint = append(hint, "Troubleshooting:",
				"  • Check your network connection",
				"  • Verify the service is running")
		}

		return strings.Join(hint, "\n")

	case ErrTypeHTTP:
		if devErr.StatusCode == http.StatusBadGateway {
			return strings.Join([]string{
				"The service could not talk to the reader over Modbus.",
				"Troubleshooting:",
				"  • Check the Modbus endpoint configured for modbusreader-server",
				"  • Verify the reader's unit ID",
			}, "\n")
		}
		if devErr.StatusCode >= 500 {
			return fmt.Sprintf("The service returned an error (HTTP %d). Check the service log.", devErr.StatusCode)
		}
		return fmt.Sprintf("The service returned HTTP error %d. Check the request parameters.", devErr.StatusCode)

	case ErrTypeParse:
		return strings.Join([]string{
			"Failed to parse the service's response.",
			"The console and service versions may not match.",
		}, "\n")

	case ErrTypeValidation:
		return "The configuration values are invalid. Check the error message for details."

	default:
		return "An error occurred. Please check the error message for details."
	}
}

// GetShortErrorMessage returns a concise, user-friendly error message
func GetShortErrorMessage(err error) string {
	devErr, ok := asDeviceError(err)
	if !ok {
		return err.Error()
	}

	switch devErr.Type {
	case ErrTypeTimeout:
		return "Service not responding (timeout)"
	case ErrTypeConnectionRefused:
		return "Service refused connection - is modbusreader-server running?"
	case ErrTypeDNS:
		return "Cannot resolve service hostname"
	case ErrTypeAuth:
		return "Authentication failed - check credentials"
	case ErrTypeNetwork:
		switch devErr.NetworkSubtype {
		case NetworkErrorHostUnreachable:
			return "Service unreachable - check network connection"
		case NetworkErrorNetworkUnreachable:
			return "Network unreachable"
		default:
			return "Network error - check connection"
		}
	case ErrTypeHTTP:
		return fmt.Sprintf("Service error (HTTP %d)", devErr.StatusCode)
	case ErrTypeParse:
		return "Failed to parse service response"
	default:
		return devErr.Message
	}
}

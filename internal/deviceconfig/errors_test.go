package deviceconfig

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"
	"testing"
)

func dialError(err error) error {
	return &url.Error{
		Op:  "Get",
		URL: "http://192.168.1.40:8080/rest/app/modbusreader/device/info",
		Err: &net.OpError{Op: "dial", Net: "tcp", Err: err},
	}
}

func TestClassifyNetworkError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		typ       ErrorType
		subtype   NetworkErrorSubtype
		retryable bool
	}{
		{"timeout", dialError(&timeoutError{}), ErrTypeTimeout, NetworkErrorTimeout, true},
		{"refused", dialError(syscall.ECONNREFUSED), ErrTypeConnectionRefused, NetworkErrorConnectionRefused, true},
		{"host unreachable", dialError(syscall.EHOSTUNREACH), ErrTypeNetwork, NetworkErrorHostUnreachable, true},
		{"network unreachable", dialError(syscall.ENETUNREACH), ErrTypeNetwork, NetworkErrorNetworkUnreachable, true},
		{"dns", &net.DNSError{Err: "no such host", Name: "reader.invalid", IsNotFound: true}, ErrTypeDNS, NetworkErrorDNS, false},
		{"other", errors.New("connection reset"), ErrTypeNetwork, NetworkErrorGeneral, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			devErr := ClassifyNetworkError(tt.err, "192.168.1.40")
			if devErr == nil {
				t.Fatal("expected DeviceError, got nil")
			}
			if devErr.Type != tt.typ {
				t.Errorf("Type = %v, want %v", devErr.Type, tt.typ)
			}
			if devErr.NetworkSubtype != tt.subtype {
				t.Errorf("NetworkSubtype = %v, want %v", devErr.NetworkSubtype, tt.subtype)
			}
			if devErr.Retryable != tt.retryable {
				t.Errorf("Retryable = %v, want %v", devErr.Retryable, tt.retryable)
			}
			if devErr.Host != "192.168.1.40" {
				t.Errorf("Host = %q", devErr.Host)
			}
		})
	}

	if ClassifyNetworkError(nil, "") != nil {
		t.Error("nil error should classify as nil")
	}
}

func TestNewNetworkErrorKeepsMessage(t *testing.T) {
	err := NewNetworkError("GET /device/info failed", dialError(syscall.ECONNREFUSED))
	if err.Type != ErrTypeConnectionRefused || err.Message != "GET /device/info failed" {
		t.Errorf("got %v / %q", err.Type, err.Message)
	}
	if !IsNetworkError(err) || !IsRetryable(err) {
		t.Error("refused connection should be a retryable network error")
	}

	bare := NewNetworkError("no cause", nil)
	if bare.Type != ErrTypeNetwork || bare.Err != nil {
		t.Errorf("unexpected bare error %+v", bare)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"server error", NewHTTPError(502, "Modbus read failed"), true},
		{"client error", NewHTTPError(400, "missing field"), false},
		{"auth", NewAuthError("Unauthorized"), false},
		{"validation", NewValidationError("epcLength out of range"), false},
		{"parse", NewParseError("bad json", errors.New("eof")), false},
		{"wrapped server error", fmt.Errorf("load: %w", NewHTTPError(503, "busy")), true},
		{"plain", errors.New("unknown error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetShortErrorMessage(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		expectedText string
	}{
		{
			name:         "Timeout error",
			err:          &DeviceError{Type: ErrTypeTimeout},
			expectedText: "Service not responding (timeout)",
		},
		{
			name:         "Connection refused",
			err:          &DeviceError{Type: ErrTypeConnectionRefused},
			expectedText: "Service refused connection - is modbusreader-server running?",
		},
		{
			name:         "DNS error",
			err:          &DeviceError{Type: ErrTypeDNS},
			expectedText: "Cannot resolve service hostname",
		},
		{
			name:         "Auth error",
			err:          &DeviceError{Type: ErrTypeAuth},
			expectedText: "Authentication failed - check credentials",
		},
		{
			name: "Host unreachable",
			err: &DeviceError{
				Type:           ErrTypeNetwork,
				NetworkSubtype: NetworkErrorHostUnreachable,
			},
			expectedText: "Service unreachable - check network connection",
		},
		{
			name: "HTTP 502",
			err: &DeviceError{
				Type:       ErrTypeHTTP,
				StatusCode: 502,
			},
			expectedText: "Service error (HTTP 502)",
		},
		{
			name: "Validation error",
			err: &DeviceError{
				Type:    ErrTypeValidation,
				Message: "runtime configuration incomplete, missing: epcLength",
			},
			expectedText: "runtime configuration incomplete, missing: epcLength",
		},
		{
			name:         "Plain error",
			err:          errors.New("something else"),
			expectedText: "something else",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetShortErrorMessage(tt.err)
			if got != tt.expectedText {
				t.Errorf("GetShortErrorMessage() = %q, want %q", got, tt.expectedText)
			}
		})
	}
}

func TestGetTroubleshootingHint(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		expectedTexts []string // Texts that should appear in the hint
	}{
		{
			name: "Timeout error",
			err:  &DeviceError{Type: ErrTypeTimeout},
			expectedTexts: []string{
				"did not respond in time",
				"Troubleshooting:",
				"--timeout",
			},
		},
		{
			name: "Connection refused",
			err:  &DeviceError{Type: ErrTypeConnectionRefused},
			expectedTexts: []string{
				"refused the connection",
				"modbusreader-server",
			},
		},
		{
			name: "DNS error",
			err:  &DeviceError{Type: ErrTypeDNS},
			expectedTexts: []string{
				"resolve the service hostname",
				"IP address instead",
				"scan",
			},
		},
		{
			name: "Auth error",
			err:  &DeviceError{Type: ErrTypeAuth},
			expectedTexts: []string{
				"Authentication failed",
				"admin",
				"--password",
			},
		},
		{
			name: "Host unreachable",
			err: &DeviceError{
				Type:           ErrTypeNetwork,
				NetworkSubtype: NetworkErrorHostUnreachable,
				Host:           "192.168.1.40",
			},
			expectedTexts: []string{
				"not reachable",
				"ping 192.168.1.40",
			},
		},
		{
			name: "HTTP 502 error",
			err: &DeviceError{
				Type:       ErrTypeHTTP,
				StatusCode: 502,
			},
			expectedTexts: []string{
				"Modbus",
				"unit ID",
			},
		},
		{
			name: "HTTP 500 error",
			err: &DeviceError{
				Type:       ErrTypeHTTP,
				StatusCode: 500,
			},
			expectedTexts: []string{
				"HTTP 500",
				"service log",
			},
		},
		{
			name: "Wrapped parse error",
			err:  fmt.Errorf("loading: %w", &DeviceError{Type: ErrTypeParse}),
			expectedTexts: []string{
				"Failed to parse",
				"versions may not match",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hint := GetTroubleshootingHint(tt.err)

			for _, expectedText := range tt.expectedTexts {
				if !strings.Contains(hint, expectedText) {
					t.Errorf("GetTroubleshootingHint() missing expected text %q\nGot: %s", expectedText, hint)
				}
			}
		})
	}
}

func TestNotificationMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"HTTP body passes through", NewHTTPError(502, "Modbus read failed: connection timed out"), "Modbus read failed: connection timed out"},
		{"wrapped HTTP error", fmt.Errorf("save: %w", NewHTTPError(400, "missing field")), "missing field"},
		{"auth", NewAuthError("Unauthorized"), "Unauthorized"},
		{"timeout", &DeviceError{Type: ErrTypeTimeout}, "Service not responding (timeout)"},
		{"plain", errors.New("boom"), "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NotificationMessage(tt.err); got != tt.want {
				t.Errorf("NotificationMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsHelpersSeeWrappedErrors(t *testing.T) {
	err := fmt.Errorf("context: %w", NewValidationError("bad"))

	if !IsValidationError(err) {
		t.Error("IsValidationError should unwrap")
	}
	if IsNetworkError(err) || IsAuthError(err) || IsHTTPError(err) || IsParseError(err) {
		t.Error("wrapped validation error matched another category")
	}
}

func TestErrorTypeString(t *testing.T) {
	tests := []struct {
		errorType ErrorType
		expected  string
	}{
		{ErrTypeNetwork, "Network Error"},
		{ErrTypeAuth, "Authentication Error"},
		{ErrTypeHTTP, "HTTP Error"},
		{ErrTypeParse, "Parse Error"},
		{ErrTypeValidation, "Validation Error"},
		{ErrTypeTimeout, "Timeout"},
		{ErrTypeConnectionRefused, "Connection Refused"},
		{ErrTypeDNS, "DNS Error"},
		{ErrTypeUnknown, "Unknown Error"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.errorType.String(); got != tt.expected {
				t.Errorf("ErrorType.String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

// timeoutError is a mock error that implements timeout behavior
type timeoutError struct{}

func (e *timeoutError) Error() string   { return "i/o timeout" }
func (e *timeoutError) Timeout() bool   { return true }
func (e *timeoutError) Temporary() bool { return true }

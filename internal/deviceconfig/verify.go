package deviceconfig

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/muurk/modbusreader/internal/runtimeconfig"
)

// VerificationOptions configures how configuration verification behaves
type VerificationOptions struct {
	// MaxRetries is the maximum number of extra read-back attempts
	// Default: 2
	MaxRetries int

	// InitialDelay is the delay before the first read-back
	// Default: 200ms
	InitialDelay time.Duration

	// RetryDelay is the delay between read-back attempts
	// Default: 500ms
	RetryDelay time.Duration

	// UseExponentialBackoff doubles RetryDelay after each attempt, up to MaxRetryDelay
	UseExponentialBackoff bool

	// MaxRetryDelay caps the backoff
	// Default: 2s
	MaxRetryDelay time.Duration
}

// DefaultVerificationOptions returns sensible defaults for verification
func DefaultVerificationOptions() *VerificationOptions {
	return &VerificationOptions{
		MaxRetries:            2,
		InitialDelay:          200 * time.Millisecond,
		RetryDelay:            500 * time.Millisecond,
		UseExponentialBackoff: true,
		MaxRetryDelay:         2 * time.Second,
	}
}

// VerificationResult contains the results of a configuration verification
type VerificationResult struct {
	// Success indicates whether the read-back matched
	Success bool

	// Attempts is the number of read-back attempts made
	Attempts int

	// ActualConfig is the last configuration read back from the service
	ActualConfig *runtimeconfig.Shape

	// Mismatches lists every field that differs, one entry per field
	Mismatches []string

	// Error is any error that occurred during verification
	Error error
}

// VerifyRuntimeConfig reads the runtime configuration back and compares it
// with expected. Read failures are retried up to opts.MaxRetries.
func (c *Client) VerifyRuntimeConfig(ctx context.Context, expected *runtimeconfig.Shape, opts *VerificationOptions) *VerificationResult {
	if opts == nil {
		opts = DefaultVerificationOptions()
	}

	result := &VerificationResult{
		Mismatches: []string{},
	}

	if err := sleepCtx(ctx, opts.InitialDelay); err != nil {
		result.Error = err
		return result
	}

	currentDelay := opts.RetryDelay

	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		result.Attempts++

		if attempt > 0 {
			if err := sleepCtx(ctx, currentDelay); err != nil {
				result.Error = err
				return result
			}

			if opts.UseExponentialBackoff {
				currentDelay *= 2
				if currentDelay > opts.MaxRetryDelay {
					currentDelay = opts.MaxRetryDelay
				}
			}
		}

		current, err := c.GetRuntimeConfig(ctx)
		if err != nil {
			result.Error = fmt.Errorf("attempt %d: failed to read runtime configuration: %w", attempt+1, err)
			continue
		}

		result.ActualConfig = current
		result.Mismatches = CompareShapes(expected, current)

		if len(result.Mismatches) == 0 {
			result.Success = true
			result.Error = nil
			return result
		}

		if attempt < opts.MaxRetries {
			result.Error = fmt.Errorf("attempt %d: configuration mismatch (will retry)", attempt+1)
		} else {
			result.Error = fmt.Errorf("verification failed after %d attempts: %s", result.Attempts, formatMismatches(result.Mismatches))
		}
	}

	return result
}

// UpdateAndVerify writes the configuration and then verifies it was applied.
func (c *Client) UpdateAndVerify(ctx context.Context, shape *runtimeconfig.Shape, opts *VerificationOptions) *VerificationResult {
	if err := c.PutRuntimeConfig(ctx, shape); err != nil {
		return &VerificationResult{
			Error: fmt.Errorf("update failed: %w", err),
		}
	}

	return c.VerifyRuntimeConfig(ctx, shape, opts)
}

// CompareShapes lists the fields where actual differs from expected.
// Both sides are normalised through RuntimeConfiguration first, so the
// booleans are compared as the selector bits they represent. Fields
// absent from expected are not checked.
func CompareShapes(expected, actual *runtimeconfig.Shape) []string {
	var mismatches []string

	exp := runtimeconfig.New(expected)
	act := runtimeconfig.New(actual)

	if want, ok := exp.Selector(); ok {
		got, present := act.Selector()
		switch {
		case !present:
			mismatches = append(mismatches, "memorySelector: missing in response")
		case got != want:
			mismatches = append(mismatches, fmt.Sprintf("memorySelector: expected 0x%04X, got 0x%04X", uint16(want), uint16(got)))
		}
	}

	for _, l := range runtimeconfig.Lengths() {
		want, ok := exp.Length(l)
		if !ok {
			continue
		}
		got, present := act.Length(l)
		switch {
		case !present:
			mismatches = append(mismatches, fmt.Sprintf("%s: missing in response", l))
		case got != want:
			mismatches = append(mismatches, fmt.Sprintf("%s: expected %d, got %d", l, want, got))
		}
	}

	return mismatches
}

// formatMismatches creates a human-readable summary of mismatches
func formatMismatches(mismatches []string) string {
	if len(mismatches) == 0 {
		return "none"
	}
	if len(mismatches) == 1 {
		return mismatches[0]
	}
	return fmt.Sprintf("%d mismatches: %s", len(mismatches), strings.Join(mismatches, "; "))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

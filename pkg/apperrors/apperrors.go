// Package apperrors defines the error taxonomy shared by every component:
// transport failures (retryable), normalization failures (protocol drift),
// backend rejections (carry the raw reason code) and partial voucher fetches.
package apperrors

import (
	"errors"
	"fmt"
)

// TransportError wraps a network-level failure: connection errors, timeouts
// and non-2xx statuses before a body could be decoded. Callers may retry
// with backoff.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func NewTransportError(op, url string, err error) *TransportError {
	return &TransportError{Op: op, URL: url, Err: err}
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error in %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NormalizationError reports a backend payload whose shape did not match any
// known tenant format. Non-retryable; indicates protocol drift. PayloadSize
// is recorded instead of the payload itself.
type NormalizationError struct {
	Op          string
	Tenant      string
	PayloadSize int
	Reason      string
}

func NewNormalizationError(op, tenant string, payloadSize int, reason string) *NormalizationError {
	return &NormalizationError{Op: op, Tenant: tenant, PayloadSize: payloadSize, Reason: reason}
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalization error in %s (tenant %s, %d bytes): %s", e.Op, e.Tenant, e.PayloadSize, e.Reason)
}

// BusinessError is an explicit rejection by the backend. Code holds the
// backend's primary status, Sub its secondary reason code; both are preserved
// unaltered so the caller can map them to display text.
type BusinessError struct {
	Code    string
	Sub     string
	Message string
}

func NewBusinessError(code, sub, message string) *BusinessError {
	return &BusinessError{Code: code, Sub: sub, Message: message}
}

func (e *BusinessError) Error() string {
	if e.Sub != "" && e.Sub != "0" {
		return fmt.Sprintf("backend rejected request (ret=%s sub=%s): %s", e.Code, e.Sub, e.Message)
	}
	return fmt.Sprintf("backend rejected request (ret=%s): %s", e.Code, e.Message)
}

// Well-known client-side business codes. Backend codes pass through as-is.
const (
	CodeUnknownTenant     = "UNKNOWN_TENANT"
	CodeOrderNotFound     = "ORDER_NOT_FOUND"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeVoucherNotApplied = "VOUCHER_NOT_APPLIED"
)

// PartialFetchError reports a paginated fetch that stopped mid-way. Pages
// carries the page numbers that completed before the failure.
type PartialFetchError struct {
	TotalPages int
	Pages      []int
	Err        error
}

func (e *PartialFetchError) Error() string {
	return fmt.Sprintf("partial fetch: %d/%d pages completed: %v", len(e.Pages), e.TotalPages, e.Err)
}

func (e *PartialFetchError) Unwrap() error { return e.Err }

// IsRetryable reports whether the caller may retry the failed operation.
// Only transport failures qualify; everything else either needs user action
// or a code change.
func IsRetryable(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

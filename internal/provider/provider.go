package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"promptforge/internal/models"
)

// ErrorKind is the stable classification every adapter maps its
// provider-native failures into. The orchestrator relies on this taxonomy to
// decide ledger rollback and the user-facing message; raw upstream bodies
// are logged, never surfaced.
type ErrorKind string

const (
	KindInvalidCredentials  ErrorKind = "invalid_credentials"
	KindRateLimited         ErrorKind = "rate_limited"
	KindQuotaExhausted      ErrorKind = "quota_exhausted"
	KindUnsupportedModel    ErrorKind = "unsupported_model"
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"
	KindUnknown             ErrorKind = "unknown"
)

// Error is the canonical provider failure. Raw carries the upstream message
// for logs only.
type Error struct {
	Provider models.ProviderKind
	Kind     ErrorKind
	Raw      string
}

func (e *Error) Error() string {
	if e.Raw == "" {
		return fmt.Sprintf("provider %s: %s", e.Provider, e.Kind)
	}
	return fmt.Sprintf("provider %s: %s: %s", e.Provider, e.Kind, e.Raw)
}

// NewError constructs a canonical provider error.
func NewError(providerKind models.ProviderKind, kind ErrorKind, raw string) *Error {
	return &Error{Provider: providerKind, Kind: kind, Raw: raw}
}

// AsError unwraps err into a canonical provider error if it is one.
func AsError(err error) (*Error, bool) {
	var provErr *Error
	if errors.As(err, &provErr) {
		return provErr, true
	}
	return nil, false
}

// PromptSpec is the fully rendered instruction an adapter sends upstream.
// System and User are plain text; each adapter fits them into its own wire
// format (message pair, combined prompt, contents/parts).
type PromptSpec struct {
	Model     string
	System    string
	User      string
	MaxTokens int
}

// Adapter translates a rendered prompt into one provider's wire format,
// issues a single outbound call, and maps the response into plain text or a
// canonical *Error. Retry policy belongs to the caller, never the adapter.
type Adapter interface {
	Kind() models.ProviderKind
	Invoke(ctx context.Context, spec PromptSpec) (string, error)
}

// ClassifyStatus maps an HTTP response status to the canonical error kind.
// Quota semantics hide behind 429 on most providers, so callers pass
// quotaExhausted when the error body says the account ran out rather than
// merely being throttled.
func ClassifyStatus(status int, quotaExhausted bool) ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindInvalidCredentials
	case status == http.StatusTooManyRequests && quotaExhausted:
		return KindQuotaExhausted
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusPaymentRequired:
		return KindQuotaExhausted
	case status == http.StatusNotFound:
		return KindUnsupportedModel
	case status >= 500:
		return KindUpstreamUnavailable
	default:
		return KindUnknown
	}
}

// WrapTransportError maps a transport-level failure (timeout, refused
// connection, cancelled context) to the canonical taxonomy. Timeouts count
// as the upstream being unavailable.
func WrapTransportError(providerKind models.ProviderKind, err error) *Error {
	return NewError(providerKind, KindUpstreamUnavailable, err.Error())
}

package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"promptforge/internal/catalog"
	"promptforge/internal/ledger"
	"promptforge/internal/pipeline"
	"promptforge/internal/provider"
)

// requestError is the canonical error carried through echo to the error
// handler. Kind is a stable machine-readable category; Message never echoes
// raw upstream bodies.
type requestError struct {
	Status  int
	Message string
	Kind    string
	// Text carries generated output that was produced but could not be
	// billed, so the caller never loses it.
	Text string
}

func (e requestError) Error() string {
	return e.Message
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Kind    string `json:"kind"`
		Text    string `json:"text,omitempty"`
	} `json:"error"`
}

func writeError(c echo.Context, reqErr requestError) error {
	var payload errorBody
	payload.Error.Message = reqErr.Message
	payload.Error.Kind = reqErr.Kind
	payload.Error.Text = reqErr.Text
	return c.JSON(reqErr.Status, payload)
}

func errorHandler(err error, c echo.Context) {
	var reqErr requestError
	if errors.As(err, &reqErr) {
		_ = writeError(c, reqErr)
		return
	}

	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		_ = writeError(c, requestError{
			Status:  echoErr.Code,
			Message: fmt.Sprintf("%v", echoErr.Message),
			Kind:    "invalid_request",
		})
		return
	}

	_ = writeError(c, requestError{
		Status:  http.StatusInternalServerError,
		Message: "internal server error",
		Kind:    "server_error",
	})
}

// toHTTPError maps the pipeline error taxonomy to a stable status and
// message category. Each kind keeps a fixed user-facing message; upstream
// detail stays in the logs.
func toHTTPError(err error) error {
	switch {
	case errors.Is(err, catalog.ErrUnknownModel):
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "the requested model is not available",
			Kind:    "configuration_error",
		}
	case errors.Is(err, catalog.ErrNoDefaultForTier):
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "no default model is configured for this account",
			Kind:    "configuration_error",
		}
	case errors.Is(err, pipeline.ErrNoAdapter):
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "the requested model is not available",
			Kind:    "configuration_error",
		}
	case errors.Is(err, ledger.ErrUnknownAccount):
		return requestError{
			Status:  http.StatusNotFound,
			Message: "account not found",
			Kind:    "unknown_account",
		}
	case errors.Is(err, ledger.ErrInsufficientCredits):
		return requestError{
			Status:  http.StatusPaymentRequired,
			Message: "not enough credits; top up your balance to continue",
			Kind:    "insufficient_credits",
		}
	case errors.Is(err, pipeline.ErrUnsupportedBySelectedModel):
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "the selected model does not support suggestions; choose a different model",
			Kind:    "unsupported_by_model",
		}
	case errors.Is(err, pipeline.ErrEmptyInput):
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "input is required",
			Kind:    "invalid_request",
		}
	}

	var inconsistent *pipeline.LedgerInconsistentError
	if errors.As(err, &inconsistent) {
		// The output was produced; returning it here means a billing outage
		// never destroys the caller's result.
		return requestError{
			Status:  http.StatusInternalServerError,
			Message: "the request completed but billing could not be confirmed; support has been notified",
			Kind:    "ledger_inconsistent",
			Text:    inconsistent.Text,
		}
	}

	if provErr, ok := provider.AsError(err); ok {
		return providerHTTPError(provErr)
	}

	return requestError{
		Status:  http.StatusInternalServerError,
		Message: "internal server error",
		Kind:    "server_error",
	}
}

func providerHTTPError(provErr *provider.Error) requestError {
	switch provErr.Kind {
	case provider.KindInvalidCredentials:
		// A bad upstream key is our configuration problem, nothing the
		// caller can fix.
		return requestError{
			Status:  http.StatusBadGateway,
			Message: "the provider rejected our credentials; this is a configuration problem",
			Kind:    "provider_credentials",
		}
	case provider.KindRateLimited:
		return requestError{
			Status:  http.StatusTooManyRequests,
			Message: "the provider is rate limiting requests; try again shortly",
			Kind:    "provider_rate_limited",
		}
	case provider.KindQuotaExhausted:
		return requestError{
			Status:  http.StatusTooManyRequests,
			Message: "the provider quota is exhausted; try again shortly",
			Kind:    "provider_quota_exhausted",
		}
	case provider.KindUnsupportedModel:
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "the provider does not recognise the requested model",
			Kind:    "provider_unsupported_model",
		}
	case provider.KindUpstreamUnavailable:
		return requestError{
			Status:  http.StatusBadGateway,
			Message: "the provider is currently unavailable; try again shortly",
			Kind:    "provider_unavailable",
		}
	default:
		return requestError{
			Status:  http.StatusBadGateway,
			Message: "the provider returned an unexpected response",
			Kind:    "provider_error",
		}
	}
}

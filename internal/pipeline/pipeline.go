// Package pipeline implements the generation request orchestrator: resolve
// the model, hold the credits, call the provider, clean the output, then
// settle the ledger exactly once.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/felixgeelhaar/fortify/timeout"
	"github.com/google/uuid"

	"promptforge/internal/catalog"
	"promptforge/internal/ledger"
	"promptforge/internal/models"
	"promptforge/internal/normalize"
	"promptforge/internal/provider"
)

// ErrUnsupportedBySelectedModel indicates a suggestion request against a
// model whose configuration does not enable suggestions.
var ErrUnsupportedBySelectedModel = errors.New("selected model does not support suggestions")

// ErrEmptyInput indicates a request without input text.
var ErrEmptyInput = errors.New("input text must not be empty")

// ErrNoAdapter indicates a resolved model references a provider the process
// has no adapter for. This is a deployment configuration problem.
var ErrNoAdapter = errors.New("no adapter for provider")

// LedgerInconsistentError is surfaced when the provider produced usable
// output but the ledger commit kept failing after bounded retries: the text
// exists, billing is unconfirmed, and operators must reconcile the named
// reservation out of band. The generated text is carried so it is never
// silently discarded.
type LedgerInconsistentError struct {
	ReservationID string
	Text          string
	Err           error
}

func (e *LedgerInconsistentError) Error() string {
	return fmt.Sprintf("ledger commit failed for reservation %s: %v", e.ReservationID, e.Err)
}

func (e *LedgerInconsistentError) Unwrap() error {
	return e.Err
}

const (
	invokeTimeout      = 90 * time.Second
	commitMaxAttempts  = 4
	commitInitialDelay = 200 * time.Millisecond
)

// Pipeline is the entry point callers invoke for generation, improvement
// and suggestion requests.
type Pipeline struct {
	resolver *catalog.Resolver
	ledger   ledger.Ledger
	adapters map[models.ProviderKind]provider.Adapter
	logger   *slog.Logger
}

// New constructs a pipeline over the given resolver, ledger and adapters.
func New(resolver *catalog.Resolver, creditLedger ledger.Ledger, adapters map[models.ProviderKind]provider.Adapter, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		resolver: resolver,
		ledger:   creditLedger,
		adapters: adapters,
		logger:   logger,
	}
}

// Generate runs the full pipeline for a generate or improve request. The
// result is returned only after the ledger debit committed; any failure
// before that point releases the reservation.
func (p *Pipeline) Generate(ctx context.Context, req models.GenerationRequest) (models.GenerationResult, error) {
	if req.Op == models.OpSuggest {
		return models.GenerationResult{}, fmt.Errorf("suggestion requests must use Suggest")
	}

	descriptor, adapter, err := p.resolve(ctx, req)
	if err != nil {
		return models.GenerationResult{}, err
	}

	run, err := p.begin(ctx, req, descriptor)
	if err != nil {
		return models.GenerationResult{}, err
	}
	defer run.releaseIfUnsettled(ctx)

	raw, err := run.invoke(ctx, adapter, provider.BuildPrompt(req, descriptor.ID))
	if err != nil {
		return models.GenerationResult{}, err
	}

	cleaned := normalize.Clean(raw)
	if cleaned == "" {
		return models.GenerationResult{}, run.unusableOutput(descriptor.Provider, "empty output after normalisation")
	}

	if err := run.commit(ctx, cleaned); err != nil {
		return models.GenerationResult{}, err
	}

	return models.GenerationResult{
		Text:           cleaned,
		CreditsCharged: descriptor.CreditCost,
		Provider:       descriptor.Provider,
	}, nil
}

// Suggest runs the pipeline for a keyword suggestion request. It fails fast,
// before any credits are held, when the resolved model does not support
// suggestions.
func (p *Pipeline) Suggest(ctx context.Context, req models.GenerationRequest) (models.SuggestionSet, int, error) {
	req.Op = models.OpSuggest

	descriptor, adapter, err := p.resolve(ctx, req)
	if err != nil {
		return models.SuggestionSet{}, 0, err
	}
	if !descriptor.SupportsSuggestions {
		return models.SuggestionSet{}, 0, fmt.Errorf("%w: %s", ErrUnsupportedBySelectedModel, descriptor.ID)
	}

	run, err := p.begin(ctx, req, descriptor)
	if err != nil {
		return models.SuggestionSet{}, 0, err
	}
	defer run.releaseIfUnsettled(ctx)

	raw, err := run.invoke(ctx, adapter, provider.BuildPrompt(req, descriptor.ID))
	if err != nil {
		return models.SuggestionSet{}, 0, err
	}

	set, err := provider.ParseSuggestions(raw)
	if err != nil {
		return models.SuggestionSet{}, 0, run.unusableOutput(descriptor.Provider, fmt.Sprintf("unusable suggestion payload: %v", err))
	}

	if err := run.commit(ctx, raw); err != nil {
		return models.SuggestionSet{}, 0, err
	}

	return set, descriptor.CreditCost, nil
}

// resolve validates the request and maps it to a model descriptor plus the
// adapter serving that provider. Pure lookups; nothing is reserved yet.
func (p *Pipeline) resolve(ctx context.Context, req models.GenerationRequest) (models.ModelDescriptor, provider.Adapter, error) {
	if !req.Op.Valid() {
		return models.ModelDescriptor{}, nil, fmt.Errorf("invalid operation kind %q", req.Op)
	}
	if req.Input == "" {
		return models.ModelDescriptor{}, nil, ErrEmptyInput
	}

	account, err := p.ledger.Account(ctx, req.AccountID)
	if err != nil {
		return models.ModelDescriptor{}, nil, err
	}

	descriptor, err := p.resolver.Resolve(req.ModelID, account.Tier)
	if err != nil {
		return models.ModelDescriptor{}, nil, err
	}

	adapter, ok := p.adapters[descriptor.Provider]
	if !ok {
		return models.ModelDescriptor{}, nil, fmt.Errorf("%w: %s", ErrNoAdapter, descriptor.Provider)
	}
	return descriptor, adapter, nil
}

// run tracks one request's reservation through to its terminal state.
type run struct {
	pipeline    *Pipeline
	requestID   string
	descriptor  models.ModelDescriptor
	reservation *ledger.Reservation
	// settled flips once the reservation reached a deliberate outcome:
	// committed, rolled back, or intentionally left for reconciliation.
	settled bool
}

// begin holds the model's credit cost against the account.
func (p *Pipeline) begin(ctx context.Context, req models.GenerationRequest, descriptor models.ModelDescriptor) (*run, error) {
	reservation, err := p.ledger.Reserve(ctx, req.AccountID, descriptor.CreditCost)
	if err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	p.logger.Info("credits reserved",
		"request_id", requestID,
		"account", req.AccountID,
		"model", descriptor.ID,
		"cost", descriptor.CreditCost,
	)

	return &run{
		pipeline:    p,
		requestID:   requestID,
		descriptor:  descriptor,
		reservation: reservation,
	}, nil
}

// releaseIfUnsettled rolls the reservation back when the request is leaving
// without a deliberate outcome, which covers provider failures, panics and
// cancelled contexts alike. Rollback is idempotent so a double release is
// harmless.
func (r *run) releaseIfUnsettled(ctx context.Context) {
	if r.settled {
		return
	}
	if err := r.pipeline.ledger.Rollback(ctx, r.reservation); err != nil {
		r.pipeline.logger.Error("reservation rollback failed",
			"request_id", r.requestID,
			"reservation", r.reservation.ID,
			"error", err,
		)
	}
}

// invoke dispatches to the adapter under a bounded timeout. Exceeding the
// deadline counts as the upstream being unavailable.
func (r *run) invoke(ctx context.Context, adapter provider.Adapter, spec provider.PromptSpec) (string, error) {
	guard := timeout.New[string](timeout.Config{DefaultTimeout: invokeTimeout})
	raw, err := guard.Execute(ctx, invokeTimeout, func(ctx context.Context) (string, error) {
		return adapter.Invoke(ctx, spec)
	})
	if err == nil {
		return raw, nil
	}

	provErr, ok := provider.AsError(err)
	if !ok {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			provErr = provider.NewError(r.descriptor.Provider, provider.KindUpstreamUnavailable, err.Error())
		} else {
			provErr = provider.NewError(r.descriptor.Provider, provider.KindUnknown, err.Error())
		}
	}

	r.pipeline.logger.Warn("provider call failed",
		"request_id", r.requestID,
		"provider", provErr.Provider,
		"kind", provErr.Kind,
		"raw", provErr.Raw,
	)
	return "", provErr
}

// unusableOutput records that the provider answered but the output cannot be
// delivered, so the caller must not be billed.
func (r *run) unusableOutput(kind models.ProviderKind, detail string) error {
	r.pipeline.logger.Warn("provider output unusable",
		"request_id", r.requestID,
		"provider", kind,
		"detail", detail,
	)
	return provider.NewError(kind, provider.KindUnknown, detail)
}

// commit converts the hold into a permanent debit. Output already exists at
// this point, so a failing commit is retried with backoff rather than giving
// the text away unbilled; when retries are exhausted the reservation is left
// for out-of-band reconciliation and flagged to the caller.
func (r *run) commit(ctx context.Context, text string) error {
	committer := retry.New[int](retry.Config{
		MaxAttempts:   commitMaxAttempts,
		InitialDelay:  commitInitialDelay,
		BackoffPolicy: retry.BackoffExponential,
	})

	newBalance, err := committer.Do(ctx, func(ctx context.Context) (int, error) {
		return r.pipeline.ledger.Commit(ctx, r.reservation)
	})
	if err != nil {
		r.settled = true
		// The text goes in the log so the operator reconciling the pending
		// reservation can still deliver or refund the output.
		r.pipeline.logger.Error("ledger commit exhausted retries; reservation needs reconciliation",
			"request_id", r.requestID,
			"reservation", r.reservation.ID,
			"account", r.reservation.AccountID,
			"amount", r.reservation.Amount,
			"text", text,
			"error", err,
		)
		return &LedgerInconsistentError{
			ReservationID: r.reservation.ID,
			Text:          text,
			Err:           err,
		}
	}

	r.settled = true
	r.pipeline.logger.Info("credits committed",
		"request_id", r.requestID,
		"account", r.reservation.AccountID,
		"amount", r.reservation.Amount,
		"balance", newBalance,
	)
	return nil
}

package ledger

import (
	"context"
	"errors"
)

// ErrInsufficientCredits indicates the account's available balance cannot
// cover the requested reservation.
var ErrInsufficientCredits = errors.New("insufficient credits")

// ErrUnknownAccount indicates the account does not exist in the ledger.
var ErrUnknownAccount = errors.New("unknown account")

// ErrReservationNotPending indicates a finalize call for a reservation that
// already reached a terminal state.
var ErrReservationNotPending = errors.New("reservation is not pending")

// ReservationState tracks a hold's lifecycle. Every reservation must reach
// exactly one terminal state before its request returns.
type ReservationState string

const (
	StatePending    ReservationState = "pending"
	StateCommitted  ReservationState = "committed"
	StateRolledBack ReservationState = "rolled_back"
)

// Reservation is a temporary hold against a credit balance pending the
// outcome of one request.
type Reservation struct {
	ID        string
	AccountID string
	Amount    int
	State     ReservationState
}

// Account is the ledger's view of a caller: the prepaid balance plus the
// tier used to pick a default model. How tiers are assigned is a commerce
// concern outside this ledger.
type Account struct {
	ID      string
	Tier    string
	Balance int
}

// Ledger is the credit store the pipeline bills against.
//
// Reserve must be atomic with respect to concurrent requests against the
// same account: the sum of concurrently held reservations never exceeds the
// balance. Commit converts the hold into a permanent debit and returns the
// new balance. Rollback releases the hold and is idempotent.
type Ledger interface {
	Account(ctx context.Context, accountID string) (Account, error)
	Reserve(ctx context.Context, accountID string, amount int) (*Reservation, error)
	Commit(ctx context.Context, reservation *Reservation) (int, error)
	Rollback(ctx context.Context, reservation *Reservation) error
}

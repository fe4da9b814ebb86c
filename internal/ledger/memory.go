package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"promptforge/internal/config"
)

type memoryAccount struct {
	tier    string
	balance int
	// held is the sum of pending reservations; available = balance - held.
	held int
}

// Memory is an in-process Ledger keyed by account ID. A single mutex guards
// the maps; balance checks and reservation moves happen under it, which
// serialises concurrent reservations for the same account.
type Memory struct {
	mu           sync.Mutex
	accounts     map[string]*memoryAccount
	reservations map[string]*Reservation
}

// NewMemory constructs an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{
		accounts:     make(map[string]*memoryAccount),
		reservations: make(map[string]*Reservation),
	}
}

// NewMemoryFromConfig seeds a ledger with the configured accounts.
func NewMemoryFromConfig(cfg config.Config) *Memory {
	m := NewMemory()
	for _, account := range cfg.Accounts {
		m.CreateAccount(account.ID, account.Tier, account.Balance)
	}
	return m
}

// CreateAccount registers an account, replacing any existing entry.
func (m *Memory) CreateAccount(accountID, tier string, balance int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[accountID] = &memoryAccount{tier: tier, balance: balance}
}

// Account returns a snapshot of the account's tier and settled balance.
func (m *Memory) Account(ctx context.Context, accountID string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.accounts[accountID]
	if !ok {
		return Account{}, fmt.Errorf("%w: %s", ErrUnknownAccount, accountID)
	}
	return Account{ID: accountID, Tier: entry.tier, Balance: entry.balance}, nil
}

// Reserve places a hold of amount credits against the account's available
// balance, failing with ErrInsufficientCredits when availability is short.
// Two concurrent reservations that together exceed the balance resolve to
// exactly one success.
func (m *Memory) Reserve(ctx context.Context, accountID string, amount int) (*Reservation, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("reservation amount must be positive, got %d", amount)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, accountID)
	}

	available := entry.balance - entry.held
	if available < amount {
		return nil, fmt.Errorf("%w: account %s has %d available, needs %d", ErrInsufficientCredits, accountID, available, amount)
	}
	entry.held += amount

	reservation := &Reservation{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Amount:    amount,
		State:     StatePending,
	}
	m.reservations[reservation.ID] = reservation
	return reservation, nil
}

// Commit converts a pending reservation into a permanent debit and returns
// the account's new settled balance.
func (m *Memory) Commit(ctx context.Context, reservation *Reservation) (int, error) {
	if reservation == nil {
		return 0, fmt.Errorf("reservation must not be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.reservations[reservation.ID]
	if !ok {
		return 0, fmt.Errorf("unknown reservation %s", reservation.ID)
	}
	if stored.State != StatePending {
		return 0, fmt.Errorf("%w: %s is %s", ErrReservationNotPending, stored.ID, stored.State)
	}

	entry, ok := m.accounts[stored.AccountID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownAccount, stored.AccountID)
	}

	entry.held -= stored.Amount
	entry.balance -= stored.Amount
	stored.State = StateCommitted
	reservation.State = StateCommitted
	return entry.balance, nil
}

// Rollback releases a pending reservation back to the available balance.
// Rolling back a reservation that already reached a terminal state is a
// no-op, so calling it twice never double-credits.
func (m *Memory) Rollback(ctx context.Context, reservation *Reservation) error {
	if reservation == nil {
		return fmt.Errorf("reservation must not be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.reservations[reservation.ID]
	if !ok {
		return fmt.Errorf("unknown reservation %s", reservation.ID)
	}
	if stored.State != StatePending {
		reservation.State = stored.State
		return nil
	}

	entry, ok := m.accounts[stored.AccountID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAccount, stored.AccountID)
	}

	entry.held -= stored.Amount
	stored.State = StateRolledBack
	reservation.State = StateRolledBack
	return nil
}

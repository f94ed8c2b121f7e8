package payment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/orienta-app/orienta/internal/models"
)

const (
	defaultResolveAttempts = 3
	defaultResolveDelay    = 3 * time.Second
	defaultCreditAmount    = 1
)

// AccountStore resolves payment customers to internal accounts.
// FindByEmail returns (nil, nil) when no account exists for the address.
type AccountStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// LedgerStore mutates token balances. EnsureEntry must be an idempotent
// conditional insert and Credit an atomic increment tied to the provider
// event ID, so that concurrent handler instances need no locking here.
type LedgerStore interface {
	EnsureEntry(ctx context.Context, userID uuid.UUID) error
	Credit(ctx context.Context, userID uuid.UUID, eventID string, amount int64) (balance int64, applied bool, err error)
}

// Result reports the outcome of processing one event
type Result struct {
	Credited  bool
	Duplicate bool
	Balance   int64
}

// Processor reconciles verified purchase events with the token ledger.
//
// Account registration and payment notification are causally related but
// asynchronous writes: the purchase can complete before the account row is
// visible. The processor absorbs that window with a bounded lookup retry;
// past the bound it fails and relies on the provider's redelivery.
type Processor struct {
	accounts AccountStore
	ledger   LedgerStore
	logger   *slog.Logger

	attempts int
	delay    time.Duration
	credit   int64
}

// Option configures a Processor
type Option func(*Processor)

// WithRetryPolicy overrides the account resolution retry bound and delay
func WithRetryPolicy(attempts int, delay time.Duration) Option {
	return func(p *Processor) {
		if attempts > 0 {
			p.attempts = attempts
		}
		p.delay = delay
	}
}

// WithCreditAmount overrides the tokens granted per completed purchase
func WithCreditAmount(amount int64) Option {
	return func(p *Processor) {
		p.credit = amount
	}
}

// NewProcessor creates a processor with the production retry policy
func NewProcessor(accounts AccountStore, ledger LedgerStore, logger *slog.Logger, opts ...Option) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		accounts: accounts,
		ledger:   ledger,
		logger:   logger,
		attempts: defaultResolveAttempts,
		delay:    defaultResolveDelay,
		credit:   defaultCreditAmount,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process handles one verified, decoded event. Event types other than
// checkout completion return a zero Result so the handler acknowledges them
// without touching any store.
func (p *Processor) Process(ctx context.Context, evt *Event) (*Result, error) {
	if evt.Type != EventCheckoutCompleted {
		return &Result{}, nil
	}

	email := evt.CustomerEmail()
	if email == "" {
		p.logger.Error("purchase event without customer email",
			"event_id", evt.ID)
		return nil, fmt.Errorf("event %s: %w", evt.ID, ErrMissingIdentity)
	}

	user, err := p.resolveAccount(ctx, email, evt.ID)
	if err != nil {
		return nil, err
	}

	if err := p.ledger.EnsureEntry(ctx, user.ID); err != nil {
		p.logger.Error("failed to ensure ledger entry",
			"event_id", evt.ID, "user_id", user.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrLedgerWrite, err)
	}

	balance, applied, err := p.ledger.Credit(ctx, user.ID, evt.ID, p.credit)
	if err != nil {
		p.logger.Error("failed to apply credit",
			"event_id", evt.ID, "user_id", user.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrLedgerWrite, err)
	}

	if !applied {
		p.logger.Info("duplicate event delivery ignored",
			"event_id", evt.ID, "user_id", user.ID, "balance", balance)
		return &Result{Duplicate: true, Balance: balance}, nil
	}

	p.logger.Info("credit applied",
		"event_id", evt.ID, "user_id", user.ID, "amount", p.credit, "balance", balance)
	return &Result{Credited: true, Balance: balance}, nil
}

// resolveAccount looks up the account for a customer email, retrying across
// the replication window. The wait suspends only this event's pipeline; a
// cancelled context cuts the wait short and fails cleanly.
func (p *Processor) resolveAccount(ctx context.Context, email, eventID string) (*models.User, error) {
	email = strings.ToLower(email)

	for attempt := 1; attempt <= p.attempts; attempt++ {
		user, err := p.accounts.FindByEmail(ctx, email)
		if err != nil {
			p.logger.Error("account lookup failed",
				"event_id", eventID, "email", email, "attempt", attempt, "error", err)
		} else if user != nil {
			return user, nil
		}

		if attempt < p.attempts {
			select {
			case <-ctx.Done():
				p.logger.Error("account resolution cancelled",
					"event_id", eventID, "email", email, "attempts", attempt)
				return nil, fmt.Errorf("resolving %s: %w", email, ErrAccountNotFound)
			case <-time.After(p.delay):
			}
		}
	}

	p.logger.Error("account resolution exhausted retries",
		"event_id", eventID, "email", email, "attempts", p.attempts)
	return nil, fmt.Errorf("resolving %s after %d attempts: %w", email, p.attempts, ErrAccountNotFound)
}

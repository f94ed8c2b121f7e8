package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/orienta-app/orienta/internal/models"
)

// ErrInsufficientTokens is returned when a debit would take a balance below zero.
var ErrInsufficientTokens = errors.New("insufficient token balance")

// LedgerRepository handles token ledger database operations.
//
// Balance mutations are expressed as atomic single-statement updates (or a
// single transaction) at the store so that concurrent handler instances never
// lose increments; there is no application-level locking.
type LedgerRepository struct {
	db *sql.DB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Get retrieves the ledger entry for a user. Returns (nil, nil) when absent.
func (r *LedgerRepository) Get(ctx context.Context, userID uuid.UUID) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, balance, created_at, updated_at FROM ledgers WHERE user_id = $1`,
		userID,
	).Scan(&entry.UserID, &entry.Balance, &entry.CreatedAt, &entry.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}

	return &entry, nil
}

// EnsureEntry creates a zero-balance ledger entry for the user if none
// exists. The conditional insert makes concurrent first-credits safe: the
// loser of the race no-ops instead of creating a duplicate row.
func (r *LedgerRepository) EnsureEntry(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO ledgers (user_id, balance) VALUES ($1, 0)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to ensure ledger entry: %w", err)
	}
	return nil
}

// Credit applies an increment to the user's balance, recording the provider
// event ID so redelivery of the same event is a no-op. Returns the resulting
// balance and whether the credit was applied (false means the event was
// already processed).
//
// The event record and the increment share one transaction: either both
// commit or neither does, so a redelivered event can never be half-applied.
func (r *LedgerRepository) Credit(ctx context.Context, userID uuid.UUID, eventID string, amount int64) (int64, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO payment_events (provider_event_id) VALUES ($1)
		 ON CONFLICT (provider_event_id) DO NOTHING`,
		eventID,
	)
	if err != nil {
		return 0, false, fmt.Errorf("failed to record payment event: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("failed to record payment event: %w", err)
	}
	if rows == 0 {
		// Duplicate delivery; report the current balance untouched.
		var balance int64
		err := tx.QueryRowContext(ctx,
			`SELECT balance FROM ledgers WHERE user_id = $1`, userID,
		).Scan(&balance)
		if err != nil {
			return 0, false, fmt.Errorf("failed to read balance: %w", err)
		}
		return balance, false, tx.Commit()
	}

	var balance int64
	err = tx.QueryRowContext(ctx,
		`UPDATE ledgers SET balance = balance + $1, updated_at = now()
		 WHERE user_id = $2 RETURNING balance`,
		amount, userID,
	).Scan(&balance)
	if err != nil {
		return 0, false, fmt.Errorf("failed to increment balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("failed to commit credit: %w", err)
	}

	return balance, true, nil
}

// Unlock spends one token to unlock a program for a user. A program already
// unlocked by the user is free; otherwise the debit and the unlock record
// commit together. Returns whether the program was already unlocked.
func (r *LedgerRepository) Unlock(ctx context.Context, userID uuid.UUID, programID int64) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM program_unlocks WHERE user_id = $1 AND program_id = $2)`,
		userID, programID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check unlock: %w", err)
	}
	if exists {
		return true, tx.Commit()
	}

	// Guarded decrement; zero rows means the balance was below one.
	result, err := tx.ExecContext(ctx,
		`UPDATE ledgers SET balance = balance - 1, updated_at = now()
		 WHERE user_id = $1 AND balance >= 1`,
		userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to debit balance: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to debit balance: %w", err)
	}
	if rows == 0 {
		return false, ErrInsufficientTokens
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO program_unlocks (user_id, program_id) VALUES ($1, $2)`,
		userID, programID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to record unlock: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit unlock: %w", err)
	}

	return false, nil
}

// HasUnlock reports whether the user has unlocked the program
func (r *LedgerRepository) HasUnlock(ctx context.Context, userID uuid.UUID, programID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM program_unlocks WHERE user_id = $1 AND program_id = $2)`,
		userID, programID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check unlock: %w", err)
	}
	return exists, nil
}

// ListUnlocks returns the user's unlock records, newest first
func (r *LedgerRepository) ListUnlocks(ctx context.Context, userID uuid.UUID) ([]models.ProgramUnlock, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, program_id, created_at FROM program_unlocks
		 WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list unlocks: %w", err)
	}
	defer rows.Close()

	var unlocks []models.ProgramUnlock
	for rows.Next() {
		var u models.ProgramUnlock
		if err := rows.Scan(&u.UserID, &u.ProgramID, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan unlock: %w", err)
		}
		unlocks = append(unlocks, u)
	}

	return unlocks, rows.Err()
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// LedgerEntry is the durable record of an account's spendable token balance.
// Exactly one entry exists per account; the balance never goes below zero.
type LedgerEntry struct {
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Balance   int64     `json:"balance" db:"balance"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ProgramUnlock records that a user spent a token on a program's details
type ProgramUnlock struct {
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	ProgramID int64     `json:"program_id" db:"program_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

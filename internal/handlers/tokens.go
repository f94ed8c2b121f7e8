package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/orienta-app/orienta/internal/middleware"
	"github.com/orienta-app/orienta/internal/models"
)

// BalanceStore reads a user's ledger state. Get returns (nil, nil) when no
// ledger row exists yet.
type BalanceStore interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.LedgerEntry, error)
	ListUnlocks(ctx context.Context, userID uuid.UUID) ([]models.ProgramUnlock, error)
}

// TokenHandler exposes the caller's token balance and unlock history
type TokenHandler struct {
	ledger BalanceStore
	logger *slog.Logger
}

// NewTokenHandler creates a new token handler
func NewTokenHandler(ledger BalanceStore, logger *slog.Logger) *TokenHandler {
	return &TokenHandler{ledger: ledger, logger: logger}
}

// Balance returns the caller's current token balance. An account without a
// ledger row yet simply has zero tokens.
func (h *TokenHandler) Balance(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	entry, err := h.ledger.Get(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to get balance", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get balance"})
		return
	}

	var balance int64
	if entry != nil {
		balance = entry.Balance
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

// Unlocks returns the caller's unlock history, newest first
func (h *TokenHandler) Unlocks(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	unlocks, err := h.ledger.ListUnlocks(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list unlocks", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list unlocks"})
		return
	}
	if unlocks == nil {
		unlocks = []models.ProgramUnlock{}
	}

	c.JSON(http.StatusOK, gin.H{"unlocks": unlocks})
}

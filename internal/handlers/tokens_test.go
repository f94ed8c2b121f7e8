package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/orienta-app/orienta/internal/config"
	"github.com/orienta-app/orienta/internal/middleware"
	"github.com/orienta-app/orienta/internal/models"
)

type fakeBalances struct {
	entry   *models.LedgerEntry
	unlocks []models.ProgramUnlock
}

func (f *fakeBalances) Get(ctx context.Context, userID uuid.UUID) (*models.LedgerEntry, error) {
	return f.entry, nil
}

func (f *fakeBalances) ListUnlocks(ctx context.Context, userID uuid.UUID) ([]models.ProgramUnlock, error) {
	return f.unlocks, nil
}

func tokensRouter(balances *fakeBalances) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(testingWriter{}, nil))
	cfg := &config.Config{JWTSecret: testJWTSecret}
	h := NewTokenHandler(balances, logger)

	router := gin.New()
	authed := router.Group("/api/v1")
	authed.Use(middleware.Auth(cfg))
	authed.GET("/tokens", h.Balance)
	authed.GET("/unlocks", h.Unlocks)
	return router
}

func TestBalance(t *testing.T) {
	userID := uuid.New()

	t.Run("existing ledger row", func(t *testing.T) {
		router := tokensRouter(&fakeBalances{entry: &models.LedgerEntry{UserID: userID, Balance: 3}})
		w := doRequest(router, http.MethodGet, "/api/v1/tokens", bearerToken(t, userID))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"balance": 3}`, w.Body.String())
	})

	t.Run("no ledger row yet", func(t *testing.T) {
		router := tokensRouter(&fakeBalances{})
		w := doRequest(router, http.MethodGet, "/api/v1/tokens", bearerToken(t, userID))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"balance": 0}`, w.Body.String())
	})

	t.Run("unauthenticated", func(t *testing.T) {
		router := tokensRouter(&fakeBalances{})
		w := doRequest(router, http.MethodGet, "/api/v1/tokens", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestUnlockHistory(t *testing.T) {
	userID := uuid.New()

	t.Run("with unlocks", func(t *testing.T) {
		router := tokensRouter(&fakeBalances{unlocks: []models.ProgramUnlock{
			{UserID: userID, ProgramID: 7, CreatedAt: time.Now()},
			{UserID: userID, ProgramID: 3, CreatedAt: time.Now().Add(-time.Hour)},
		}})
		w := doRequest(router, http.MethodGet, "/api/v1/unlocks", bearerToken(t, userID))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"program_id":7`)
		assert.Contains(t, w.Body.String(), `"program_id":3`)
	})

	t.Run("empty history is an empty list", func(t *testing.T) {
		router := tokensRouter(&fakeBalances{})
		w := doRequest(router, http.MethodGet, "/api/v1/unlocks", bearerToken(t, userID))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"unlocks": []}`, w.Body.String())
	})
}

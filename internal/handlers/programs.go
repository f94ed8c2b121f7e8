package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/orienta-app/orienta/internal/middleware"
	"github.com/orienta-app/orienta/internal/models"
	"github.com/orienta-app/orienta/internal/repository"
	"github.com/orienta-app/orienta/internal/services/cache"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// ProgramStore reads the catalog. GetByID returns (nil, nil) when the
// program does not exist.
type ProgramStore interface {
	List(ctx context.Context, filter models.ProgramFilter) (*models.ProgramPage, error)
	GetByID(ctx context.Context, id int64) (*models.Program, error)
}

// UnlockStore spends and checks unlock tokens. Unlock reports already=true
// when the program was unlocked earlier, without spending a token.
type UnlockStore interface {
	Unlock(ctx context.Context, userID uuid.UUID, programID int64) (already bool, err error)
	HasUnlock(ctx context.Context, userID uuid.UUID, programID int64) (bool, error)
}

// ProgramHandler handles catalog requests
type ProgramHandler struct {
	programs ProgramStore
	ledger   UnlockStore
	cache    *cache.Cache
	logger   *slog.Logger
}

// NewProgramHandler creates a new program handler
func NewProgramHandler(programs ProgramStore, ledger UnlockStore, c *cache.Cache, logger *slog.Logger) *ProgramHandler {
	return &ProgramHandler{programs: programs, ledger: ledger, cache: c, logger: logger}
}

// List returns one page of the catalog
func (h *ProgramHandler) List(c *gin.Context) {
	filter := parseFilter(c)
	key := cache.Key("programs", filter)

	var page models.ProgramPage
	if h.cache.Get(c.Request.Context(), key, &page) {
		c.JSON(http.StatusOK, page)
		return
	}

	result, err := h.programs.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list programs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list programs"})
		return
	}

	h.cache.Set(c.Request.Context(), key, result)
	c.JSON(http.StatusOK, result)
}

// Get returns one program. Evaluation notes are included only when the
// caller has unlocked the program; the rest of the record is public.
func (h *ProgramHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid program ID"})
		return
	}

	program, err := h.programs.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("failed to get program", "program_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get program"})
		return
	}
	if program == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "program not found"})
		return
	}

	unlocked := false
	if userID, ok := middleware.GetUserID(c); ok {
		unlocked, err = h.ledger.HasUnlock(c.Request.Context(), userID, id)
		if err != nil {
			h.logger.Error("failed to check unlock", "program_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get program"})
			return
		}
	}
	if !unlocked {
		program.Notes = ""
	}

	c.JSON(http.StatusOK, gin.H{"program": program, "unlocked": unlocked})
}

// Unlock spends one token to reveal a program's evaluation notes
func (h *ProgramHandler) Unlock(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid program ID"})
		return
	}

	program, err := h.programs.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("failed to get program", "program_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to unlock program"})
		return
	}
	if program == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "program not found"})
		return
	}

	already, err := h.ledger.Unlock(c.Request.Context(), userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientTokens) {
			c.JSON(http.StatusPaymentRequired, gin.H{"error": "no tokens available"})
			return
		}
		h.logger.Error("failed to unlock program", "program_id", id, "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to unlock program"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"program": program, "already_unlocked": already})
}

func parseFilter(c *gin.Context) models.ProgramFilter {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	return models.ProgramFilter{
		Search:     c.Query("search"),
		Tracks:     c.QueryArray("track"),
		Department: c.Query("department"),
		City:       c.Query("city"),
		SortBy:     c.Query("sort"),
		SortDir:    c.Query("dir"),
		Page:       page,
		PageSize:   pageSize,
	}
}

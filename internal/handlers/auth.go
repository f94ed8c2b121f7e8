package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/orienta-app/orienta/internal/config"
	"github.com/orienta-app/orienta/internal/middleware"
	"github.com/orienta-app/orienta/internal/models"
	"github.com/orienta-app/orienta/internal/repository"
)

const sessionTTL = 24 * time.Hour

// UserStore is the account storage the auth flows need. Lookups return
// (nil, nil) when no account matches.
type UserStore interface {
	Create(ctx context.Context, user *models.User, password string) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ValidatePassword(user *models.User, password string) bool
}

// LedgerProvisioner creates the zero-balance ledger row for new accounts
type LedgerProvisioner interface {
	EnsureEntry(ctx context.Context, userID uuid.UUID) error
}

// AuthHandler handles signup and login
type AuthHandler struct {
	users  UserStore
	ledger LedgerProvisioner
	cfg    *config.Config
	logger *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(users UserStore, ledger LedgerProvisioner, cfg *config.Config, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{users: users, ledger: ledger, cfg: cfg, logger: logger}
}

type signupRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Signup registers an account and returns a session token
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password (8+ chars) are required"})
		return
	}
	if !strings.Contains(req.Email, "@") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email address"})
		return
	}

	user := &models.User{
		ID:        uuid.New(),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		CreatedAt: time.Now(),
	}

	if err := h.users.Create(c.Request.Context(), user, req.Password); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		h.logger.Error("signup failed", "email", user.Email, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create account"})
		return
	}

	// Provision the ledger row up front. The webhook's guarantor covers
	// accounts created before this existed.
	if err := h.ledger.EnsureEntry(c.Request.Context(), user.ID); err != nil {
		h.logger.Error("failed to provision ledger", "user_id", user.ID, "error", err)
	}

	token, err := h.signToken(user)
	if err != nil {
		h.logger.Error("failed to sign token", "user_id", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"token": token, "user": user})
}

// Login authenticates credentials and returns a session token
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	user, err := h.users.FindByEmail(c.Request.Context(), req.Email)
	if err != nil {
		h.logger.Error("login lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	if user == nil || !h.users.ValidatePassword(user, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}

	token, err := h.signToken(user)
	if err != nil {
		h.logger.Error("failed to sign token", "user_id", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

// Me returns the authenticated account
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("account lookup failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load account"})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *AuthHandler) signToken(user *models.User) (string, error) {
	now := time.Now()
	claims := middleware.Claims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.cfg.JWTSecret))
}

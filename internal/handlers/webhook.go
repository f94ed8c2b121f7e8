package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orienta-app/orienta/internal/services/payment"
)

const webhookBodyLimit = 1 << 20 // 1MiB

// WebhookHandler receives payment provider notifications.
//
// Signature verification is the authentication mechanism for this endpoint;
// nothing reaches the processor unverified. The provider delivers at least
// once and redelivers on any non-2xx response, so rejections double as the
// system's retry channel.
type WebhookHandler struct {
	verifier  *payment.Verifier
	processor *payment.Processor
	logger    *slog.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(verifier *payment.Verifier, processor *payment.Processor, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{verifier: verifier, processor: processor, logger: logger}
}

// Receive handles one webhook delivery
func (h *WebhookHandler) Receive(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, webhookBodyLimit)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	if err := h.verifier.Verify(body, c.GetHeader(payment.SignatureHeader)); err != nil {
		h.logger.Warn("webhook rejected", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	evt, err := payment.ParseEvent(body)
	if err != nil {
		h.logger.Warn("webhook rejected", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.processor.Process(c.Request.Context(), evt); err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func statusForError(err error) int {
	if errors.Is(err, payment.ErrAuthentication) || errors.Is(err, payment.ErrMalformedEvent) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

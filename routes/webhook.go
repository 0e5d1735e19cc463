package routes

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"social-integration-backend/internal/config"
	"social-integration-backend/internal/logger"
	"social-integration-backend/models"
)

// EventProcessor consumes verified webhook deliveries.
type EventProcessor interface {
	ProcessEvent(ctx context.Context, event *models.WebhookEvent)
}

func SetupWebhookRoutes(router *gin.Engine, cfg *config.Config, processor EventProcessor) {
	if cfg.WebhookSigningSecret == "" {
		logger.Warn("webhook signature verification disabled; no signing secret configured")
	}

	// Subscription handshake. The platform sends hub.mode=subscribe with
	// the configured verify token and expects the challenge echoed back.
	router.GET("/webhooks/instagram", func(c *gin.Context) {
		mode := c.Query("hub.mode")
		token := c.Query("hub.verify_token")
		challenge := c.Query("hub.challenge")

		if mode == "" || token == "" {
			c.String(http.StatusBadRequest, "missing hub parameters")
			return
		}
		if mode != "subscribe" || token != cfg.WebhookVerifyToken {
			c.String(http.StatusForbidden, "verification failed")
			return
		}
		c.String(http.StatusOK, challenge)
	})

	router.POST("/webhooks/instagram", func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
		if err != nil {
			c.String(http.StatusBadRequest, "unreadable body")
			return
		}

		if !validSignature(cfg.WebhookSigningSecret, c.GetHeader("X-Hub-Signature-256"), body) {
			logger.Warn("webhook delivery with invalid signature", "ip", c.ClientIP())
			c.String(http.StatusForbidden, "invalid signature")
			return
		}

		var event models.WebhookEvent
		if err := json.Unmarshal(body, &event); err != nil {
			c.String(http.StatusBadRequest, "malformed payload")
			return
		}

		// Acknowledge immediately; slow processing would make the platform
		// retry and eventually disable the subscription.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			processor.ProcessEvent(ctx, &event)
		}()

		c.String(http.StatusOK, "EVENT_RECEIVED")
	})
}

// validSignature checks the X-Hub-Signature-256 header, an HMAC-SHA256 of
// the raw request body prefixed with "sha256=".
func validSignature(secret, header string, body []byte) bool {
	if secret == "" {
		// No secret configured means signature checking is disabled.
		return true
	}
	if !strings.HasPrefix(header, "sha256=") {
		return false
	}
	provided, err := hex.DecodeString(strings.TrimPrefix(header, "sha256="))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(provided, mac.Sum(nil))
}

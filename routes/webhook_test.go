package routes

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"social-integration-backend/internal/config"
	"social-integration-backend/models"
)

type countingProcessor struct {
	calls  int32
	events chan *models.WebhookEvent
}

func newCountingProcessor() *countingProcessor {
	return &countingProcessor{events: make(chan *models.WebhookEvent, 8)}
}

func (p *countingProcessor) ProcessEvent(ctx context.Context, event *models.WebhookEvent) {
	atomic.AddInt32(&p.calls, 1)
	p.events <- event
}

func webhookRouter(cfg *config.Config, processor EventProcessor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	SetupWebhookRoutes(router, cfg, processor)
	return router
}

func TestWebhookVerificationHandshake(t *testing.T) {
	cfg := &config.Config{WebhookVerifyToken: "verify-me"}
	router := webhookRouter(cfg, newCountingProcessor())

	cases := []struct {
		name       string
		query      string
		wantStatus int
		wantBody   string
	}{
		{"valid", "hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=12345", http.StatusOK, "12345"},
		{"wrong token", "hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", http.StatusForbidden, ""},
		{"wrong mode", "hub.mode=unsubscribe&hub.verify_token=verify-me&hub.challenge=12345", http.StatusForbidden, ""},
		{"missing params", "hub.challenge=12345", http.StatusBadRequest, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/webhooks/instagram?"+tc.query, nil)
			router.ServeHTTP(w, req)

			if w.Code != tc.wantStatus {
				t.Errorf("expected status %d, got %d", tc.wantStatus, w.Code)
			}
			if tc.wantBody != "" && w.Body.String() != tc.wantBody {
				t.Errorf("expected challenge %q echoed, got %q", tc.wantBody, w.Body.String())
			}
		})
	}
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookDeliveryWithValidSignature(t *testing.T) {
	cfg := &config.Config{WebhookVerifyToken: "verify-me", WebhookSigningSecret: "signing-secret"}
	processor := newCountingProcessor()
	router := webhookRouter(cfg, processor)

	body := []byte(`{"object":"instagram","entry":[{"id":"ig-biz-1","time":1756700000,` +
		`"changes":[{"field":"comments","value":{"comment_id":"c-1","media_id":"m-1","text":"nice"}}]}]}`)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/instagram", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Hub-Signature-256", sign("signing-secret", body))
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	select {
	case event := <-processor.events:
		if event.Object != "instagram" || len(event.Entry) != 1 {
			t.Errorf("unexpected event payload: %+v", event)
		}
		if event.Entry[0].Changes[0].Field != "comments" {
			t.Errorf("expected comments change, got %q", event.Entry[0].Changes[0].Field)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("processor never received the event")
	}
}

func TestWebhookDeliveryWithInvalidSignature(t *testing.T) {
	cfg := &config.Config{WebhookVerifyToken: "verify-me", WebhookSigningSecret: "signing-secret"}
	processor := newCountingProcessor()
	router := webhookRouter(cfg, processor)

	body := []byte(`{"object":"instagram","entry":[]}`)
	goodSig := sign("signing-secret", body)
	// Flip the last hex digit.
	badSig := goodSig[:len(goodSig)-1]
	if strings.HasSuffix(goodSig, "0") {
		badSig += "1"
	} else {
		badSig += "0"
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/instagram", strings.NewReader(string(body)))
	req.Header.Set("X-Hub-Signature-256", badSig)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for tampered signature, got %d", w.Code)
	}

	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt32(&processor.calls); got != 0 {
		t.Errorf("rejected delivery must never reach the processor, saw %d calls", got)
	}
}

func TestWebhookDeliveryWithMissingSignature(t *testing.T) {
	cfg := &config.Config{WebhookVerifyToken: "verify-me", WebhookSigningSecret: "signing-secret"}
	processor := newCountingProcessor()
	router := webhookRouter(cfg, processor)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/instagram",
		strings.NewReader(`{"object":"instagram","entry":[]}`))
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for missing signature, got %d", w.Code)
	}
	if got := atomic.LoadInt32(&processor.calls); got != 0 {
		t.Errorf("unsigned delivery must never reach the processor, saw %d calls", got)
	}
}

func TestWebhookDeliveryMalformedBody(t *testing.T) {
	cfg := &config.Config{WebhookVerifyToken: "verify-me", WebhookSigningSecret: "signing-secret"}
	router := webhookRouter(cfg, newCountingProcessor())

	body := []byte(`{not json`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/instagram", strings.NewReader(string(body)))
	req.Header.Set("X-Hub-Signature-256", sign("signing-secret", body))
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed payload, got %d", w.Code)
	}
}

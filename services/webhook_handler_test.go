package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"social-integration-backend/internal/config"
	"social-integration-backend/models"
)

func connectedAccount(platformID string, autoReply bool) *models.Account {
	return &models.Account{
		UserID: primitive.NewObjectID(),
		Instagram: models.InstagramConnection{
			UserID:      platformID,
			AccessToken: "stored-token",
			IsConnected: true,
			AutoResponse: models.ResponseSettings{
				Enabled: autoReply,
				Message: "Thanks for reaching out!",
			},
		},
	}
}

func commentEvent(entryID string, value any) *models.WebhookEvent {
	raw, _ := json.Marshal(value)
	return &models.WebhookEvent{
		Object: "instagram",
		Entry: []models.WebhookEntry{{
			ID:      entryID,
			Changes: []models.WebhookChange{{Field: "comments", Value: raw}},
		}},
	}
}

// fakeDedup is an in-memory stand-in for the Redis dedup window.
type fakeDedup struct {
	keys map[string]bool
}

func newFakeDedup() *fakeDedup {
	return &fakeDedup{keys: map[string]bool{}}
}

func (f *fakeDedup) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	if f.keys[key] {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = true
	return redis.NewBoolResult(true, nil)
}

func (f *fakeDedup) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var removed int64
	for _, k := range keys {
		if f.keys[k] {
			delete(f.keys, k)
			removed++
		}
	}
	return redis.NewIntResult(removed, nil)
}

func TestProcessCommentAppendsAndAutoReplies(t *testing.T) {
	var replies int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/ig/m-1/comments" {
			r.ParseForm()
			if r.PostForm.Get("message") != "Thanks for reaching out!" {
				t.Errorf("unexpected reply message %q", r.PostForm.Get("message"))
			}
			atomic.AddInt32(&replies, 1)
			writeJSON(w, http.StatusOK, map[string]string{"id": "reply-1"})
			return
		}
		t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	store := newFakeStore()
	store.accounts["ig-biz-1"] = connectedAccount("ig-biz-1", true)
	handler := NewWebhookHandler(store, testGraphClient(srv), nil, &config.Config{})

	handler.ProcessEvent(context.Background(), commentEvent("ig-biz-1", map[string]string{
		"comment_id": "c-1", "media_id": "m-1", "text": "love this",
	}))

	if len(store.comments) != 1 {
		t.Fatalf("expected one stored comment, got %d", len(store.comments))
	}
	if store.comments[0].CommentID != "c-1" || store.comments[0].Text != "love this" {
		t.Errorf("unexpected stored comment: %+v", store.comments[0])
	}
	if got := atomic.LoadInt32(&replies); got != 1 {
		t.Errorf("expected exactly one auto-reply on the media's comments edge, got %d", got)
	}
}

func TestProcessCommentSkipsAutoReplyWhenDisabled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no platform call expected, got %s %s", r.Method, r.URL.Path)
	}))
	defer srv.Close()

	store := newFakeStore()
	store.accounts["ig-biz-1"] = connectedAccount("ig-biz-1", false)
	handler := NewWebhookHandler(store, testGraphClient(srv), nil, &config.Config{})

	handler.ProcessEvent(context.Background(), commentEvent("ig-biz-1", map[string]string{
		"comment_id": "c-2", "text": "hello",
	}))

	if len(store.comments) != 1 {
		t.Fatalf("comment must still be stored, got %d", len(store.comments))
	}
}

func TestProcessCommentFallsBackToConfiguredToken(t *testing.T) {
	var replies int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/ig/c-1":
			if got := r.URL.Query().Get("access_token"); got != "env-token" {
				t.Errorf("comment fetch must use the configured token, got %q", got)
			}
			writeJSON(w, http.StatusOK, map[string]string{"text": "nice post"})
		case r.Method == http.MethodPost && r.URL.Path == "/ig/m-1/comments":
			r.ParseForm()
			if got := r.PostForm.Get("access_token"); got != "env-token" {
				t.Errorf("auto-reply must use the configured token, got %q", got)
			}
			atomic.AddInt32(&replies, 1)
			writeJSON(w, http.StatusOK, map[string]string{"id": "reply-1"})
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	store := newFakeStore()
	account := connectedAccount("ig-biz-1", true)
	account.Instagram.AccessToken = ""
	store.accounts["ig-biz-1"] = account
	handler := NewWebhookHandler(store, testGraphClient(srv), nil,
		&config.Config{BasicAccessToken: "env-token"})

	handler.ProcessEvent(context.Background(), commentEvent("ig-biz-1", map[string]string{
		"comment_id": "c-1", "media_id": "m-1",
	}))

	if len(store.comments) != 1 || store.comments[0].Text != "nice post" {
		t.Fatalf("comment must be enriched through the fallback token, got %+v", store.comments)
	}
	if got := atomic.LoadInt32(&replies); got != 1 {
		t.Errorf("expected one auto-reply through the fallback token, got %d", got)
	}
}

func TestProcessEventIgnoresUnknownFieldsAndObjects(t *testing.T) {
	store := newFakeStore()
	store.accounts["ig-biz-1"] = connectedAccount("ig-biz-1", true)
	handler := NewWebhookHandler(store, testGraphClient(httptest.NewUnstartedServer(nil)), nil, &config.Config{})

	raw := json.RawMessage(`{"anything":"goes"}`)
	handler.ProcessEvent(context.Background(), &models.WebhookEvent{
		Object: "instagram",
		Entry: []models.WebhookEntry{{
			ID:      "ig-biz-1",
			Changes: []models.WebhookChange{{Field: "unknown_field", Value: raw}},
		}},
	})
	handler.ProcessEvent(context.Background(), &models.WebhookEvent{
		Object: "page",
		Entry: []models.WebhookEntry{{
			ID:      "ig-biz-1",
			Changes: []models.WebhookChange{{Field: "comments", Value: raw}},
		}},
	})

	if len(store.comments)+len(store.mentions)+len(store.insights) != 0 {
		t.Error("unknown fields and objects must not mutate the account")
	}
}

func TestDuplicateDeliverySkipped(t *testing.T) {
	store := newFakeStore()
	store.accounts["ig-biz-1"] = connectedAccount("ig-biz-1", false)
	handler := NewWebhookHandler(store, testGraphClient(httptest.NewUnstartedServer(nil)), nil, &config.Config{})
	handler.dedup = newFakeDedup()

	event := commentEvent("ig-biz-1", map[string]string{"comment_id": "c-7", "text": "again"})
	handler.ProcessEvent(context.Background(), event)
	handler.ProcessEvent(context.Background(), event)

	if len(store.comments) != 1 {
		t.Errorf("redelivered change must be processed once, got %d stored comments", len(store.comments))
	}
}

func TestRedeliveryAfterFailureReprocessed(t *testing.T) {
	store := newFakeStore()
	store.accounts["ig-biz-1"] = connectedAccount("ig-biz-1", false)
	store.failComments = 1
	handler := NewWebhookHandler(store, testGraphClient(httptest.NewUnstartedServer(nil)), nil, &config.Config{})
	handler.dedup = newFakeDedup()

	event := commentEvent("ig-biz-1", map[string]string{"comment_id": "c-8", "text": "retry me"})
	handler.ProcessEvent(context.Background(), event)
	if len(store.comments) != 0 {
		t.Fatalf("first delivery was injected to fail, got %d stored comments", len(store.comments))
	}

	handler.ProcessEvent(context.Background(), event)
	if len(store.comments) != 1 {
		t.Errorf("failed change must not stay marked as seen; redelivery stored %d comments", len(store.comments))
	}
}

func TestProcessCaptionMention(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ig/ig-biz-1" {
			writeJSON(w, http.StatusOK, map[string]any{
				"mentioned_media": map[string]string{"caption": "shoutout @shopgram", "media_type": "IMAGE"},
			})
			return
		}
		t.Errorf("unexpected request: %s", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	store := newFakeStore()
	store.accounts["ig-biz-1"] = connectedAccount("ig-biz-1", false)
	handler := NewWebhookHandler(store, testGraphClient(srv), nil, &config.Config{})

	raw, _ := json.Marshal(map[string]string{"media_id": "m-77"})
	handler.ProcessEvent(context.Background(), &models.WebhookEvent{
		Object: "instagram",
		Entry: []models.WebhookEntry{{
			ID:      "ig-biz-1",
			Changes: []models.WebhookChange{{Field: "mentions", Value: raw}},
		}},
	})

	if len(store.mentions) != 1 {
		t.Fatalf("expected one mention, got %d", len(store.mentions))
	}
	m := store.mentions[0]
	if m.Type != "caption" || m.MediaID != "m-77" {
		t.Errorf("unexpected mention: %+v", m)
	}
	if m.Caption != "shoutout @shopgram" {
		t.Errorf("caption should be enriched from the platform, got %q", m.Caption)
	}
}

func TestProcessMentionAutoReplies(t *testing.T) {
	var replies int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/ig/ig-biz-1":
			writeJSON(w, http.StatusOK, map[string]any{
				"mentioned_comment": map[string]string{"text": "check out @shopgram"},
			})
		case r.Method == http.MethodPost && r.URL.Path == "/ig/ig-biz-1/mentions":
			r.ParseForm()
			if r.PostForm.Get("message") != "Thanks for the mention!" {
				t.Errorf("unexpected mention reply message %q", r.PostForm.Get("message"))
			}
			if r.PostForm.Get("comment_id") != "c-9" || r.PostForm.Get("media_id") != "m-9" {
				t.Errorf("mention reply must carry the ids, got comment_id=%q media_id=%q",
					r.PostForm.Get("comment_id"), r.PostForm.Get("media_id"))
			}
			atomic.AddInt32(&replies, 1)
			writeJSON(w, http.StatusOK, map[string]string{"id": "reply-2"})
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	store := newFakeStore()
	account := connectedAccount("ig-biz-1", false)
	account.Instagram.MentionResponse = models.ResponseSettings{
		Enabled: true,
		Message: "Thanks for the mention!",
	}
	store.accounts["ig-biz-1"] = account
	handler := NewWebhookHandler(store, testGraphClient(srv), nil, &config.Config{})

	raw, _ := json.Marshal(map[string]string{"comment_id": "c-9", "media_id": "m-9"})
	handler.ProcessEvent(context.Background(), &models.WebhookEvent{
		Object: "instagram",
		Entry: []models.WebhookEntry{{
			ID:      "ig-biz-1",
			Changes: []models.WebhookChange{{Field: "mentions", Value: raw}},
		}},
	})

	if len(store.mentions) != 1 {
		t.Fatalf("expected one stored mention, got %d", len(store.mentions))
	}
	if got := atomic.LoadInt32(&replies); got != 1 {
		t.Errorf("expected exactly one mention reply, got %d", got)
	}
}

func TestProcessStoryInsights(t *testing.T) {
	store := newFakeStore()
	store.accounts["ig-biz-1"] = connectedAccount("ig-biz-1", false)
	handler := NewWebhookHandler(store, testGraphClient(httptest.NewUnstartedServer(nil)), nil, &config.Config{})

	raw, _ := json.Marshal(map[string]any{
		"media_id": "story-5", "reach": 140, "impressions": 200, "taps_forward": 12,
	})
	handler.ProcessEvent(context.Background(), &models.WebhookEvent{
		Object: "instagram",
		Entry: []models.WebhookEntry{{
			ID:      "ig-biz-1",
			Changes: []models.WebhookChange{{Field: "story_insights", Value: raw}},
		}},
	})

	if len(store.insights) != 1 {
		t.Fatalf("expected one story insight, got %d", len(store.insights))
	}
	got := store.insights[0]
	if got.MediaID != "story-5" || got.Metrics.Reach != 140 || got.Metrics.TapsForward != 12 {
		t.Errorf("unexpected insight: %+v", got)
	}
}

func TestProcessMediaDeleteRemovesCachedItem(t *testing.T) {
	store := newFakeStore()
	store.accounts["ig-user-3"] = connectedAccount("ig-user-3", false)
	handler := NewWebhookHandler(store, testGraphClient(httptest.NewUnstartedServer(nil)), nil, &config.Config{})

	raw, _ := json.Marshal(map[string]string{"verb": "delete", "object_id": "m-gone"})
	handler.ProcessEvent(context.Background(), &models.WebhookEvent{
		Object: "user",
		Entry: []models.WebhookEntry{{
			ID:      "ig-user-3",
			Changes: []models.WebhookChange{{Field: "media", Value: raw}},
		}},
	})

	if len(store.removedMedia) != 1 || store.removedMedia[0] != "m-gone" {
		t.Errorf("expected cached media m-gone removed, got %v", store.removedMedia)
	}
}

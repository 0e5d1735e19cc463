package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"social-integration-backend/internal/config"
	"social-integration-backend/internal/instagram"
	"social-integration-backend/internal/logger"
	"social-integration-backend/models"
)

const dedupTTL = 24 * time.Hour

// dedupStore is the slice of the Redis API the dedup window needs.
type dedupStore interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// WebhookHandler turns verified platform notifications into account
// updates. Individual change handlers never fail the delivery: the
// platform retries on non-2xx and a poison change would wedge the
// subscription, so errors are logged and swallowed.
type WebhookHandler struct {
	store  AccountStore
	client *instagram.Client
	dedup  dedupStore
	// fallback is the optional env-configured service credential, used
	// when an account document carries no token of its own.
	fallback instagram.Credentials
}

func NewWebhookHandler(store AccountStore, client *instagram.Client, rdb *redis.Client, cfg *config.Config) *WebhookHandler {
	h := &WebhookHandler{
		store:    store,
		client:   client,
		fallback: instagram.ResolveCredentials(cfg),
	}
	if rdb != nil {
		h.dedup = rdb
	}
	return h
}

// ProcessEvent dispatches every change in the delivery to its handler.
// Unknown objects and fields are ignored.
func (h *WebhookHandler) ProcessEvent(ctx context.Context, event *models.WebhookEvent) {
	for _, entry := range event.Entry {
		for _, change := range entry.Changes {
			h.processChange(ctx, event.Object, entry.ID, change)
		}
	}
}

func (h *WebhookHandler) processChange(ctx context.Context, object, entryID string, change models.WebhookChange) {
	key := dedupKey(object, entryID, change)
	if !h.claim(ctx, key) {
		logger.Debug("skipping redelivered webhook change", "object", object, "field", change.Field)
		return
	}

	var err error
	switch object {
	case "instagram":
		switch change.Field {
		case "comments", "live_comments":
			err = h.handleComment(ctx, entryID, change.Value)
		case "mentions":
			err = h.handleMention(ctx, entryID, change.Value)
		case "story_insights":
			err = h.handleStoryInsights(ctx, entryID, change.Value)
		default:
			logger.Debug("ignoring unhandled instagram webhook field", "field", change.Field)
		}
	case "user":
		switch change.Field {
		case "photos", "media":
			err = h.handleMediaChange(ctx, entryID, change.Value)
		default:
			logger.Debug("ignoring unhandled user webhook field", "field", change.Field)
		}
	default:
		logger.Debug("ignoring unhandled webhook object", "object", object)
	}

	if err != nil {
		// Free the dedup slot so the platform's redelivery gets another
		// attempt instead of being consumed as a duplicate.
		h.release(ctx, key)
		logger.Error("webhook change processing failed",
			"object", object, "field", change.Field, "entry_id", entryID, "error", err)
	}
}

func dedupKey(object, entryID string, change models.WebhookChange) string {
	return fmt.Sprintf("webhook:seen:%s:%s:%s:%x", object, entryID, change.Field, change.Value)
}

// claim marks the change as in flight and reports whether this delivery
// owns it. Redis failures fail open: processing a duplicate beats
// dropping a delivery.
func (h *WebhookHandler) claim(ctx context.Context, key string) bool {
	if h.dedup == nil {
		return true
	}
	set, err := h.dedup.SetNX(ctx, key, 1, dedupTTL).Result()
	if err != nil {
		logger.Warn("webhook dedup check failed", "error", err)
		return true
	}
	return set
}

func (h *WebhookHandler) release(ctx context.Context, key string) {
	if h.dedup == nil {
		return
	}
	if err := h.dedup.Del(ctx, key).Err(); err != nil {
		logger.Warn("webhook dedup release failed", "key", key, "error", err)
	}
}

// accessToken prefers the account's own token and falls back to the
// env-configured service credential.
func (h *WebhookHandler) accessToken(account *models.Account) string {
	if account.Instagram.AccessToken != "" {
		return account.Instagram.AccessToken
	}
	if err := h.fallback.Validate(); err != nil {
		return ""
	}
	return h.fallback.Token
}

func (h *WebhookHandler) handleComment(ctx context.Context, entryID string, raw json.RawMessage) error {
	var value models.CommentChangeValue
	if err := json.Unmarshal(raw, &value); err != nil {
		return fmt.Errorf("failed to decode comment change: %w", err)
	}
	if value.CommentID == "" {
		// Some deliveries put the id at the top level of value.
		var alt struct {
			ID string `json:"id"`
		}
		if json.Unmarshal(raw, &alt) == nil {
			value.CommentID = alt.ID
		}
	}
	if value.CommentID == "" {
		return errors.New("comment change without comment id")
	}

	account, err := h.store.FindByPlatformID(ctx, entryID)
	if err != nil {
		return fmt.Errorf("no account for webhook entry %s: %w", entryID, err)
	}
	token := h.accessToken(account)

	event := models.CommentEvent{
		CommentID:       value.CommentID,
		MediaID:         value.MediaID,
		Text:            value.Text,
		AdID:            value.AdID,
		AdTitle:         value.AdTitle,
		OriginalMediaID: value.OriginalMediaID,
		ReceivedAt:      time.Now(),
	}
	if event.Text == "" && token != "" {
		if comment, cerr := h.client.GetComment(ctx, token, value.CommentID); cerr == nil {
			event.Text = comment.Text
			event.Timestamp = comment.Timestamp
		}
	}
	if err := h.store.AppendComment(ctx, entryID, event); err != nil {
		return err
	}

	h.autoRespond(ctx, account, value.MediaID)
	return nil
}

// autoRespond replies on the commented media when the account has opted
// in. The reply goes to the media's comments edge, not the comment's.
func (h *WebhookHandler) autoRespond(ctx context.Context, account *models.Account, mediaID string) {
	settings := account.Instagram.AutoResponse
	token := h.accessToken(account)
	if !settings.Enabled || settings.Message == "" || token == "" || mediaID == "" {
		return
	}
	if err := h.client.PostComment(ctx, token, mediaID, settings.Message); err != nil {
		logger.Warn("auto-response failed", "media_id", mediaID, "error", err)
	}
}

func (h *WebhookHandler) handleMention(ctx context.Context, entryID string, raw json.RawMessage) error {
	var value models.MentionChangeValue
	if err := json.Unmarshal(raw, &value); err != nil {
		return fmt.Errorf("failed to decode mention change: %w", err)
	}

	account, err := h.store.FindByPlatformID(ctx, entryID)
	if err != nil {
		return fmt.Errorf("no account for webhook entry %s: %w", entryID, err)
	}
	token := h.accessToken(account)

	event := models.MentionEvent{ReceivedAt: time.Now()}
	if value.CommentID != "" {
		event.Type = "comment"
		event.CommentID = value.CommentID
		event.MediaID = value.MediaID
		if token != "" {
			if comment, cerr := h.client.GetMentionedComment(ctx, token, entryID, value.CommentID); cerr == nil {
				event.Text = comment.Text
			}
		}
	} else if value.MediaID != "" {
		event.Type = "caption"
		event.MediaID = value.MediaID
		if token != "" {
			if caption, mediaType, merr := h.client.GetMentionedMedia(ctx, token, entryID, value.MediaID); merr == nil {
				event.Caption = caption
				event.MediaType = mediaType
			}
		}
	} else {
		return errors.New("mention change without comment or media id")
	}

	if err := h.store.AppendMention(ctx, entryID, event); err != nil {
		return err
	}

	h.respondToMention(ctx, account, entryID, event)
	return nil
}

// respondToMention replies to a mention when the account has opted in,
// through the mentions edge of the mentioned account.
func (h *WebhookHandler) respondToMention(ctx context.Context, account *models.Account, igUserID string, event models.MentionEvent) {
	settings := account.Instagram.MentionResponse
	token := h.accessToken(account)
	if !settings.Enabled || settings.Message == "" || token == "" {
		return
	}
	if err := h.client.PostMentionReply(ctx, token, igUserID, event.CommentID, event.MediaID, settings.Message); err != nil {
		logger.Warn("mention response failed", "media_id", event.MediaID, "error", err)
	}
}

func (h *WebhookHandler) handleStoryInsights(ctx context.Context, entryID string, raw json.RawMessage) error {
	var value models.StoryInsightsChangeValue
	if err := json.Unmarshal(raw, &value); err != nil {
		return fmt.Errorf("failed to decode story insights change: %w", err)
	}
	if value.MediaID == "" {
		return errors.New("story insights change without media id")
	}

	event := models.StoryInsightEvent{
		MediaID: value.MediaID,
		Metrics: models.StoryMetrics{
			Exits:       value.Exits,
			Replies:     value.Replies,
			Reach:       value.Reach,
			TapsForward: value.TapsForward,
			TapsBack:    value.TapsBack,
			Impressions: value.Impressions,
		},
		ReceivedAt: time.Now(),
	}
	return h.store.AppendStoryInsight(ctx, entryID, event)
}

// handleMediaChange keeps the cached media list warm for legacy
// user-object subscriptions: adds refetch the post, deletes prune it.
func (h *WebhookHandler) handleMediaChange(ctx context.Context, entryID string, raw json.RawMessage) error {
	var value models.MediaChangeValue
	if err := json.Unmarshal(raw, &value); err != nil {
		return fmt.Errorf("failed to decode media change: %w", err)
	}
	if value.ObjectID == "" {
		return errors.New("media change without object id")
	}

	if value.Verb == "delete" || value.Verb == "remove" {
		return h.store.RemoveMediaItem(ctx, entryID, value.ObjectID)
	}

	account, err := h.store.FindByPlatformID(ctx, entryID)
	if err != nil {
		return fmt.Errorf("no account for webhook entry %s: %w", entryID, err)
	}
	token := h.accessToken(account)
	if token == "" {
		logger.Warn("cannot refetch changed media without a token",
			"entry_id", entryID, "error", instagram.ErrNoCredentials)
		return nil
	}

	media, err := h.client.GetMedia(ctx, token, value.ObjectID)
	if err != nil {
		return fmt.Errorf("failed to fetch changed media: %w", err)
	}

	item := models.MediaItem{
		MediaID:      media.ID,
		MediaType:    media.MediaType,
		MediaURL:     media.MediaURL,
		ThumbnailURL: media.ThumbnailURL,
		Caption:      media.Caption,
		Permalink:    media.Permalink,
		Engagement: models.Engagement{
			Likes:    media.LikeCount,
			Comments: media.CommentsCount,
		},
		SyncedAt: time.Now(),
	}
	if ts, perr := time.Parse("2006-01-02T15:04:05-0700", media.Timestamp); perr == nil {
		item.Timestamp = &ts
	}
	return h.store.UpsertMediaItem(ctx, entryID, item)
}

package models

import "encoding/json"

// WebhookEvent is one inbound platform notification. It is transient:
// side effects are appended onto the owning Account, the event itself is
// never persisted.
type WebhookEvent struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

// WebhookEntry groups the changes delivered for one platform account.
type WebhookEntry struct {
	ID      string          `json:"id"`
	Time    int64           `json:"time"`
	Changes []WebhookChange `json:"changes"`
}

// WebhookChange is one field/value pair inside an entry. Value shapes vary
// per field, so it stays raw until the matching handler decodes it.
type WebhookChange struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

// CommentChangeValue is the value payload of comments and live_comments
// events.
type CommentChangeValue struct {
	CommentID       string `json:"comment_id"`
	MediaID         string `json:"media_id"`
	AdID            string `json:"ad_id"`
	AdTitle         string `json:"ad_title"`
	OriginalMediaID string `json:"original_media_id"`
	Text            string `json:"text"`
}

// MentionChangeValue is the value payload of mentions events. CommentID is
// set for comment mentions, only MediaID for caption mentions.
type MentionChangeValue struct {
	CommentID string `json:"comment_id"`
	MediaID   string `json:"media_id"`
}

// StoryInsightsChangeValue is the value payload of story_insights events.
type StoryInsightsChangeValue struct {
	MediaID     string `json:"media_id"`
	Exits       int    `json:"exits"`
	Replies     int    `json:"replies"`
	Reach       int    `json:"reach"`
	TapsForward int    `json:"taps_forward"`
	TapsBack    int    `json:"taps_back"`
	Impressions int    `json:"impressions"`
}

// MediaChangeValue is the value payload of the legacy user-object photos
// and media events.
type MediaChangeValue struct {
	Verb     string `json:"verb"`
	ObjectID string `json:"object_id"`
}

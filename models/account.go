package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Account is one linked social identity per application user. Exactly one
// Account exists per user per platform; multi-account linking is not
// supported.
type Account struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID  `bson:"user_id" json:"user_id"`
	Instagram InstagramConnection `bson:"instagram" json:"instagram"`
	CreatedAt time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time           `bson:"updated_at" json:"updated_at"`
}

// InstagramConnection holds the connection state and the denormalized
// profile/media cache for a linked Instagram account.
//
// Invariant: AccessToken is present iff IsConnected is true. On disconnect
// the token is cleared but identity fields are retained.
type InstagramConnection struct {
	Username string `bson:"username,omitempty" json:"username,omitempty"`
	// AccessToken is sensitive and never serialized to JSON.
	AccessToken string `bson:"access_token,omitempty" json:"-"`
	// UserID is the platform-assigned identifier: an Instagram user id or
	// an Instagram Business Account id, depending on the exchange path.
	UserID      string     `bson:"user_id,omitempty" json:"instagram_user_id,omitempty"`
	AccountType string     `bson:"account_type,omitempty" json:"account_type,omitempty"`
	TokenType   string     `bson:"token_type,omitempty" json:"-"`
	IsConnected bool       `bson:"is_connected" json:"is_connected"`
	ConnectedAt *time.Time `bson:"connected_at,omitempty" json:"connected_at,omitempty"`
	LastSyncAt  *time.Time `bson:"last_sync_at,omitempty" json:"last_sync_at,omitempty"`
	// TokenObtainedAt tracks implicit expiry (~60 days for long-lived
	// tokens). Re-authentication is user-initiated; there is no refresh
	// scheduler.
	TokenObtainedAt *time.Time `bson:"token_obtained_at,omitempty" json:"-"`

	Profile InstagramProfile `bson:"profile,omitempty" json:"profile,omitempty"`
	Media   []MediaItem      `bson:"media,omitempty" json:"media,omitempty"`

	Comments      []CommentEvent      `bson:"comments,omitempty" json:"comments,omitempty"`
	Mentions      []MentionEvent      `bson:"mentions,omitempty" json:"mentions,omitempty"`
	StoryInsights []StoryInsightEvent `bson:"story_insights,omitempty" json:"story_insights,omitempty"`

	AutoResponse    ResponseSettings `bson:"auto_response,omitempty" json:"auto_response,omitempty"`
	MentionResponse ResponseSettings `bson:"mention_response,omitempty" json:"mention_response,omitempty"`
}

// InstagramProfile is the cached profile snapshot. Each field is optional
// depending on which API variant produced it.
type InstagramProfile struct {
	ID                string    `bson:"id,omitempty" json:"id,omitempty"`
	Username          string    `bson:"username,omitempty" json:"username,omitempty"`
	Name              string    `bson:"name,omitempty" json:"name,omitempty"`
	Biography         string    `bson:"biography,omitempty" json:"biography,omitempty"`
	Website           string    `bson:"website,omitempty" json:"website,omitempty"`
	ProfilePictureURL string    `bson:"profile_picture_url,omitempty" json:"profile_picture_url,omitempty"`
	AccountType       string    `bson:"account_type,omitempty" json:"account_type,omitempty"`
	MediaCount        int       `bson:"media_count" json:"media_count"`
	FollowersCount    int       `bson:"followers_count" json:"followers_count"`
	FollowingCount    int       `bson:"following_count" json:"following_count"`
	// APIType records which API variant produced this snapshot
	// ("business" or "basic"). The connection's last_sync_at carries the
	// refresh time, so the snapshot stays byte-stable between unchanged
	// syncs.
	APIType  string `bson:"api_type,omitempty" json:"api_type,omitempty"`
	PageID   string `bson:"page_id,omitempty" json:"page_id,omitempty"`
	PageName string `bson:"page_name,omitempty" json:"page_name,omitempty"`
}

// MediaItem is one cached post.
type MediaItem struct {
	MediaID      string     `bson:"media_id" json:"media_id"`
	MediaType    string     `bson:"media_type" json:"media_type"`
	MediaURL     string     `bson:"media_url,omitempty" json:"media_url,omitempty"`
	ThumbnailURL string     `bson:"thumbnail_url,omitempty" json:"thumbnail_url,omitempty"`
	Caption      string     `bson:"caption,omitempty" json:"caption,omitempty"`
	Timestamp    *time.Time `bson:"timestamp,omitempty" json:"timestamp,omitempty"`
	Permalink    string     `bson:"permalink,omitempty" json:"permalink,omitempty"`
	Engagement   Engagement `bson:"engagement" json:"engagement"`
	SyncedAt     time.Time  `bson:"synced_at" json:"synced_at"`
}

// Engagement carries per-post metrics. The Basic Display path has no
// insights, so every field stays zero there.
type Engagement struct {
	Likes       int `bson:"likes" json:"likes"`
	Comments    int `bson:"comments" json:"comments"`
	Impressions int `bson:"impressions" json:"impressions"`
	Reach       int `bson:"reach" json:"reach"`
	Engagement  int `bson:"engagement" json:"engagement"`
}

// CommentEvent is one stored webhook comment notification.
type CommentEvent struct {
	CommentID       string    `bson:"comment_id" json:"comment_id"`
	MediaID         string    `bson:"media_id,omitempty" json:"media_id,omitempty"`
	Text            string    `bson:"text,omitempty" json:"text,omitempty"`
	Timestamp       string    `bson:"timestamp,omitempty" json:"timestamp,omitempty"`
	AdID            string    `bson:"ad_id,omitempty" json:"ad_id,omitempty"`
	AdTitle         string    `bson:"ad_title,omitempty" json:"ad_title,omitempty"`
	OriginalMediaID string    `bson:"original_media_id,omitempty" json:"original_media_id,omitempty"`
	ReceivedAt      time.Time `bson:"received_at" json:"received_at"`
}

// MentionEvent is one stored webhook mention, either in a comment or in a
// media caption.
type MentionEvent struct {
	Type       string    `bson:"type" json:"type"` // comment or caption
	CommentID  string    `bson:"comment_id,omitempty" json:"comment_id,omitempty"`
	MediaID    string    `bson:"media_id,omitempty" json:"media_id,omitempty"`
	Text       string    `bson:"text,omitempty" json:"text,omitempty"`
	Caption    string    `bson:"caption,omitempty" json:"caption,omitempty"`
	MediaType  string    `bson:"media_type,omitempty" json:"media_type,omitempty"`
	ReceivedAt time.Time `bson:"received_at" json:"received_at"`
}

// StoryInsightEvent is one stored story-insights webhook delivery.
type StoryInsightEvent struct {
	MediaID    string       `bson:"media_id" json:"media_id"`
	Metrics    StoryMetrics `bson:"metrics" json:"metrics"`
	ReceivedAt time.Time    `bson:"received_at" json:"received_at"`
}

type StoryMetrics struct {
	Exits       int `bson:"exits" json:"exits"`
	Replies     int `bson:"replies" json:"replies"`
	Reach       int `bson:"reach" json:"reach"`
	TapsForward int `bson:"taps_forward" json:"taps_forward"`
	TapsBack    int `bson:"taps_back" json:"taps_back"`
	Impressions int `bson:"impressions" json:"impressions"`
}

// ResponseSettings is the opt-in auto-reply configuration.
type ResponseSettings struct {
	Enabled bool   `bson:"enabled" json:"enabled"`
	Message string `bson:"message,omitempty" json:"message,omitempty"`
}

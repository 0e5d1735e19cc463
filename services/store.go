package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"social-integration-backend/models"
)

// ErrAccountNotFound is returned when no account document exists for a lookup.
var ErrAccountNotFound = errors.New("account not found")

// AccountStore persists Instagram connections per application user.
type AccountStore interface {
	FindByUserID(ctx context.Context, userID primitive.ObjectID) (*models.Account, error)
	FindByPlatformID(ctx context.Context, platformUserID string) (*models.Account, error)
	SaveConnection(ctx context.Context, userID primitive.ObjectID, conn models.InstagramConnection) error
	UpdateSyncData(ctx context.Context, userID primitive.ObjectID, profile models.InstagramProfile, media []models.MediaItem) error
	AppendComment(ctx context.Context, platformUserID string, event models.CommentEvent) error
	AppendMention(ctx context.Context, platformUserID string, event models.MentionEvent) error
	AppendStoryInsight(ctx context.Context, platformUserID string, event models.StoryInsightEvent) error
	UpsertMediaItem(ctx context.Context, platformUserID string, item models.MediaItem) error
	RemoveMediaItem(ctx context.Context, platformUserID string, mediaID string) error
	UpdateAutoResponse(ctx context.Context, userID primitive.ObjectID, comment, mention models.ResponseSettings) error
	Disconnect(ctx context.Context, userID primitive.ObjectID) error
	ListConnected(ctx context.Context) ([]models.Account, error)
}

type MongoAccountStore struct {
	accounts *mongo.Collection
}

func NewMongoAccountStore(db *mongo.Database) *MongoAccountStore {
	return &MongoAccountStore{accounts: db.Collection("accounts")}
}

func (s *MongoAccountStore) FindByUserID(ctx context.Context, userID primitive.ObjectID) (*models.Account, error) {
	var account models.Account
	err := s.accounts.FindOne(ctx, bson.M{"user_id": userID}).Decode(&account)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	return &account, nil
}

// AccessTokenForUser returns the stored token for a connected account.
func (s *MongoAccountStore) AccessTokenForUser(ctx context.Context, userID primitive.ObjectID) (string, error) {
	account, err := s.FindByUserID(ctx, userID)
	if err != nil {
		return "", err
	}
	if !account.Instagram.IsConnected || account.Instagram.AccessToken == "" {
		return "", errors.New("account is not connected")
	}
	return account.Instagram.AccessToken, nil
}

func (s *MongoAccountStore) FindByPlatformID(ctx context.Context, platformUserID string) (*models.Account, error) {
	var account models.Account
	err := s.accounts.FindOne(ctx, bson.M{"instagram.user_id": platformUserID}).Decode(&account)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account by platform id: %w", err)
	}
	return &account, nil
}

// SaveConnection upserts the full connection document after an OAuth
// exchange, preserving accumulated media and events from a previous
// connection of the same user.
func (s *MongoAccountStore) SaveConnection(ctx context.Context, userID primitive.ObjectID, conn models.InstagramConnection) error {
	now := time.Now()
	update := bson.M{
		"$set": bson.M{
			"instagram.username":          conn.Username,
			"instagram.access_token":      conn.AccessToken,
			"instagram.user_id":           conn.UserID,
			"instagram.account_type":      conn.AccountType,
			"instagram.token_type":        conn.TokenType,
			"instagram.is_connected":      true,
			"instagram.connected_at":      conn.ConnectedAt,
			"instagram.token_obtained_at": conn.TokenObtainedAt,
			"instagram.profile":           conn.Profile,
			"updated_at":                  now,
		},
		"$setOnInsert": bson.M{
			"user_id":    userID,
			"created_at": now,
		},
	}
	opts := options.Update().SetUpsert(true)
	if _, err := s.accounts.UpdateOne(ctx, bson.M{"user_id": userID}, update, opts); err != nil {
		return fmt.Errorf("failed to save connection: %w", err)
	}
	return nil
}

// UpdateSyncData replaces the profile and media snapshot without touching
// connection fields or webhook event history.
func (s *MongoAccountStore) UpdateSyncData(ctx context.Context, userID primitive.ObjectID, profile models.InstagramProfile, media []models.MediaItem) error {
	now := time.Now()
	update := bson.M{
		"$set": bson.M{
			"instagram.profile":      profile,
			"instagram.media":        media,
			"instagram.last_sync_at": now,
			"updated_at":             now,
		},
	}
	res, err := s.accounts.UpdateOne(ctx, bson.M{"user_id": userID}, update)
	if err != nil {
		return fmt.Errorf("failed to update sync data: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (s *MongoAccountStore) AppendComment(ctx context.Context, platformUserID string, event models.CommentEvent) error {
	return s.appendEvent(ctx, platformUserID, "instagram.comments", event)
}

func (s *MongoAccountStore) AppendMention(ctx context.Context, platformUserID string, event models.MentionEvent) error {
	return s.appendEvent(ctx, platformUserID, "instagram.mentions", event)
}

func (s *MongoAccountStore) AppendStoryInsight(ctx context.Context, platformUserID string, event models.StoryInsightEvent) error {
	return s.appendEvent(ctx, platformUserID, "instagram.story_insights", event)
}

// maxStoredEvents caps each webhook event array at its newest entries so
// a busy account can never push the document toward Mongo's 16MB limit.
const maxStoredEvents = 500

func appendEventUpdate(field string, event any) bson.M {
	return bson.M{
		"$push": bson.M{field: bson.M{
			"$each":  []any{event},
			"$slice": -maxStoredEvents,
		}},
		"$set": bson.M{"updated_at": time.Now()},
	}
}

func (s *MongoAccountStore) appendEvent(ctx context.Context, platformUserID, field string, event any) error {
	update := appendEventUpdate(field, event)
	res, err := s.accounts.UpdateOne(ctx, bson.M{"instagram.user_id": platformUserID}, update)
	if err != nil {
		return fmt.Errorf("failed to append %s: %w", field, err)
	}
	if res.MatchedCount == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// UpsertMediaItem replaces a media entry in place or prepends it when new.
func (s *MongoAccountStore) UpsertMediaItem(ctx context.Context, platformUserID string, item models.MediaItem) error {
	filter := bson.M{
		"instagram.user_id":        platformUserID,
		"instagram.media.media_id": item.MediaID,
	}
	update := bson.M{
		"$set": bson.M{
			"instagram.media.$": item,
			"updated_at":        time.Now(),
		},
	}
	res, err := s.accounts.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update media item: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	push := bson.M{
		"$push": bson.M{
			"instagram.media": bson.M{
				"$each":     []models.MediaItem{item},
				"$position": 0,
			},
		},
		"$set": bson.M{"updated_at": time.Now()},
	}
	res, err = s.accounts.UpdateOne(ctx, bson.M{"instagram.user_id": platformUserID}, push)
	if err != nil {
		return fmt.Errorf("failed to insert media item: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (s *MongoAccountStore) RemoveMediaItem(ctx context.Context, platformUserID string, mediaID string) error {
	update := bson.M{
		"$pull": bson.M{"instagram.media": bson.M{"media_id": mediaID}},
		"$set":  bson.M{"updated_at": time.Now()},
	}
	res, err := s.accounts.UpdateOne(ctx, bson.M{"instagram.user_id": platformUserID}, update)
	if err != nil {
		return fmt.Errorf("failed to remove media item: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (s *MongoAccountStore) UpdateAutoResponse(ctx context.Context, userID primitive.ObjectID, comment, mention models.ResponseSettings) error {
	update := bson.M{
		"$set": bson.M{
			"instagram.auto_response":    comment,
			"instagram.mention_response": mention,
			"updated_at":                 time.Now(),
		},
	}
	res, err := s.accounts.UpdateOne(ctx, bson.M{"user_id": userID}, update)
	if err != nil {
		return fmt.Errorf("failed to update auto-response settings: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// Disconnect clears the access token and connection flag while retaining
// the account identity and synced history.
func (s *MongoAccountStore) Disconnect(ctx context.Context, userID primitive.ObjectID) error {
	update := bson.M{
		"$set": bson.M{
			"instagram.is_connected": false,
			"instagram.access_token": "",
			"updated_at":             time.Now(),
		},
	}
	res, err := s.accounts.UpdateOne(ctx, bson.M{"user_id": userID}, update)
	if err != nil {
		return fmt.Errorf("failed to disconnect account: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (s *MongoAccountStore) ListConnected(ctx context.Context) ([]models.Account, error) {
	cursor, err := s.accounts.Find(ctx, bson.M{"instagram.is_connected": true})
	if err != nil {
		return nil, fmt.Errorf("failed to list connected accounts: %w", err)
	}
	defer cursor.Close(ctx)

	var accounts []models.Account
	if err := cursor.All(ctx, &accounts); err != nil {
		return nil, fmt.Errorf("failed to decode accounts: %w", err)
	}
	return accounts, nil
}

package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"social-integration-backend/internal/config"
	"social-integration-backend/internal/instagram"
	"social-integration-backend/internal/logger"
	"social-integration-backend/models"
)

// SyncService pulls profile and media data from the platform and caches it
// on the account document. Fetches attempt the Graph API first and fall
// back to the Basic Display API for personal accounts.
type SyncService struct {
	client *instagram.Client
	store  AccountStore
	cfg    *config.Config
}

// SyncResult summarizes one completed sync pass.
type SyncResult struct {
	Profile      *instagram.Profile `json:"profile"`
	MediaCount   int                `json:"media_count"`
	StoriesCount int                `json:"stories_count"`
	HasInsights  bool               `json:"has_insights"`
	APIType      string             `json:"api_type"`
}

func NewSyncService(client *instagram.Client, store AccountStore, cfg *config.Config) *SyncService {
	return &SyncService{client: client, store: store, cfg: cfg}
}

// FetchProfile resolves a normalized profile for the given token. The
// Graph API path is tried first; when the token cannot reach a Business
// Account the Basic Display API is used and the result tagged accordingly.
func (s *SyncService) FetchProfile(ctx context.Context, accessToken string) (*instagram.Profile, error) {
	businessID, pageID, pageName, err := s.client.ResolveBusinessAccount(ctx, accessToken)
	if err == nil {
		profile, perr := s.client.GetBusinessProfile(ctx, accessToken, businessID)
		if perr == nil {
			return profile.Normalize(pageID, pageName), nil
		}
		logger.Warn("business profile fetch failed, trying basic api", "error", perr)
	} else {
		logger.Debug("business account resolution failed, trying basic api", "error", err)
	}

	basic, err := s.client.GetBasicProfile(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("profile fetch failed on both api paths: %w", err)
	}
	return basic.Normalize(), nil
}

// FetchMedia returns recent posts for the profile's API variant. Business
// media carries insight metrics; basic media has zero-valued engagement.
func (s *SyncService) FetchMedia(ctx context.Context, accessToken string, profile *instagram.Profile) ([]models.MediaItem, error) {
	limit := s.cfg.MediaFetchLimit
	var (
		raw []instagram.Media
		err error
	)
	if profile.APIType == instagram.APITypeBusiness {
		raw, err = s.client.ListBusinessMedia(ctx, accessToken, profile.ID, limit)
	} else {
		raw, err = s.client.ListBasicMedia(ctx, accessToken, limit)
	}
	if err != nil {
		return nil, err
	}

	now := time.Now()
	items := make([]models.MediaItem, 0, len(raw))
	for _, m := range raw {
		item := models.MediaItem{
			MediaID:      m.ID,
			MediaType:    m.MediaType,
			MediaURL:     m.MediaURL,
			ThumbnailURL: m.ThumbnailURL,
			Caption:      m.Caption,
			Permalink:    m.Permalink,
			SyncedAt:     now,
		}
		if ts, perr := time.Parse("2006-01-02T15:04:05-0700", m.Timestamp); perr == nil {
			item.Timestamp = &ts
		}
		if profile.APIType == instagram.APITypeBusiness {
			item.Engagement = models.Engagement{
				Likes:       m.LikeCount,
				Comments:    m.CommentsCount,
				Impressions: m.InsightValue("impressions"),
				Reach:       m.InsightValue("reach"),
				Engagement:  m.InsightValue("engagement"),
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// FetchStories lists active stories. Personal accounts have no story API;
// the result is empty rather than an error.
func (s *SyncService) FetchStories(ctx context.Context, accessToken string, profile *instagram.Profile) ([]instagram.Story, error) {
	if profile.APIType != instagram.APITypeBusiness {
		return nil, nil
	}
	return s.client.ListStories(ctx, accessToken, profile.ID)
}

// FetchInsights returns account-level metrics, empty for personal accounts.
func (s *SyncService) FetchInsights(ctx context.Context, accessToken string, profile *instagram.Profile) ([]instagram.InsightMetric, error) {
	if profile.APIType != instagram.APITypeBusiness {
		return nil, nil
	}
	return s.client.GetAccountInsights(ctx, accessToken, profile.ID)
}

// Sync runs a full refresh for one user. Only a profile failure is fatal;
// media, stories and insights degrade to empty results with a log line.
func (s *SyncService) Sync(ctx context.Context, userID primitive.ObjectID, accessToken string) (*SyncResult, error) {
	profile, err := s.FetchProfile(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	media, err := s.FetchMedia(ctx, accessToken, profile)
	if err != nil {
		logger.Warn("media fetch failed during sync", "user_id", userID.Hex(), "error", err)
		media = nil
	}

	stories, err := s.FetchStories(ctx, accessToken, profile)
	if err != nil {
		logger.Warn("stories fetch failed during sync", "user_id", userID.Hex(), "error", err)
		stories = nil
	}

	insights, err := s.FetchInsights(ctx, accessToken, profile)
	if err != nil {
		logger.Warn("insights fetch failed during sync", "user_id", userID.Hex(), "error", err)
		insights = nil
	}

	snapshot := models.InstagramProfile{
		ID:                profile.ID,
		Username:          profile.Username,
		Name:              profile.Name,
		Biography:         profile.Biography,
		Website:           profile.Website,
		ProfilePictureURL: profile.ProfilePictureURL,
		AccountType:       profile.AccountType,
		MediaCount:        profile.MediaCount,
		FollowersCount:    profile.FollowersCount,
		FollowingCount:    profile.FollowingCount,
		APIType:           profile.APIType,
		PageID:            profile.PageID,
		PageName:          profile.PageName,
	}
	if err := s.store.UpdateSyncData(ctx, userID, snapshot, media); err != nil {
		return nil, fmt.Errorf("failed to persist sync data: %w", err)
	}

	return &SyncResult{
		Profile:      profile,
		MediaCount:   len(media),
		StoriesCount: len(stories),
		HasInsights:  len(insights) > 0,
		APIType:      profile.APIType,
	}, nil
}

package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"social-integration-backend/internal/config"
	"social-integration-backend/internal/logger"
)

// SyncScheduler periodically refreshes the cached profile and media of
// every connected account.
type SyncScheduler struct {
	scheduler *gocron.Scheduler
	sync      *SyncService
	store     AccountStore
	interval  time.Duration
}

func NewSyncScheduler(cfg *config.Config, sync *SyncService, store AccountStore) *SyncScheduler {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()

	return &SyncScheduler{
		scheduler: s,
		sync:      sync,
		store:     store,
		interval:  time.Duration(cfg.SyncIntervalMins) * time.Minute,
	}
}

func (s *SyncScheduler) Start() error {
	_, err := s.scheduler.Every(s.interval).Tag("account-sync").Do(s.runOnce)
	if err != nil {
		return err
	}
	s.scheduler.StartAsync()
	logger.Info("account sync scheduler started", "interval", s.interval.String())
	return nil
}

func (s *SyncScheduler) Stop() {
	s.scheduler.Stop()
}

// runOnce syncs each connected account independently; one failing account
// does not block the rest.
func (s *SyncScheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	accounts, err := s.store.ListConnected(ctx)
	if err != nil {
		logger.Error("scheduled sync failed to list accounts", "error", err)
		return
	}

	for _, account := range accounts {
		if account.Instagram.AccessToken == "" {
			continue
		}
		result, err := s.sync.Sync(ctx, account.UserID, account.Instagram.AccessToken)
		if err != nil {
			logger.Warn("scheduled sync failed for account",
				"user_id", account.UserID.Hex(), "error", err)
			continue
		}
		logger.Debug("scheduled sync completed",
			"user_id", account.UserID.Hex(),
			"media_count", result.MediaCount,
			"api_type", result.APIType)
	}
}

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"social-integration-backend/internal/instagram"
	"social-integration-backend/internal/logger"
	"social-integration-backend/models"
)

const TaskPublishVideo = "publish:video"

// VideoPublishPayload identifies an in-flight video container. The access
// token is deliberately absent: the worker re-reads it from the account
// document so tokens never land in Redis.
type VideoPublishPayload struct {
	UserID            string `json:"user_id"`
	BusinessAccountID string `json:"business_account_id"`
	ContainerID       string `json:"container_id"`
}

func NewVideoPublishTask(userID, businessAccountID, containerID string) (*asynq.Task, error) {
	payload, err := json.Marshal(VideoPublishPayload{
		UserID:            userID,
		BusinessAccountID: businessAccountID,
		ContainerID:       containerID,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskPublishVideo,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("critical"),
	), nil
}

// TokenLookup resolves the stored access token for an application user.
type TokenLookup interface {
	AccessTokenForUser(ctx context.Context, userID primitive.ObjectID) (string, error)
}

// VideoPublisher waits for container processing and publishes the result.
type VideoPublisher interface {
	WaitAndPublish(ctx context.Context, accessToken, businessAccountID, containerID string) (*models.PublishResponse, error)
}

type TaskProcessor struct {
	tokens    TokenLookup
	publisher VideoPublisher
}

func NewTaskProcessor(tokens TokenLookup, publisher VideoPublisher) *TaskProcessor {
	return &TaskProcessor{tokens: tokens, publisher: publisher}
}

func (p *TaskProcessor) HandleVideoPublish(ctx context.Context, t *asynq.Task) error {
	var payload VideoPublishPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	userID, err := primitive.ObjectIDFromHex(payload.UserID)
	if err != nil {
		return fmt.Errorf("bad user id %q: %w", payload.UserID, asynq.SkipRetry)
	}

	accessToken, err := p.tokens.AccessTokenForUser(ctx, userID)
	if err != nil {
		// The account may have been disconnected since the enqueue.
		return fmt.Errorf("token lookup failed: %v: %w", err, asynq.SkipRetry)
	}

	logger.Info("publishing video container",
		"user_id", payload.UserID, "container_id", payload.ContainerID)

	result, err := p.publisher.WaitAndPublish(ctx, accessToken, payload.BusinessAccountID, payload.ContainerID)
	if err != nil {
		var timeout *instagram.ProcessingTimeoutError
		if errors.As(err, &timeout) {
			// A retry resumes polling the same container.
			logger.Warn("video still processing, retrying task",
				"container_id", timeout.ContainerID, "last_status", timeout.LastStatus)
			return err
		}
		if instagram.IsKind(err, instagram.KindTokenExpired) {
			return fmt.Errorf("token expired: %v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	logger.Info("video published",
		"user_id", payload.UserID, "container_id", payload.ContainerID, "media_id", result.MediaID)
	return nil
}

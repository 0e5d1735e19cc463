package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"social-integration-backend/internal/instagram"
	"social-integration-backend/models"
)

type fakeTokens struct {
	token string
	err   error
}

func (f *fakeTokens) AccessTokenForUser(ctx context.Context, userID primitive.ObjectID) (string, error) {
	return f.token, f.err
}

type fakePublisher struct {
	gotToken     string
	gotBusiness  string
	gotContainer string
	result       *models.PublishResponse
	err          error
}

func (f *fakePublisher) WaitAndPublish(ctx context.Context, accessToken, businessAccountID, containerID string) (*models.PublishResponse, error) {
	f.gotToken = accessToken
	f.gotBusiness = businessAccountID
	f.gotContainer = containerID
	return f.result, f.err
}

func videoTask(t *testing.T, userID string) *asynq.Task {
	t.Helper()
	task, err := NewVideoPublishTask(userID, "ig-biz-1", "container-7")
	if err != nil {
		t.Fatalf("failed to build task: %v", err)
	}
	return task
}

func TestVideoPublishPayloadOmitsToken(t *testing.T) {
	task := videoTask(t, primitive.NewObjectID().Hex())

	var raw map[string]any
	if err := json.Unmarshal(task.Payload(), &raw); err != nil {
		t.Fatalf("payload is not json: %v", err)
	}
	for key := range raw {
		if key == "access_token" || key == "token" {
			t.Errorf("payload must never carry a token, found key %q", key)
		}
	}
	if raw["container_id"] != "container-7" {
		t.Errorf("expected container id in payload, got %v", raw["container_id"])
	}
}

func TestHandleVideoPublishUsesStoredToken(t *testing.T) {
	userID := primitive.NewObjectID()
	publisher := &fakePublisher{result: &models.PublishResponse{MediaID: "media-1"}}
	processor := NewTaskProcessor(&fakeTokens{token: "stored-token"}, publisher)

	if err := processor.HandleVideoPublish(context.Background(), videoTask(t, userID.Hex())); err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if publisher.gotToken != "stored-token" {
		t.Errorf("publish must use the stored token, got %q", publisher.gotToken)
	}
	if publisher.gotBusiness != "ig-biz-1" || publisher.gotContainer != "container-7" {
		t.Errorf("unexpected publish args: %q %q", publisher.gotBusiness, publisher.gotContainer)
	}
}

func TestHandleVideoPublishSkipsRetryForDisconnectedAccount(t *testing.T) {
	processor := NewTaskProcessor(
		&fakeTokens{err: errors.New("account is not connected")},
		&fakePublisher{},
	)

	err := processor.HandleVideoPublish(context.Background(), videoTask(t, primitive.NewObjectID().Hex()))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("missing token must not be retried, got %v", err)
	}
}

func TestHandleVideoPublishRetriesOnProcessingTimeout(t *testing.T) {
	publisher := &fakePublisher{err: &instagram.ProcessingTimeoutError{
		ContainerID: "container-7", LastStatus: instagram.StatusInProgress, Attempts: 30,
	}}
	processor := NewTaskProcessor(&fakeTokens{token: "stored-token"}, publisher)

	err := processor.HandleVideoPublish(context.Background(), videoTask(t, primitive.NewObjectID().Hex()))
	if err == nil {
		t.Fatal("timeout must surface so asynq retries the task")
	}
	if errors.Is(err, asynq.SkipRetry) {
		t.Fatal("timeout must remain retryable")
	}
}

func TestHandleVideoPublishRejectsBadPayload(t *testing.T) {
	processor := NewTaskProcessor(&fakeTokens{}, &fakePublisher{})
	task := asynq.NewTask(TaskPublishVideo, []byte("{broken"))

	err := processor.HandleVideoPublish(context.Background(), task)
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("malformed payload must not be retried, got %v", err)
	}
}

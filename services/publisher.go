package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"social-integration-backend/internal/instagram"
	"social-integration-backend/internal/logger"
	"social-integration-backend/models"
)

const (
	defaultPollInterval    = 10 * time.Second
	defaultMaxPollAttempts = 30
)

// Publisher creates and publishes media containers through the two-phase
// container flow. Photos, carousels and stories publish synchronously;
// videos require server-side processing and are polled to completion.
type Publisher struct {
	client *instagram.Client

	// pollInterval and maxPollAttempts bound the video processing wait.
	pollInterval    time.Duration
	maxPollAttempts int
}

func NewPublisher(client *instagram.Client) *Publisher {
	return &Publisher{
		client:          client,
		pollInterval:    defaultPollInterval,
		maxPollAttempts: defaultMaxPollAttempts,
	}
}

func (p *Publisher) resolveAccount(ctx context.Context, accessToken string) (string, error) {
	businessID, _, _, err := p.client.ResolveBusinessAccount(ctx, accessToken)
	if err != nil {
		return "", fmt.Errorf("publishing requires a business account: %w", err)
	}
	return businessID, nil
}

// UploadPhoto publishes a single image post.
func (p *Publisher) UploadPhoto(ctx context.Context, accessToken string, req models.PublishPhotoRequest) (*models.PublishResponse, error) {
	businessID, err := p.resolveAccount(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("image_url", req.ImageURL)
	if req.Caption != "" {
		params.Set("caption", req.Caption)
	}
	containerID, err := p.client.CreateContainer(ctx, accessToken, businessID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create photo container: %w", err)
	}

	mediaID, err := p.client.PublishContainer(ctx, accessToken, businessID, containerID)
	if err != nil {
		return nil, fmt.Errorf("failed to publish photo: %w", err)
	}
	return &models.PublishResponse{MediaID: mediaID, ContainerID: containerID}, nil
}

// UploadCarousel publishes a multi-image post. The platform accepts
// between 2 and 10 children; the bounds are checked before any network
// call is made.
func (p *Publisher) UploadCarousel(ctx context.Context, accessToken string, req models.PublishCarouselRequest) (*models.PublishResponse, error) {
	if len(req.ImageURLs) < 2 || len(req.ImageURLs) > 10 {
		return nil, fmt.Errorf("carousel requires between 2 and 10 images, got %d", len(req.ImageURLs))
	}

	businessID, err := p.resolveAccount(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	children := make([]string, 0, len(req.ImageURLs))
	for i, imageURL := range req.ImageURLs {
		params := url.Values{}
		params.Set("image_url", imageURL)
		params.Set("is_carousel_item", "true")
		childID, err := p.client.CreateContainer(ctx, accessToken, businessID, params)
		if err != nil {
			return nil, fmt.Errorf("failed to create carousel item %d: %w", i+1, err)
		}
		children = append(children, childID)
	}

	params := url.Values{}
	params.Set("media_type", "CAROUSEL")
	params.Set("children", strings.Join(children, ","))
	if req.Caption != "" {
		params.Set("caption", req.Caption)
	}
	containerID, err := p.client.CreateContainer(ctx, accessToken, businessID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create carousel container: %w", err)
	}

	mediaID, err := p.client.PublishContainer(ctx, accessToken, businessID, containerID)
	if err != nil {
		return nil, fmt.Errorf("failed to publish carousel: %w", err)
	}
	return &models.PublishResponse{MediaID: mediaID, ContainerID: containerID}, nil
}

// CreateVideoContainer starts a video upload and returns the container id
// without waiting for processing. The caller is expected to poll via
// WaitAndPublish, typically from a background task.
func (p *Publisher) CreateVideoContainer(ctx context.Context, accessToken string, req models.PublishVideoRequest) (businessID, containerID string, err error) {
	businessID, err = p.resolveAccount(ctx, accessToken)
	if err != nil {
		return "", "", err
	}

	params := url.Values{}
	params.Set("media_type", "VIDEO")
	params.Set("video_url", req.VideoURL)
	if req.Caption != "" {
		params.Set("caption", req.Caption)
	}
	if req.ThumbnailURL != "" {
		params.Set("thumb_offset", "0")
		params.Set("cover_url", req.ThumbnailURL)
	}
	containerID, err = p.client.CreateContainer(ctx, accessToken, businessID, params)
	if err != nil {
		return "", "", fmt.Errorf("failed to create video container: %w", err)
	}
	return businessID, containerID, nil
}

// WaitAndPublish polls the container until processing finishes, then
// publishes it. A container still in progress after the attempt budget
// yields a ProcessingTimeoutError carrying the last observed status.
func (p *Publisher) WaitAndPublish(ctx context.Context, accessToken, businessID, containerID string) (*models.PublishResponse, error) {
	lastStatus := ""
	for attempt := 1; attempt <= p.maxPollAttempts; attempt++ {
		status, err := p.client.GetContainerStatus(ctx, accessToken, containerID)
		if err != nil {
			return nil, fmt.Errorf("failed to check container status: %w", err)
		}
		lastStatus = status.StatusCode

		switch status.StatusCode {
		case instagram.StatusFinished:
			mediaID, err := p.client.PublishContainer(ctx, accessToken, businessID, containerID)
			if err != nil {
				return nil, fmt.Errorf("failed to publish video: %w", err)
			}
			return &models.PublishResponse{MediaID: mediaID, ContainerID: containerID}, nil
		case instagram.StatusError:
			return nil, fmt.Errorf("video processing failed: %s", status.Status)
		}

		logger.Debug("video container still processing",
			"container_id", containerID, "status", status.StatusCode, "attempt", attempt)

		if attempt == p.maxPollAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.pollInterval):
		}
	}

	return nil, &instagram.ProcessingTimeoutError{
		ContainerID: containerID,
		LastStatus:  lastStatus,
		Attempts:    p.maxPollAttempts,
	}
}

// UploadVideo runs the full create-poll-publish flow synchronously.
func (p *Publisher) UploadVideo(ctx context.Context, accessToken string, req models.PublishVideoRequest) (*models.PublishResponse, error) {
	businessID, containerID, err := p.CreateVideoContainer(ctx, accessToken, req)
	if err != nil {
		return nil, err
	}
	return p.WaitAndPublish(ctx, accessToken, businessID, containerID)
}

// UploadStory publishes an image or video story.
func (p *Publisher) UploadStory(ctx context.Context, accessToken string, req models.PublishStoryRequest) (*models.PublishResponse, error) {
	businessID, err := p.resolveAccount(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("media_type", "STORIES")
	if req.MediaType == "VIDEO" {
		params.Set("video_url", req.MediaURL)
	} else {
		params.Set("image_url", req.MediaURL)
	}
	containerID, err := p.client.CreateContainer(ctx, accessToken, businessID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create story container: %w", err)
	}

	if req.MediaType == "VIDEO" {
		return p.WaitAndPublish(ctx, accessToken, businessID, containerID)
	}

	mediaID, err := p.client.PublishContainer(ctx, accessToken, businessID, containerID)
	if err != nil {
		return nil, fmt.Errorf("failed to publish story: %w", err)
	}
	return &models.PublishResponse{MediaID: mediaID, ContainerID: containerID}, nil
}

// GetStatus reports the processing state of a container.
func (p *Publisher) GetStatus(ctx context.Context, accessToken, containerID string) (*models.PublishStatusResponse, error) {
	status, err := p.client.GetContainerStatus(ctx, accessToken, containerID)
	if err != nil {
		return nil, err
	}
	return &models.PublishStatusResponse{
		ContainerID: status.ID,
		StatusCode:  status.StatusCode,
	}, nil
}

package models

// PublishPhotoRequest publishes a single photo post.
type PublishPhotoRequest struct {
	ImageURL string `json:"image_url" binding:"required,url"`
	Caption  string `json:"caption"`
}

// PublishCarouselRequest publishes a 2-10 image carousel.
type PublishCarouselRequest struct {
	ImageURLs []string `json:"image_urls" binding:"required"`
	Caption   string   `json:"caption"`
}

// PublishVideoRequest publishes a video post. Video processing is
// asynchronous on the platform side.
type PublishVideoRequest struct {
	VideoURL     string `json:"video_url" binding:"required,url"`
	Caption      string `json:"caption"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// PublishStoryRequest publishes a story, parameterized by media type.
type PublishStoryRequest struct {
	MediaURL  string `json:"media_url" binding:"required,url"`
	MediaType string `json:"media_type" binding:"required,oneof=IMAGE VIDEO"`
}

// PublishResponse is the success payload of a completed publish.
type PublishResponse struct {
	MediaID     string `json:"media_id"`
	ContainerID string `json:"container_id,omitempty"`
}

// PublishStatusResponse reports the processing state of a container.
type PublishStatusResponse struct {
	ContainerID string `json:"container_id"`
	StatusCode  string `json:"status_code"`
}

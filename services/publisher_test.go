package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"social-integration-backend/internal/config"
	"social-integration-backend/internal/instagram"
	"social-integration-backend/models"
)

func testGraphClient(srv *httptest.Server) *instagram.Client {
	c := instagram.NewClient(&config.Config{
		GraphAPIVersion: "v18.0",
		GraphRateLimit:  1000000,
	})
	c.FacebookGraphURL = srv.URL
	c.InstagramGraphURL = srv.URL + "/ig"
	return c
}

func fastPublisher(client *instagram.Client) *Publisher {
	p := NewPublisher(client)
	p.pollInterval = time.Millisecond
	return p
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func pagesResponse() map[string]any {
	return map[string]any{
		"data": []map[string]any{
			{"id": "page-1", "name": "Shop Page",
				"instagram_business_account": map[string]string{"id": "ig-biz-1"}},
		},
	}
}

func TestUploadCarouselBounds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	publisher := fastPublisher(testGraphClient(srv))

	cases := []int{0, 1, 11}
	for _, n := range cases {
		urls := make([]string, n)
		for i := range urls {
			urls[i] = "https://cdn.example.com/img.jpg"
		}
		_, err := publisher.UploadCarousel(context.Background(), "token",
			models.PublishCarouselRequest{ImageURLs: urls})
		if err == nil {
			t.Errorf("carousel with %d images must be rejected", n)
		}
	}
	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Errorf("bounds must be checked before any network call, saw %d calls", got)
	}
}

func TestUploadCarouselCreatesChildrenThenParent(t *testing.T) {
	var childCount int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v18.0/me/accounts":
			writeJSON(w, http.StatusOK, pagesResponse())
		case "/v18.0/ig-biz-1/media":
			r.ParseForm()
			if r.PostForm.Get("is_carousel_item") == "true" {
				n := atomic.AddInt32(&childCount, 1)
				writeJSON(w, http.StatusOK, map[string]string{"id": fmt.Sprintf("child-%d", n)})
				return
			}
			if r.PostForm.Get("media_type") != "CAROUSEL" {
				t.Errorf("parent container must be CAROUSEL, got %q", r.PostForm.Get("media_type"))
			}
			if r.PostForm.Get("children") == "" {
				t.Error("parent container must reference children")
			}
			writeJSON(w, http.StatusOK, map[string]string{"id": "parent-1"})
		case "/v18.0/ig-biz-1/media_publish":
			r.ParseForm()
			if r.PostForm.Get("creation_id") != "parent-1" {
				t.Errorf("must publish the parent container, got %q", r.PostForm.Get("creation_id"))
			}
			writeJSON(w, http.StatusOK, map[string]string{"id": "media-99"})
		default:
			t.Errorf("unexpected request: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	publisher := fastPublisher(testGraphClient(srv))
	result, err := publisher.UploadCarousel(context.Background(), "token", models.PublishCarouselRequest{
		ImageURLs: []string{"https://cdn.example.com/1", "https://cdn.example.com/2", "https://cdn.example.com/3"},
		Caption:   "three up",
	})
	if err != nil {
		t.Fatalf("carousel publish failed: %v", err)
	}
	if result.MediaID != "media-99" {
		t.Errorf("expected published media id, got %q", result.MediaID)
	}
	if got := atomic.LoadInt32(&childCount); got != 3 {
		t.Errorf("expected 3 child containers, got %d", got)
	}
}

func TestUploadVideoPollsUntilFinished(t *testing.T) {
	var statusCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v18.0/me/accounts":
			writeJSON(w, http.StatusOK, pagesResponse())
		case "/v18.0/ig-biz-1/media":
			writeJSON(w, http.StatusOK, map[string]string{"id": "container-7"})
		case "/v18.0/container-7":
			n := atomic.AddInt32(&statusCalls, 1)
			code := instagram.StatusInProgress
			if n >= 30 {
				code = instagram.StatusFinished
			}
			writeJSON(w, http.StatusOK, map[string]string{"id": "container-7", "status_code": code})
		case "/v18.0/ig-biz-1/media_publish":
			writeJSON(w, http.StatusOK, map[string]string{"id": "media-vid"})
		default:
			t.Errorf("unexpected request: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	publisher := fastPublisher(testGraphClient(srv))
	result, err := publisher.UploadVideo(context.Background(), "token", models.PublishVideoRequest{
		VideoURL: "https://cdn.example.com/clip.mp4",
	})
	if err != nil {
		t.Fatalf("video publish failed: %v", err)
	}
	if result.MediaID != "media-vid" || result.ContainerID != "container-7" {
		t.Errorf("unexpected publish result: %+v", result)
	}
	if got := atomic.LoadInt32(&statusCalls); got != 30 {
		t.Errorf("expected to finish on the 30th poll, saw %d", got)
	}
}

func TestUploadVideoTimesOutAfterAttemptBudget(t *testing.T) {
	var statusCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v18.0/me/accounts":
			writeJSON(w, http.StatusOK, pagesResponse())
		case "/v18.0/ig-biz-1/media":
			writeJSON(w, http.StatusOK, map[string]string{"id": "container-8"})
		case "/v18.0/container-8":
			atomic.AddInt32(&statusCalls, 1)
			writeJSON(w, http.StatusOK, map[string]string{
				"id": "container-8", "status_code": instagram.StatusInProgress,
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	publisher := fastPublisher(testGraphClient(srv))
	_, err := publisher.UploadVideo(context.Background(), "token", models.PublishVideoRequest{
		VideoURL: "https://cdn.example.com/clip.mp4",
	})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	var timeout *instagram.ProcessingTimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("expected ProcessingTimeoutError, got %v", err)
	}
	if timeout.ContainerID != "container-8" {
		t.Errorf("timeout must carry the container id, got %q", timeout.ContainerID)
	}
	if timeout.LastStatus != instagram.StatusInProgress {
		t.Errorf("timeout must report the last observed status, got %q", timeout.LastStatus)
	}
	if got := atomic.LoadInt32(&statusCalls); got != 30 {
		t.Errorf("expected exactly 30 status polls, saw %d", got)
	}
}

func TestUploadVideoStopsOnProcessingError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v18.0/me/accounts":
			writeJSON(w, http.StatusOK, pagesResponse())
		case "/v18.0/ig-biz-1/media":
			writeJSON(w, http.StatusOK, map[string]string{"id": "container-9"})
		case "/v18.0/container-9":
			writeJSON(w, http.StatusOK, map[string]string{
				"id": "container-9", "status_code": instagram.StatusError,
				"status": "Error: unsupported codec",
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	publisher := fastPublisher(testGraphClient(srv))
	_, err := publisher.UploadVideo(context.Background(), "token", models.PublishVideoRequest{
		VideoURL: "https://cdn.example.com/clip.mp4",
	})
	if err == nil {
		t.Fatal("expected error for failed processing")
	}
	var timeout *instagram.ProcessingTimeoutError
	if errors.As(err, &timeout) {
		t.Fatal("processing failure must not be reported as a timeout")
	}
}

func TestUploadPhotoPublishesContainer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v18.0/me/accounts":
			writeJSON(w, http.StatusOK, pagesResponse())
		case "/v18.0/ig-biz-1/media":
			r.ParseForm()
			if r.PostForm.Get("image_url") == "" {
				t.Error("photo container must carry image_url")
			}
			writeJSON(w, http.StatusOK, map[string]string{"id": "container-p"})
		case "/v18.0/ig-biz-1/media_publish":
			writeJSON(w, http.StatusOK, map[string]string{"id": "media-p"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	publisher := fastPublisher(testGraphClient(srv))
	result, err := publisher.UploadPhoto(context.Background(), "token", models.PublishPhotoRequest{
		ImageURL: "https://cdn.example.com/pic.jpg",
		Caption:  "hello",
	})
	if err != nil {
		t.Fatalf("photo publish failed: %v", err)
	}
	if result.MediaID != "media-p" {
		t.Errorf("expected media id, got %q", result.MediaID)
	}
}

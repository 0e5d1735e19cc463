package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"social-integration-backend/internal/logger"
	"social-integration-backend/internal/queue"
	"social-integration-backend/middleware"
	"social-integration-backend/models"
	"social-integration-backend/services"
	"social-integration-backend/utils"
)

func SetupPublishRoutes(
	router *gin.Engine,
	store services.AccountStore,
	publisher *services.Publisher,
	asynqClient *asynq.Client,
	authMiddleware *middleware.AuthMiddleware,
) {
	api := router.Group("/api/publish", authMiddleware.RequireAuth())

	api.POST("/photo", func(c *gin.Context) {
		var req models.PublishPhotoRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		account, err := requireConnected(c, store)
		if err != nil {
			return
		}
		result, err := publisher.UploadPhoto(c.Request.Context(), account.Instagram.AccessToken, req)
		if err != nil {
			utils.RespondWithPlatformError(c, err)
			return
		}
		logger.Info("photo published", "user_id", account.UserID.Hex(), "media_id", result.MediaID)
		c.JSON(http.StatusCreated, result)
	})

	api.POST("/carousel", func(c *gin.Context) {
		var req models.PublishCarouselRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}
		if len(req.ImageURLs) < 2 || len(req.ImageURLs) > 10 {
			utils.RespondWithBadRequest(c, "A carousel requires between 2 and 10 images",
				gin.H{"count": len(req.ImageURLs)})
			return
		}

		account, err := requireConnected(c, store)
		if err != nil {
			return
		}
		result, err := publisher.UploadCarousel(c.Request.Context(), account.Instagram.AccessToken, req)
		if err != nil {
			utils.RespondWithPlatformError(c, err)
			return
		}
		logger.Info("carousel published",
			"user_id", account.UserID.Hex(), "media_id", result.MediaID, "items", len(req.ImageURLs))
		c.JSON(http.StatusCreated, result)
	})

	// Video publishing is asynchronous: the container is created here, the
	// processing wait and the final publish happen on the worker.
	api.POST("/video", func(c *gin.Context) {
		var req models.PublishVideoRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		account, err := requireConnected(c, store)
		if err != nil {
			return
		}
		businessID, containerID, err := publisher.CreateVideoContainer(c.Request.Context(), account.Instagram.AccessToken, req)
		if err != nil {
			utils.RespondWithPlatformError(c, err)
			return
		}

		task, err := queue.NewVideoPublishTask(account.UserID.Hex(), businessID, containerID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to schedule video publish", nil)
			return
		}
		if _, err := asynqClient.Enqueue(task); err != nil {
			utils.RespondWithInternalError(c, "Failed to schedule video publish", gin.H{"error": err.Error()})
			return
		}

		logger.Info("video publish scheduled",
			"user_id", account.UserID.Hex(), "container_id", containerID)
		c.JSON(http.StatusAccepted, gin.H{
			"container_id": containerID,
			"status":       "processing",
		})
	})

	api.POST("/story", func(c *gin.Context) {
		var req models.PublishStoryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		account, err := requireConnected(c, store)
		if err != nil {
			return
		}
		result, err := publisher.UploadStory(c.Request.Context(), account.Instagram.AccessToken, req)
		if err != nil {
			utils.RespondWithPlatformError(c, err)
			return
		}
		logger.Info("story published", "user_id", account.UserID.Hex(), "media_id", result.MediaID)
		c.JSON(http.StatusCreated, result)
	})

	api.GET("/status/:containerId", func(c *gin.Context) {
		account, err := requireConnected(c, store)
		if err != nil {
			return
		}
		status, err := publisher.GetStatus(c.Request.Context(), account.Instagram.AccessToken, c.Param("containerId"))
		if err != nil {
			utils.RespondWithPlatformError(c, err)
			return
		}
		c.JSON(http.StatusOK, status)
	})
}

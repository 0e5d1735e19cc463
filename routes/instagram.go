package routes

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"social-integration-backend/internal/config"
	"social-integration-backend/internal/instagram"
	"social-integration-backend/internal/logger"
	"social-integration-backend/middleware"
	"social-integration-backend/models"
	"social-integration-backend/services"
	"social-integration-backend/utils"
)

const oauthStateTTL = 10 * time.Minute

// callbackPage posts the exchange outcome back to the window that opened
// the OAuth popup, then closes it.
const callbackPage = `<!DOCTYPE html>
<html>
<head><title>Instagram Connection</title></head>
<body>
<script>
  if (window.opener) {
    window.opener.postMessage({{.Payload}}, {{.Origin}});
  }
  window.close();
</script>
<p>{{.Text}} You can close this window.</p>
</body>
</html>`

func SetupInstagramRoutes(
	router *gin.Engine,
	cfg *config.Config,
	store services.AccountStore,
	engine *instagram.ExchangeEngine,
	syncService *services.SyncService,
	rdb *redis.Client,
	authMiddleware *middleware.AuthMiddleware,
) {
	tmpl := mustCallbackTemplate()

	// OAuth start: authenticated, binds the state nonce to the user so the
	// callback can attribute the exchange without a session.
	router.GET("/auth/instagram", authMiddleware.RequireAuth(), func(c *gin.Context) {
		variant := instagram.VariantGraph
		if c.Query("variant") == "basic" {
			variant = instagram.VariantBasic
		}

		authURL, state, err := engine.AuthorizationURL(variant)
		if err != nil {
			utils.RespondWithError(c, http.StatusServiceUnavailable, "oauth_not_configured",
				"Instagram OAuth is not configured on this server", gin.H{"error": err.Error()})
			return
		}

		userID := middleware.GetUserID(c)
		if err := rdb.Set(context.Background(), "oauth:state:"+state, userID, oauthStateTTL).Err(); err != nil {
			utils.RespondWithInternalError(c, "Failed to initiate OAuth flow", nil)
			return
		}

		c.JSON(http.StatusOK, gin.H{"auth_url": authURL, "state": state})
	})

	// OAuth callback: hit by the platform redirect, so authentication comes
	// from the state nonce rather than a bearer token.
	router.GET("/auth/instagram/callback", func(c *gin.Context) {
		if errParam := c.Query("error"); errParam != "" {
			logger.Warn("oauth callback returned error",
				"error", errParam, "reason", c.Query("error_reason"))
			renderCallback(c, tmpl, cfg.FrontendURL, gin.H{
				"type":    "INSTAGRAM_AUTH_ERROR",
				"code":    instagram.AuthAccessDenied,
				"message": "Instagram authorization was denied",
			}, "Connection failed.")
			return
		}

		state := c.Query("state")
		userIDHex, err := rdb.GetDel(context.Background(), "oauth:state:"+state).Result()
		if err != nil {
			renderCallback(c, tmpl, cfg.FrontendURL, gin.H{
				"type":    "INSTAGRAM_AUTH_ERROR",
				"code":    "STATE_MISMATCH",
				"message": "OAuth state is invalid or expired",
			}, "Connection failed.")
			return
		}
		userID, err := primitive.ObjectIDFromHex(userIDHex)
		if err != nil {
			renderCallback(c, tmpl, cfg.FrontendURL, gin.H{
				"type":    "INSTAGRAM_AUTH_ERROR",
				"code":    "STATE_MISMATCH",
				"message": "OAuth state is invalid or expired",
			}, "Connection failed.")
			return
		}

		variant := instagram.VariantGraph
		if c.Query("variant") == "basic" {
			variant = instagram.VariantBasic
		}

		result, err := engine.Exchange(c.Request.Context(), c.Query("code"), variant)
		if err != nil {
			var authErr *instagram.AuthError
			code := "EXCHANGE_FAILED"
			if errors.As(err, &authErr) {
				code = authErr.Code
			}
			logger.Error("token exchange failed", "user_id", userIDHex, "error", err)
			renderCallback(c, tmpl, cfg.FrontendURL, gin.H{
				"type":    "INSTAGRAM_AUTH_ERROR",
				"code":    code,
				"message": "Failed to connect Instagram account",
			}, "Connection failed.")
			return
		}

		now := time.Now()
		conn := models.InstagramConnection{
			AccessToken:     result.AccessToken,
			UserID:          result.AccountID,
			AccountType:     result.AccountType,
			TokenType:       tokenType(result.LongLived),
			IsConnected:     true,
			ConnectedAt:     &now,
			TokenObtainedAt: &now,
		}
		if result.Profile != nil {
			conn.Username = result.Profile.Username
			conn.Profile = models.InstagramProfile{
				ID:                result.Profile.ID,
				Username:          result.Profile.Username,
				Name:              result.Profile.Name,
				Biography:         result.Profile.Biography,
				Website:           result.Profile.Website,
				ProfilePictureURL: result.Profile.ProfilePictureURL,
				AccountType:       result.Profile.AccountType,
				MediaCount:        result.Profile.MediaCount,
				FollowersCount:    result.Profile.FollowersCount,
				FollowingCount:    result.Profile.FollowingCount,
				APIType:           result.Profile.APIType,
				PageID:            result.Profile.PageID,
				PageName:          result.Profile.PageName,
			}
		}
		if err := store.SaveConnection(c.Request.Context(), userID, conn); err != nil {
			logger.Error("failed to persist connection", "user_id", userIDHex, "error", err)
			renderCallback(c, tmpl, cfg.FrontendURL, gin.H{
				"type":    "INSTAGRAM_AUTH_ERROR",
				"code":    "PERSISTENCE_FAILED",
				"message": "Failed to save the connected account",
			}, "Connection failed.")
			return
		}

		logger.Info("instagram account connected",
			"user_id", userIDHex,
			"account_id", result.AccountID,
			"account_type", result.AccountType,
			"token", logger.Token(result.AccessToken))

		payload := gin.H{
			"type":         "INSTAGRAM_AUTH_SUCCESS",
			"account_id":   result.AccountID,
			"account_type": result.AccountType,
		}
		if result.Warning != "" {
			payload["warning"] = result.Warning
		}
		renderCallback(c, tmpl, cfg.FrontendURL, payload, "Instagram connected.")
	})

	api := router.Group("/api/instagram", authMiddleware.RequireAuth())

	api.GET("/status", func(c *gin.Context) {
		account, err := findAccount(c, store)
		if err != nil {
			c.JSON(http.StatusOK, gin.H{"is_connected": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"is_connected": account.Instagram.IsConnected,
			"username":     account.Instagram.Username,
			"account_type": account.Instagram.AccountType,
			"connected_at": account.Instagram.ConnectedAt,
			"last_sync_at": account.Instagram.LastSyncAt,
		})
	})

	api.GET("/profile", func(c *gin.Context) {
		account, err := requireConnected(c, store)
		if err != nil {
			return
		}
		c.JSON(http.StatusOK, gin.H{"profile": account.Instagram.Profile})
	})

	api.GET("/posts", func(c *gin.Context) {
		account, err := requireConnected(c, store)
		if err != nil {
			return
		}
		media := account.Instagram.Media
		if media == nil {
			media = []models.MediaItem{}
		}
		if limit, err := strconv.Atoi(c.Query("limit")); err == nil && limit > 0 && limit < len(media) {
			media = media[:limit]
		}
		c.JSON(http.StatusOK, gin.H{"posts": media, "count": len(media)})
	})

	api.GET("/events", func(c *gin.Context) {
		account, err := requireConnected(c, store)
		if err != nil {
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"comments":       account.Instagram.Comments,
			"mentions":       account.Instagram.Mentions,
			"story_insights": account.Instagram.StoryInsights,
		})
	})

	api.POST("/sync", func(c *gin.Context) {
		account, err := requireConnected(c, store)
		if err != nil {
			return
		}
		result, err := syncService.Sync(c.Request.Context(), account.UserID, account.Instagram.AccessToken)
		if err != nil {
			utils.RespondWithPlatformError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"profile":       result.Profile,
			"media_count":   result.MediaCount,
			"stories_count": result.StoriesCount,
			"has_insights":  result.HasInsights,
			"api_type":      result.APIType,
		})
	})

	api.PUT("/auto-response", func(c *gin.Context) {
		var req struct {
			Enabled        bool   `json:"enabled"`
			Message        string `json:"message" binding:"max=500"`
			MentionEnabled bool   `json:"mention_enabled"`
			MentionMessage string `json:"mention_message" binding:"max=500"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}
		if req.Enabled && req.Message == "" {
			utils.RespondWithBadRequest(c, "A response message is required when auto-response is enabled", nil)
			return
		}
		if req.MentionEnabled && req.MentionMessage == "" {
			utils.RespondWithBadRequest(c, "A response message is required when mention response is enabled", nil)
			return
		}

		account, err := requireConnected(c, store)
		if err != nil {
			return
		}
		comment := models.ResponseSettings{Enabled: req.Enabled, Message: req.Message}
		mention := models.ResponseSettings{Enabled: req.MentionEnabled, Message: req.MentionMessage}
		if err := store.UpdateAutoResponse(c.Request.Context(), account.UserID, comment, mention); err != nil {
			utils.RespondWithInternalError(c, "Failed to update auto-response settings", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"auto_response": comment, "mention_response": mention})
	})

	api.POST("/disconnect", func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		if err := store.Disconnect(c.Request.Context(), userID); err != nil {
			if errors.Is(err, services.ErrAccountNotFound) {
				utils.RespondWithNotFound(c, "No Instagram account is linked")
				return
			}
			utils.RespondWithInternalError(c, "Failed to disconnect account", nil)
			return
		}
		logger.Info("instagram account disconnected", "user_id", userID.Hex())
		c.JSON(http.StatusOK, gin.H{"is_connected": false})
	})
}

func tokenType(longLived bool) string {
	if longLived {
		return "long_lived"
	}
	return "short_lived"
}

func currentUserID(c *gin.Context) (primitive.ObjectID, bool) {
	userID, err := primitive.ObjectIDFromHex(middleware.GetUserID(c))
	if err != nil {
		utils.RespondWithUnauthorized(c, "Invalid user identity")
		return primitive.ObjectID{}, false
	}
	return userID, true
}

func findAccount(c *gin.Context, store services.AccountStore) (*models.Account, error) {
	userID, ok := currentUserID(c)
	if !ok {
		return nil, errors.New("unauthenticated")
	}
	return store.FindByUserID(c.Request.Context(), userID)
}

// requireConnected loads the caller's account and writes the error
// response itself when there is no usable connection.
func requireConnected(c *gin.Context, store services.AccountStore) (*models.Account, error) {
	account, err := findAccount(c, store)
	if err != nil {
		if errors.Is(err, services.ErrAccountNotFound) {
			utils.RespondWithNotFound(c, "No Instagram account is linked")
		} else if err.Error() != "unauthenticated" {
			utils.RespondWithInternalError(c, "Failed to load account", nil)
		}
		return nil, err
	}
	if !account.Instagram.IsConnected || account.Instagram.AccessToken == "" {
		utils.RespondWithError(c, http.StatusBadRequest, "not_connected",
			"Instagram account is not connected", nil)
		return nil, errors.New("not connected")
	}
	return account, nil
}

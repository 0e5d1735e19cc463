package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"social-integration-backend/internal/config"
	"social-integration-backend/internal/logger"
)

const (
	defaultFacebookGraphURL  = "https://graph.facebook.com"
	defaultInstagramGraphURL = "https://graph.instagram.com"
	defaultBasicOAuthURL     = "https://api.instagram.com"
)

// Client wraps all outbound calls to the Facebook and Instagram Graph APIs.
// Every call goes through a shared circuit breaker and rate limiter.
type Client struct {
	// Base URLs are exported so tests can point the client at a fake server.
	FacebookGraphURL  string
	InstagramGraphURL string
	BasicOAuthURL     string

	apiVersion string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
}

func NewClient(cfg *config.Config) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "InstagramGraphAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	})

	// Calls-per-hour app quota expressed as a steady per-second limit.
	perSecond := float64(cfg.GraphRateLimit) / 3600.0 * 0.9
	if perSecond <= 0 {
		perSecond = 1
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), 10)

	return &Client{
		FacebookGraphURL:  defaultFacebookGraphURL,
		InstagramGraphURL: defaultInstagramGraphURL,
		BasicOAuthURL:     defaultBasicOAuthURL,
		apiVersion:        cfg.GraphAPIVersion,
		httpClient:        &http.Client{Timeout: 30 * time.Second},
		breaker:           breaker,
		limiter:           limiter,
	}
}

// facebookURL builds a versioned graph.facebook.com endpoint URL.
func (c *Client) facebookURL(path string) string {
	return fmt.Sprintf("%s/%s%s", c.FacebookGraphURL, c.apiVersion, path)
}

func (c *Client) do(ctx context.Context, req *http.Request, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	tracer := otel.Tracer("social-integration-backend")
	ctx, span := tracer.Start(ctx, "instagram.api")
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("http.url.path", req.URL.Path),
	)

	body, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.httpClient.Do(req.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("instagram API request failed: %w", err)
		}
		defer resp.Body.Close()

		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read instagram API response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			var errBody graphErrorBody
			_ = json.Unmarshal(bodyBytes, &errBody)
			apiErr := classifyError(resp.StatusCode, &errBody)
			span.SetAttributes(attribute.String("instagram.error_kind", string(apiErr.Kind)))
			return nil, apiErr
		}
		return bodyBytes, nil
	})
	if err != nil {
		return err
	}

	if out != nil {
		if err := json.Unmarshal(body.([]byte), out); err != nil {
			return fmt.Errorf("failed to parse instagram API response: %w", err)
		}
	}
	return nil
}

func (c *Client) get(ctx context.Context, rawURL string, params url.Values, out any) error {
	req, err := http.NewRequest(http.MethodGet, rawURL+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	return c.do(ctx, req, out)
}

func (c *Client) postForm(ctx context.Context, rawURL string, form url.Values, out any) error {
	req, err := http.NewRequest(http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	return c.do(ctx, req, out)
}

// ExchangeCode trades an authorization code for a short-lived Graph token.
func (c *Client) ExchangeCode(ctx context.Context, clientID, clientSecret, redirectURI, code string) (*TokenResponse, error) {
	params := url.Values{
		"client_id":     {clientID},
		"client_secret": {clientSecret},
		"redirect_uri":  {redirectURI},
		"code":          {code},
	}
	var token TokenResponse
	if err := c.get(ctx, c.facebookURL("/oauth/access_token"), params, &token); err != nil {
		return nil, err
	}
	if token.AccessToken == "" {
		return nil, &AuthError{Code: AuthCodeInvalid, Message: "no access token in exchange response"}
	}
	return &token, nil
}

// ExchangeCodeBasic trades an authorization code for a Basic Display token.
// The Basic Display endpoint takes a form POST, not a GET.
func (c *Client) ExchangeCodeBasic(ctx context.Context, clientID, clientSecret, redirectURI, code string) (*TokenResponse, error) {
	form := url.Values{
		"client_id":     {clientID},
		"client_secret": {clientSecret},
		"grant_type":    {"authorization_code"},
		"redirect_uri":  {redirectURI},
		"code":          {code},
	}
	var token TokenResponse
	if err := c.postForm(ctx, c.BasicOAuthURL+"/oauth/access_token", form, &token); err != nil {
		return nil, err
	}
	if token.AccessToken == "" {
		return nil, &AuthError{Code: AuthCodeInvalid, Message: "no access token in exchange response"}
	}
	return &token, nil
}

// ExchangeLongLived trades a short-lived Graph token for a ~60 day one.
func (c *Client) ExchangeLongLived(ctx context.Context, clientID, clientSecret, shortLivedToken string) (*TokenResponse, error) {
	params := url.Values{
		"grant_type":        {"fb_exchange_token"},
		"client_id":         {clientID},
		"client_secret":     {clientSecret},
		"fb_exchange_token": {shortLivedToken},
	}
	var token TokenResponse
	if err := c.get(ctx, c.facebookURL("/oauth/access_token"), params, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// ExchangeLongLivedBasic trades a short-lived Basic Display token for a
// long-lived one.
func (c *Client) ExchangeLongLivedBasic(ctx context.Context, clientSecret, shortLivedToken string) (*TokenResponse, error) {
	params := url.Values{
		"grant_type":    {"ig_exchange_token"},
		"client_secret": {clientSecret},
		"access_token":  {shortLivedToken},
	}
	var token TokenResponse
	if err := c.get(ctx, c.InstagramGraphURL+"/access_token", params, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// ListPages enumerates the Facebook Pages the token can manage, including
// any linked Instagram Business Account.
func (c *Client) ListPages(ctx context.Context, accessToken string) ([]Page, error) {
	params := url.Values{
		"fields":       {"name,id,instagram_business_account"},
		"access_token": {accessToken},
	}
	var resp struct {
		Data []Page `json:"data"`
	}
	if err := c.get(ctx, c.facebookURL("/me/accounts"), params, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// ResolveBusinessAccount returns the Instagram Business Account behind the
// first qualifying Page. Page ordering is platform-defined; with multiple
// qualifying Pages the selection is deliberately non-deterministic.
func (c *Client) ResolveBusinessAccount(ctx context.Context, accessToken string) (businessAccountID, pageID, pageName string, err error) {
	pages, err := c.ListPages(ctx, accessToken)
	if err != nil {
		return "", "", "", err
	}
	for _, page := range pages {
		if page.InstagramBusinessAccount != nil && page.InstagramBusinessAccount.ID != "" {
			return page.InstagramBusinessAccount.ID, page.ID, page.Name, nil
		}
	}
	return "", "", "", &AuthError{
		Code:    NoBusinessAccount,
		Message: "no Instagram Business Account found behind any Facebook Page",
	}
}

// GetBusinessProfile fetches the extended profile of a Business account.
func (c *Client) GetBusinessProfile(ctx context.Context, accessToken, businessAccountID string) (*BusinessProfile, error) {
	params := url.Values{
		"fields":       {"id,username,name,biography,website,followers_count,follows_count,media_count,profile_picture_url"},
		"access_token": {accessToken},
	}
	var profile BusinessProfile
	if err := c.get(ctx, c.facebookURL("/"+businessAccountID), params, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetBasicProfile fetches the reduced /me profile of the Basic Display API.
func (c *Client) GetBasicProfile(ctx context.Context, accessToken string) (*BasicProfile, error) {
	params := url.Values{
		"fields":       {"id,username,account_type,media_count"},
		"access_token": {accessToken},
	}
	var profile BasicProfile
	if err := c.get(ctx, c.InstagramGraphURL+"/me", params, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetFacebookIdentity fetches the generic Facebook identity behind a token.
// Used for the degraded PERSONAL connection when no Business Account exists.
func (c *Client) GetFacebookIdentity(ctx context.Context, accessToken string) (id, name string, err error) {
	params := url.Values{
		"fields":       {"id,name"},
		"access_token": {accessToken},
	}
	var identity struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := c.get(ctx, c.facebookURL("/me"), params, &identity); err != nil {
		return "", "", err
	}
	return identity.ID, identity.Name, nil
}

// ListBusinessMedia fetches recent media of a Business account, annotated
// with per-post insights.
func (c *Client) ListBusinessMedia(ctx context.Context, accessToken, businessAccountID string, limit int) ([]Media, error) {
	params := url.Values{
		"fields": {"id,caption,media_type,media_url,thumbnail_url,timestamp,permalink," +
			"comments_count,like_count,insights.metric(impressions,reach,engagement)"},
		"access_token": {accessToken},
		"limit":        {strconv.Itoa(limit)},
	}
	var resp struct {
		Data []Media `json:"data"`
	}
	if err := c.get(ctx, c.facebookURL("/"+businessAccountID+"/media"), params, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// ListBasicMedia fetches recent media through the Basic Display API.
func (c *Client) ListBasicMedia(ctx context.Context, accessToken string, limit int) ([]Media, error) {
	params := url.Values{
		"fields":       {"id,caption,media_type,media_url,thumbnail_url,timestamp,permalink"},
		"access_token": {accessToken},
		"limit":        {strconv.Itoa(limit)},
	}
	var resp struct {
		Data []Media `json:"data"`
	}
	if err := c.get(ctx, c.InstagramGraphURL+"/me/media", params, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// ListStories fetches active stories of a Business account.
func (c *Client) ListStories(ctx context.Context, accessToken, businessAccountID string) ([]Story, error) {
	params := url.Values{
		"fields":       {"id,media_type,media_url,thumbnail_url,timestamp,permalink"},
		"access_token": {accessToken},
	}
	var resp struct {
		Data []Story `json:"data"`
	}
	if err := c.get(ctx, c.facebookURL("/"+businessAccountID+"/stories"), params, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GetAccountInsights fetches daily account-level insight metrics.
func (c *Client) GetAccountInsights(ctx context.Context, accessToken, businessAccountID string) ([]InsightMetric, error) {
	params := url.Values{
		"metric":       {"impressions,reach,profile_views,website_clicks"},
		"period":       {"day"},
		"access_token": {accessToken},
	}
	var resp struct {
		Data []InsightMetric `json:"data"`
	}
	if err := c.get(ctx, c.facebookURL("/"+businessAccountID+"/insights"), params, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// CreateContainer creates a media container. params carries the variant
// fields (image_url, video_url, caption, is_carousel_item, media_type,
// children).
func (c *Client) CreateContainer(ctx context.Context, accessToken, businessAccountID string, params url.Values) (string, error) {
	form := url.Values{}
	for k, v := range params {
		form[k] = v
	}
	form.Set("access_token", accessToken)

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.postForm(ctx, c.facebookURL("/"+businessAccountID+"/media"), form, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// PublishContainer finalizes a container into a published media object.
func (c *Client) PublishContainer(ctx context.Context, accessToken, businessAccountID, containerID string) (string, error) {
	form := url.Values{
		"creation_id":  {containerID},
		"access_token": {accessToken},
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.postForm(ctx, c.facebookURL("/"+businessAccountID+"/media_publish"), form, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// GetContainerStatus polls the processing status of a container.
func (c *Client) GetContainerStatus(ctx context.Context, accessToken, containerID string) (*ContainerStatus, error) {
	params := url.Values{
		"fields":       {"status_code,status"},
		"access_token": {accessToken},
	}
	var status ContainerStatus
	if err := c.get(ctx, c.facebookURL("/"+containerID), params, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetMedia fetches one media object by id (webhook media resync path).
func (c *Client) GetMedia(ctx context.Context, accessToken, mediaID string) (*Media, error) {
	params := url.Values{
		"fields":       {"id,media_type,media_url,thumbnail_url,permalink,caption,timestamp"},
		"access_token": {accessToken},
	}
	var media Media
	if err := c.get(ctx, c.InstagramGraphURL+"/"+mediaID, params, &media); err != nil {
		return nil, err
	}
	return &media, nil
}

// GetComment fetches the text and timestamp of a comment.
func (c *Client) GetComment(ctx context.Context, accessToken, commentID string) (*Comment, error) {
	params := url.Values{
		"fields":       {"text,timestamp"},
		"access_token": {accessToken},
	}
	var comment Comment
	if err := c.get(ctx, c.InstagramGraphURL+"/"+commentID, params, &comment); err != nil {
		return nil, err
	}
	comment.ID = commentID
	return &comment, nil
}

// GetMentionedComment fetches the comment a user was mentioned in.
func (c *Client) GetMentionedComment(ctx context.Context, accessToken, igUserID, commentID string) (*Comment, error) {
	params := url.Values{
		"fields":       {fmt.Sprintf("mentioned_comment.comment_id(%s){text,timestamp}", commentID)},
		"access_token": {accessToken},
	}
	var resp struct {
		MentionedComment *Comment `json:"mentioned_comment"`
	}
	if err := c.get(ctx, c.InstagramGraphURL+"/"+igUserID, params, &resp); err != nil {
		return nil, err
	}
	if resp.MentionedComment != nil {
		resp.MentionedComment.ID = commentID
	}
	return resp.MentionedComment, nil
}

// GetMentionedMedia fetches the caption of a media a user was mentioned in.
func (c *Client) GetMentionedMedia(ctx context.Context, accessToken, igUserID, mediaID string) (caption, mediaType string, err error) {
	params := url.Values{
		"fields":       {fmt.Sprintf("mentioned_media.media_id(%s){caption,media_type}", mediaID)},
		"access_token": {accessToken},
	}
	var resp struct {
		MentionedMedia *struct {
			Caption   string `json:"caption"`
			MediaType string `json:"media_type"`
		} `json:"mentioned_media"`
	}
	if err := c.get(ctx, c.InstagramGraphURL+"/"+igUserID, params, &resp); err != nil {
		return "", "", err
	}
	if resp.MentionedMedia == nil {
		return "", "", nil
	}
	return resp.MentionedMedia.Caption, resp.MentionedMedia.MediaType, nil
}

// PostComment posts a reply comment on a media object (auto-response path).
func (c *Client) PostComment(ctx context.Context, accessToken, mediaID, message string) error {
	form := url.Values{
		"message":      {message},
		"access_token": {accessToken},
	}
	return c.postForm(ctx, c.InstagramGraphURL+"/"+mediaID+"/comments", form, nil)
}

// PostMentionReply replies to a mention through the account's mentions
// edge. The platform routes the reply from the comment id or the media id,
// whichever the mention carried.
func (c *Client) PostMentionReply(ctx context.Context, accessToken, igUserID, commentID, mediaID, message string) error {
	form := url.Values{
		"message":      {message},
		"access_token": {accessToken},
	}
	if commentID != "" {
		form.Set("comment_id", commentID)
	}
	if mediaID != "" {
		form.Set("media_id", mediaID)
	}
	return c.postForm(ctx, c.InstagramGraphURL+"/"+igUserID+"/mentions", form, nil)
}

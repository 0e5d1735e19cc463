package instagram

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"social-integration-backend/internal/config"
	"social-integration-backend/internal/logger"
)

// ExchangeEngine converts a user-granted authorization code into a usable
// long-lived access token and, on the Business flow, discovers the Instagram
// Business Account behind the user's Facebook assets.
//
// The exchange is linear and non-resumable: any fatal failure aborts the
// whole flow and the user restarts from the authorization redirect. No
// retries are attempted here.
type ExchangeEngine struct {
	client *Client
	cfg    *config.Config
}

// ExchangeResult is the terminal success state of a token exchange.
type ExchangeResult struct {
	AccessToken string
	LongLived   bool
	ExpiresIn   int64
	AccountID   string
	AccountType string
	PageID      string
	PageName    string
	Profile     *Profile
	// Warning is set for degraded outcomes (kept short-lived token,
	// PERSONAL connection without a Business Account).
	Warning string
}

func NewExchangeEngine(client *Client, cfg *config.Config) *ExchangeEngine {
	return &ExchangeEngine{client: client, cfg: cfg}
}

// AuthorizationURL builds the platform authorization redirect for the given
// variant, with a fresh opaque state value the callback must echo.
func (e *ExchangeEngine) AuthorizationURL(variant Variant) (authURL, state string, err error) {
	if err := e.cfg.ValidateOAuth(); err != nil {
		return "", "", err
	}
	state = "ig_oauth_" + uuid.NewString()

	params := url.Values{
		"client_id":     {e.cfg.InstagramClientID},
		"redirect_uri":  {e.cfg.InstagramRedirectURI},
		"response_type": {"code"},
		"state":         {state},
	}

	switch variant {
	case VariantBasic:
		params.Set("scope", "user_profile,user_media")
		return "https://api.instagram.com/oauth/authorize?" + params.Encode(), state, nil
	default:
		params.Set("scope", strings.Join(e.cfg.InstagramScopes, ","))
		return fmt.Sprintf("https://www.facebook.com/%s/dialog/oauth?%s",
			e.cfg.GraphAPIVersion, params.Encode()), state, nil
	}
}

// Exchange runs the full token exchange for the given variant.
//
// Graph flow: code -> short-lived token -> long-lived token (best effort)
// -> Business Account discovery -> extended profile. When no Facebook Page
// carries an Instagram Business Account the engine degrades to a PERSONAL
// connection built from the generic Facebook identity instead of failing.
//
// Basic flow: code -> short-lived token -> long-lived token (best effort)
// -> reduced /me profile. Always yields a PERSONAL connection.
func (e *ExchangeEngine) Exchange(ctx context.Context, code string, variant Variant) (*ExchangeResult, error) {
	if err := e.cfg.ValidateOAuth(); err != nil {
		return nil, err
	}
	if code == "" {
		return nil, &AuthError{Code: AuthCodeInvalid, Message: "no authorization code received"}
	}

	if variant == VariantBasic {
		return e.exchangeBasic(ctx, code)
	}
	return e.exchangeGraph(ctx, code)
}

func (e *ExchangeEngine) exchangeGraph(ctx context.Context, code string) (*ExchangeResult, error) {
	short, err := e.client.ExchangeCode(ctx,
		e.cfg.InstagramClientID, e.cfg.InstagramClientSecret, e.cfg.InstagramRedirectURI, code)
	if err != nil {
		return nil, asAuthCodeError(err)
	}
	logger.Debug("Short-lived token obtained", "token", logger.Token(short.AccessToken))

	result := &ExchangeResult{AccessToken: short.AccessToken, ExpiresIn: short.ExpiresIn}

	// Long-lived exchange is best-effort: some flows do not need a 60 day
	// token, so a failure here degrades rather than aborts.
	long, err := e.client.ExchangeLongLived(ctx,
		e.cfg.InstagramClientID, e.cfg.InstagramClientSecret, short.AccessToken)
	if err != nil {
		logger.Warn("Long-lived token exchange failed, continuing with short-lived token", "error", err)
		result.Warning = "long-lived token exchange failed; connection will expire sooner"
	} else {
		result.AccessToken = long.AccessToken
		result.ExpiresIn = long.ExpiresIn
		result.LongLived = true
	}

	businessAccountID, pageID, pageName, err := e.client.ResolveBusinessAccount(ctx, result.AccessToken)
	if err != nil {
		if IsAuthCode(err, NoBusinessAccount) {
			return e.degradeToPersonal(ctx, result)
		}
		return nil, err
	}

	profile, err := e.client.GetBusinessProfile(ctx, result.AccessToken, businessAccountID)
	if err != nil {
		return nil, err
	}

	result.AccountID = businessAccountID
	result.AccountType = "BUSINESS"
	result.PageID = pageID
	result.PageName = pageName
	result.Profile = profile.Normalize(pageID, pageName)
	return result, nil
}

// degradeToPersonal saves what identity the token can still prove when no
// Business Account exists. A deliberate degraded-connection outcome, not an
// error: Business features stay unavailable until the user relinks.
func (e *ExchangeEngine) degradeToPersonal(ctx context.Context, result *ExchangeResult) (*ExchangeResult, error) {
	id, name, err := e.client.GetFacebookIdentity(ctx, result.AccessToken)
	if err != nil {
		return nil, &AuthError{
			Code:    NoBusinessAccount,
			Message: "no Instagram Business Account found and identity lookup failed",
		}
	}

	result.AccountID = id
	result.AccountType = "PERSONAL"
	result.Profile = &Profile{
		ID:          id,
		Username:    name,
		Name:        name,
		AccountType: "PERSONAL",
		APIType:     APITypeBasic,
	}
	if result.Warning != "" {
		result.Warning += "; "
	}
	result.Warning += "no Instagram Business Account found: insights and publishing are unavailable"
	return result, nil
}

func (e *ExchangeEngine) exchangeBasic(ctx context.Context, code string) (*ExchangeResult, error) {
	short, err := e.client.ExchangeCodeBasic(ctx,
		e.cfg.InstagramClientID, e.cfg.InstagramClientSecret, e.cfg.InstagramRedirectURI, code)
	if err != nil {
		return nil, asAuthCodeError(err)
	}

	result := &ExchangeResult{
		AccessToken: short.AccessToken,
		AccountID:   short.UserID.String(),
		AccountType: "PERSONAL",
	}

	long, err := e.client.ExchangeLongLivedBasic(ctx, e.cfg.InstagramClientSecret, short.AccessToken)
	if err != nil {
		logger.Warn("Long-lived token exchange failed, continuing with short-lived token", "error", err)
		result.Warning = "long-lived token exchange failed; connection will expire sooner"
	} else {
		result.AccessToken = long.AccessToken
		result.ExpiresIn = long.ExpiresIn
		result.LongLived = true
	}

	profile, err := e.client.GetBasicProfile(ctx, result.AccessToken)
	if err != nil {
		return nil, err
	}

	normalized := profile.Normalize()
	if result.AccountID == "" {
		result.AccountID = normalized.ID
	}
	result.Profile = normalized
	return result, nil
}

// asAuthCodeError folds platform rejections of the authorization code
// (expired, reused, mismatched redirect URI) into AUTH_CODE_INVALID so the
// HTTP layer can tell the user to restart the flow.
func asAuthCodeError(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
		return &AuthError{Code: AuthCodeInvalid, Message: apiErr.Message}
	}
	return err
}

package instagram

import "encoding/json"

// TokenResponse is the payload of both the code-exchange and the
// long-lived-exchange endpoints.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	// Basic Display code exchange also returns the user id as a number.
	UserID json.Number `json:"user_id,omitempty"`
}

// Page is one Facebook Page from /me/accounts.
type Page struct {
	ID                       string `json:"id"`
	Name                     string `json:"name"`
	AccessToken              string `json:"access_token,omitempty"`
	InstagramBusinessAccount *struct {
		ID string `json:"id"`
	} `json:"instagram_business_account,omitempty"`
}

// BusinessProfile is the full field set available to Business accounts
// through the Graph API.
type BusinessProfile struct {
	ID                string `json:"id"`
	Username          string `json:"username"`
	Name              string `json:"name"`
	Biography         string `json:"biography"`
	Website           string `json:"website"`
	FollowersCount    int    `json:"followers_count"`
	FollowsCount      int    `json:"follows_count"`
	MediaCount        int    `json:"media_count"`
	ProfilePictureURL string `json:"profile_picture_url"`
	AccountType       string `json:"account_type"`
}

// BasicProfile is the reduced field set the Basic Display API exposes.
type BasicProfile struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	AccountType string `json:"account_type"`
	MediaCount  int    `json:"media_count"`
}

// API type tags carried on normalized results so callers always know which
// variant produced the data.
const (
	APITypeBusiness = "business"
	APITypeBasic    = "basic"
)

// Profile is the normalized internal representation both variants resolve
// into. Fields absent from the Basic Display API stay zero-valued.
type Profile struct {
	ID                string
	Username          string
	Name              string
	Biography         string
	Website           string
	FollowersCount    int
	FollowingCount    int
	MediaCount        int
	ProfilePictureURL string
	AccountType       string
	APIType           string
	PageID            string
	PageName          string
}

// Normalize converts a business profile into the internal representation.
func (p *BusinessProfile) Normalize(pageID, pageName string) *Profile {
	name := p.Name
	if name == "" {
		name = p.Username
	}
	accountType := p.AccountType
	if accountType == "" {
		accountType = "BUSINESS"
	}
	return &Profile{
		ID:                p.ID,
		Username:          p.Username,
		Name:              name,
		Biography:         p.Biography,
		Website:           p.Website,
		FollowersCount:    p.FollowersCount,
		FollowingCount:    p.FollowsCount,
		MediaCount:        p.MediaCount,
		ProfilePictureURL: p.ProfilePictureURL,
		AccountType:       accountType,
		APIType:           APITypeBusiness,
		PageID:            pageID,
		PageName:          pageName,
	}
}

// Normalize converts a basic profile into the internal representation.
func (p *BasicProfile) Normalize() *Profile {
	accountType := p.AccountType
	if accountType == "" {
		accountType = "PERSONAL"
	}
	return &Profile{
		ID:          p.ID,
		Username:    p.Username,
		Name:        p.Username,
		MediaCount:  p.MediaCount,
		AccountType: accountType,
		APIType:     APITypeBasic,
	}
}

// Media is one fetched post as the platform returns it.
type Media struct {
	ID            string `json:"id"`
	Caption       string `json:"caption"`
	MediaType     string `json:"media_type"`
	MediaURL      string `json:"media_url"`
	ThumbnailURL  string `json:"thumbnail_url"`
	Permalink     string `json:"permalink"`
	Timestamp     string `json:"timestamp"`
	LikeCount     int    `json:"like_count"`
	CommentsCount int    `json:"comments_count"`
	Insights      *struct {
		Data []InsightMetric `json:"data"`
	} `json:"insights,omitempty"`
}

// InsightMetric is one entry of an insights response.
type InsightMetric struct {
	Name   string `json:"name"`
	Period string `json:"period"`
	Values []struct {
		Value int `json:"value"`
	} `json:"values"`
}

// InsightValue returns the first value of the named metric, or zero.
func (m *Media) InsightValue(name string) int {
	if m.Insights == nil {
		return 0
	}
	for _, metric := range m.Insights.Data {
		if metric.Name == name && len(metric.Values) > 0 {
			return metric.Values[0].Value
		}
	}
	return 0
}

// Story is one active story item (Business accounts only).
type Story struct {
	ID           string `json:"id"`
	MediaType    string `json:"media_type"`
	MediaURL     string `json:"media_url"`
	ThumbnailURL string `json:"thumbnail_url"`
	Permalink    string `json:"permalink"`
	Timestamp    string `json:"timestamp"`
}

// Comment is the detail payload fetched for a webhook comment event.
type Comment struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// ContainerStatus is the poll result for an in-flight media container.
type ContainerStatus struct {
	ID         string `json:"id"`
	StatusCode string `json:"status_code"`
	Status     string `json:"status"`
}

// Container status codes returned by the platform.
const (
	StatusInProgress = "IN_PROGRESS"
	StatusFinished   = "FINISHED"
	StatusError      = "ERROR"
)

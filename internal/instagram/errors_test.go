package instagram

import "testing"

func TestClassifyErrorKinds(t *testing.T) {
	cases := []struct {
		name   string
		status int
		code   int
		msg    string
		want   ErrorKind
	}{
		{"expired token code", 400, 190, "Error validating access token", KindTokenExpired},
		{"expired token message", 401, 0, "The access token could not be decrypted", KindTokenExpired},
		{"app level rate limit", 400, 4, "Application request limit reached", KindRateLimited},
		{"http 429", 429, 0, "Too many requests", KindRateLimited},
		{"permission code", 400, 10, "Permission denied", KindPermission},
		{"permission range", 400, 220, "Requires instagram_manage_comments", KindPermission},
		{"platform config", 400, 0, "Invalid platform app", KindPlatformConfig},
		{"unknown", 500, 2, "An unexpected error has occurred", KindUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := &graphErrorBody{}
			body.Error.Code = tc.code
			body.Error.Message = tc.msg

			apiErr := classifyError(tc.status, body)
			if apiErr.Kind != tc.want {
				t.Errorf("expected kind %s, got %s", tc.want, apiErr.Kind)
			}
			if apiErr.StatusCode != tc.status {
				t.Errorf("status code must carry through, got %d", apiErr.StatusCode)
			}
			if !IsKind(apiErr, tc.want) {
				t.Error("IsKind must match the classified kind")
			}
		})
	}
}

func TestClassifyErrorFlatShape(t *testing.T) {
	// The Basic Display OAuth endpoints return a flat error_message body.
	body := &graphErrorBody{ErrorMessage: "Invalid authorization code"}
	apiErr := classifyError(400, body)
	if apiErr.Message != "Invalid authorization code" {
		t.Errorf("flat error message must be used, got %q", apiErr.Message)
	}
}

func TestIsAuthCode(t *testing.T) {
	err := &AuthError{Code: NoBusinessAccount, Message: "none found"}
	if !IsAuthCode(err, NoBusinessAccount) {
		t.Error("expected matching auth code")
	}
	if IsAuthCode(err, AuthCodeInvalid) {
		t.Error("unexpected auth code match")
	}
}

package instagram

import (
	"social-integration-backend/internal/config"
)

// Variant identifies which Instagram API surface a token belongs to.
type Variant string

const (
	VariantGraph Variant = "GRAPH"
	VariantBasic Variant = "BASIC"
	VariantNone  Variant = "NONE"
)

// Credentials is the uniform token/user-id pair handed to callers
// regardless of which API variant is configured.
type Credentials struct {
	Variant   Variant
	Token     string
	AccountID string
}

// ResolveCredentials decides which API variant is usable from configuration
// alone. Graph (business token plus explicit account id) wins over the
// legacy Basic Display token. No network call is made.
func ResolveCredentials(cfg *config.Config) Credentials {
	if cfg.IGAccessToken != "" && cfg.IGUserID != "" {
		return Credentials{
			Variant:   VariantGraph,
			Token:     cfg.IGAccessToken,
			AccountID: cfg.IGUserID,
		}
	}
	if cfg.BasicAccessToken != "" {
		return Credentials{
			Variant: VariantBasic,
			Token:   cfg.BasicAccessToken,
		}
	}
	return Credentials{Variant: VariantNone}
}

// Valid reports whether any variant is configured. Callers must treat an
// invalid result as a hard precondition failure.
func (c Credentials) Valid() bool {
	return c.Variant != VariantNone
}

// Validate returns ErrNoCredentials when no variant is configured.
func (c Credentials) Validate() error {
	if c.Variant == VariantNone {
		return ErrNoCredentials
	}
	return nil
}

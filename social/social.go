// Package social prepares OAuth2 authorization redirects for third-party
// sign-in providers. Only the redirect half lives on the client; the code
// exchange must happen server-side where the client secret lives, so
// Exchange always refuses.
package social

import (
	"context"

	errs "github.com/LucianaVC752/CajasDelCampo-sub000/internal/errors"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// Provider wraps a single third-party identity provider configuration.
type Provider struct {
	name   string
	config *oauth2.Config
}

// NewProvider initializes a Provider. clientID and the endpoint URLs are
// public values; no secret is ever configured here.
func NewProvider(name, clientID, redirectURL string, endpoint oauth2.Endpoint, scopes ...string) (*Provider, error) {
	if name == "" {
		return nil, errors.New("[social.NewProvider] provider name is required")
	}
	if clientID == "" {
		return nil, errors.New("[social.NewProvider] client ID is required")
	}
	return &Provider{
		name: name,
		config: &oauth2.Config{
			ClientID:    clientID,
			RedirectURL: redirectURL,
			Endpoint:    endpoint,
			Scopes:      scopes,
		},
	}, nil
}

// Name returns the provider's display name.
func (p *Provider) Name() string {
	return p.name
}

// LoginURL builds the authorization redirect for the given anti-forgery
// state value.
func (p *Provider) LoginURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange is intentionally unsupported on the client: redeeming an
// authorization code requires the provider client secret, which only the
// backend holds.
func (p *Provider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return nil, errs.Wrapf(errs.ErrUnsupported, "[Provider.Exchange] code exchange is server-side only")
}

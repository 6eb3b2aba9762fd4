package social_test

import (
	"context"
	"net/url"
	"testing"

	errs "github.com/LucianaVC752/CajasDelCampo-sub000/internal/errors"
	"github.com/LucianaVC752/CajasDelCampo-sub000/social"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func testEndpoint() oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:  "https://accounts.example.com/o/oauth2/auth",
		TokenURL: "https://accounts.example.com/o/oauth2/token",
	}
}

func TestNewProvider_RequiresNameAndClientID(t *testing.T) {
	_, err := social.NewProvider("", "client-1", "https://app/callback", testEndpoint())
	require.Error(t, err)

	_, err = social.NewProvider("google", "", "https://app/callback", testEndpoint())
	require.Error(t, err)
}

func TestLoginURL_CarriesStateAndScopes(t *testing.T) {
	provider, err := social.NewProvider("google", "client-1", "https://app/callback", testEndpoint(),
		"openid", "email")
	require.NoError(t, err)

	parsed, err := url.Parse(provider.LoginURL("state-xyz"))
	require.NoError(t, err)

	query := parsed.Query()
	require.Equal(t, "state-xyz", query.Get("state"))
	require.Equal(t, "client-1", query.Get("client_id"))
	require.Equal(t, "openid email", query.Get("scope"))
	require.Equal(t, "https://app/callback", query.Get("redirect_uri"))
}

func TestExchange_IsUnsupportedOnTheClient(t *testing.T) {
	provider, err := social.NewProvider("google", "client-1", "https://app/callback", testEndpoint())
	require.NoError(t, err)

	_, err = provider.Exchange(context.Background(), "auth-code")
	require.ErrorIs(t, err, errs.ErrUnsupported)
}

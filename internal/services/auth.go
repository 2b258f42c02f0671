package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/fanlist/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
)

// Scopes requested at login.
var Scopes = []string{
	"user-follow-read",
	"playlist-modify-private",
	"playlist-modify-public",
}

// NewOAuthConfig builds the public-client (PKCE) OAuth2 configuration.
// Spotify expects client_id in the form body because there is no secret.
func NewOAuthConfig(clientID, redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:    clientID,
		RedirectURL: redirectURI,
		Scopes:      Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   spotifyAuthURL,
			TokenURL:  spotifyTokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// SpotifyAuth runs the authorization code flow with PKCE.
type SpotifyAuth struct {
	config     *oauth2.Config
	httpClient *http.Client
}

// NewSpotifyAuth validates the client settings and returns a SpotifyAuth.
func NewSpotifyAuth(cfg shared.SpotifyConfig, client *http.Client) (*SpotifyAuth, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}
	if cfg.RedirectURI == "" {
		return nil, fmt.Errorf("%w: missing redirect_uri", shared.ErrInvalidConfig)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &SpotifyAuth{config: NewOAuthConfig(cfg.ClientID, cfg.RedirectURI), httpClient: client}, nil
}

// Config exposes the OAuth2 configuration.
func (a *SpotifyAuth) Config() *oauth2.Config {
	return a.config
}

// AuthURL returns the consent URL for state, carrying the S256 challenge of verifier.
// The consent dialog is always shown so users can switch accounts.
func (a *SpotifyAuth) AuthURL(state, verifier string) string {
	return a.config.AuthCodeURL(state,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("show_dialog", "true"),
	)
}

// Exchange trades an authorization code for a credential.
func (a *SpotifyAuth) Exchange(ctx context.Context, code, verifier string) (Credential, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	tok, err := a.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return Credential{}, fmt.Errorf("%w: code exchange failed: %v", shared.ErrAuthFailed, err)
	}
	return CredentialFromToken(tok, time.Now()), nil
}

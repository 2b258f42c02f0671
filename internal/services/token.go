package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/fanlist/internal/shared"
	"golang.org/x/oauth2"
)

const (
	// expirySkew treats a token as expired this many seconds early.
	expirySkew = 30
	// defaultExpiresIn applies when the token endpoint omits expires_in.
	defaultExpiresIn = 3600
)

// Credential is the bearer credential for the Web API. ExpiresAt is in epoch seconds.
type Credential struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

// Fresh reports whether the access token can be used at now.
func (c Credential) Fresh(now time.Time) bool {
	return c.AccessToken != "" && c.ExpiresAt-expirySkew > now.Unix()
}

// Empty reports whether nothing usable is stored.
func (c Credential) Empty() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}

// CredentialFromToken converts a token endpoint response.
func CredentialFromToken(tok *oauth2.Token, now time.Time) Credential {
	expiresAt := now.Unix() + defaultExpiresIn
	if !tok.Expiry.IsZero() {
		expiresAt = tok.Expiry.Unix()
	}
	return Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    expiresAt,
	}
}

// TokenProvider owns the credential and refreshes it through the token endpoint.
//
// Token and Refresh hold a lock across read, refresh and write so a refresh
// triggered by one request is seen by the next.
type TokenProvider struct {
	mu         sync.Mutex
	oauth      *oauth2.Config
	credential Credential
	httpClient *http.Client
	onChange   func(Credential) error
	logger     *log.Logger
	now        func() time.Time
}

// TokenProviderOpts configures a [TokenProvider].
type TokenProviderOpts struct {
	OAuth      *oauth2.Config
	Credential Credential
	HTTPClient *http.Client
	// OnChange persists every newly issued or cleared credential.
	OnChange func(Credential) error
	Logger   *log.Logger
}

// NewTokenProvider creates a TokenProvider from opts.
func NewTokenProvider(opts TokenProviderOpts) *TokenProvider {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &TokenProvider{
		oauth:      opts.OAuth,
		credential: opts.Credential,
		httpClient: opts.HTTPClient,
		onChange:   opts.OnChange,
		logger:     opts.Logger,
		now:        time.Now,
	}
}

// Credential returns a copy of the current credential.
func (p *TokenProvider) Credential() Credential {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.credential
}

// SetCredential replaces the credential, e.g. after a fresh login.
func (p *TokenProvider) SetCredential(c Credential) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.store(c)
}

// Token returns a usable access token, refreshing first when the stored one is
// about to expire. Without a refresh token it fails with [shared.ErrAuthRequired].
func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.credential.Fresh(p.now()) {
		return p.credential.AccessToken, nil
	}
	if p.credential.RefreshToken == "" {
		return "", shared.ErrAuthRequired
	}
	return p.refresh(ctx)
}

// Refresh forces a refresh_token grant regardless of expiry.
func (p *TokenProvider) Refresh(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refresh(ctx)
}

func (p *TokenProvider) refresh(ctx context.Context) (string, error) {
	previous := p.credential
	if previous.RefreshToken == "" {
		if err := p.store(Credential{}); err != nil {
			p.logger.Warn("failed to persist cleared credential", "error", err)
		}
		return "", fmt.Errorf("%w: no refresh token", shared.ErrAuthRequired)
	}
	if p.oauth == nil {
		return "", fmt.Errorf("%w: oauth client not configured", shared.ErrInvalidConfig)
	}

	expired := &oauth2.Token{RefreshToken: previous.RefreshToken, Expiry: time.Unix(1, 0)}
	tok, err := p.oauth.TokenSource(context.WithValue(ctx, oauth2.HTTPClient, p.httpClient), expired).Token()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}

		p.logger.Warn("token refresh failed, clearing credential", "error", err)
		if storeErr := p.store(Credential{}); storeErr != nil {
			p.logger.Warn("failed to persist cleared credential", "error", storeErr)
		}

		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			return "", fmt.Errorf("%w: refresh rejected with status %d", shared.ErrAuthRequired, retrieveErr.Response.StatusCode)
		}
		return "", fmt.Errorf("%w: %v", shared.ErrAuthRequired, err)
	}

	next := CredentialFromToken(tok, p.now())
	if next.RefreshToken == "" {
		next.RefreshToken = previous.RefreshToken
	}
	if err := p.store(next); err != nil {
		p.logger.Warn("failed to persist refreshed credential", "error", err)
	}

	p.logger.Info("access token refreshed", "expires_at", time.Unix(next.ExpiresAt, 0).Format(time.RFC3339))
	return next.AccessToken, nil
}

func (p *TokenProvider) store(c Credential) error {
	p.credential = c
	if p.onChange == nil {
		return nil
	}
	return p.onChange(c)
}

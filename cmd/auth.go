package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/desertthunder/fanlist/internal/server"
	"github.com/desertthunder/fanlist/internal/services"
	"github.com/desertthunder/fanlist/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

const (
	loginTimeout    = 2 * time.Minute
	shutdownTimeout = 5 * time.Second
)

// AuthLogin runs the authorization code flow with PKCE.
//
// A callback server is bound to the redirect URI before the browser is
// opened. The first callback ends the flow and the credential is written to
// the config file.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	auth := r.auth
	if auth == nil {
		a, err := services.NewSpotifyAuth(r.config.Credentials.Spotify, r.httpClient)
		if err != nil {
			return err
		}
		auth = a
	}

	redirect, err := url.Parse(auth.Config().RedirectURL)
	if err != nil {
		return fmt.Errorf("%w: redirect_uri: %v", shared.ErrInvalidConfig, err)
	}

	state, err := shared.GenerateState()
	if err != nil {
		return err
	}
	verifier := oauth2.GenerateVerifier()

	handler := server.NewOAuthHandler(auth, state, verifier, redirect.Path)
	router := server.NewBasicRouter()
	router.Use(server.Recoverer(r.logger), server.RequestLogger(r.logger))
	router.Handler(handler)

	addr := r.callbackAddr(redirect)
	srv, err := server.Listen(addr, router)
	if err != nil {
		return fmt.Errorf("failed to start callback server on %s: %w", addr, err)
	}
	r.logger.Debug("callback server listening", "addr", srv.Addr())

	authURL := auth.AuthURL(state, verifier)
	if err := r.openBrowser(authURL); err != nil {
		r.logger.Warn("could not open browser", "error", err)
		r.writePlain("Open this URL to log in:\n%s\n", authURL)
	} else {
		r.writePlain("Waiting for login in the browser...\n")
	}

	ctx, cancel := context.WithTimeout(ctx, loginTimeout)
	defer cancel()

	var credential services.Credential
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				r.logger.Warn("callback server shutdown", "error", err)
			}
		}()

		select {
		case result := <-handler.Result():
			if err := result.Error(); err != nil {
				return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
			}
			credential = result.Credential
			return nil
		case <-gctx.Done():
			return gctx.Err()
		}
	})
	g.Go(func() error {
		if err, ok := <-srv.Errors(); ok {
			return fmt.Errorf("callback server: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return fmt.Errorf("%w: no login within %s", shared.ErrTimeout, loginTimeout)
		case errors.Is(err, context.Canceled):
			return shared.ErrCancelled
		}
		return err
	}

	if err := r.saveCredential(credential); err != nil {
		return err
	}
	r.logger.Info("logged in", "expires_at", time.Unix(credential.ExpiresAt, 0).Format(time.RFC3339))
	if r.configPath == "" {
		return r.writePlain("✓ Logged in\n")
	}
	return r.writePlain("✓ Logged in, credential saved to %s\n", r.configPath)
}

// callbackAddr is the host:port of the redirect URI, with the [server]
// settings filling in what the URI leaves out.
func (r *Runner) callbackAddr(redirect *url.URL) string {
	host, port := redirect.Hostname(), redirect.Port()
	if host == "" {
		host = r.config.Server.Host
	}
	if port == "" {
		port = strconv.Itoa(r.config.Server.Port)
	}
	return net.JoinHostPort(host, port)
}

// AuthStatus shows the stored credential and, when one exists, the account it belongs to.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	spotify := r.config.Credentials.Spotify

	clientID := spotify.ClientID
	if clientID == "" {
		clientID = "(not set)"
	}
	r.writePlain("Client ID: %s\n", clientID)

	if !spotify.HasCredential() {
		return r.writePlain("Credential: ✗ none, run `fanlist auth login`\n")
	}

	credential := services.Credential{
		AccessToken:  spotify.AccessToken,
		RefreshToken: spotify.RefreshToken,
		ExpiresAt:    spotify.ExpiresAt,
	}
	expires := time.Unix(credential.ExpiresAt, 0).Format(time.RFC3339)
	switch {
	case credential.Fresh(time.Now()):
		r.writePlain("Credential: ✓ valid until %s\n", expires)
	case credential.RefreshToken != "":
		r.writePlain("Credential: expired at %s, refreshes on next use\n", expires)
	default:
		return r.writePlain("Credential: ✗ expired at %s, run `fanlist auth login`\n", expires)
	}

	if err := r.connect(); err != nil {
		return err
	}
	if r.service == nil {
		return nil
	}

	user, err := r.service.Me(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch profile: %w", err)
	}
	return r.writePlain("Account: %s (%s)\n", user.Name(), user.ID)
}

// AuthLogout forgets the stored credential.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	r.config.Credentials.Spotify.ClearCredential()
	if r.configPath != "" {
		if err := r.persistCredential(services.Credential{}); err != nil {
			return err
		}
	}
	r.logger.Info("credential cleared")
	return r.writePlain("✓ Logged out\n")
}

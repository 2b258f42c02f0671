package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/fanlist/internal/models"
	"github.com/desertthunder/fanlist/internal/services"
	"github.com/desertthunder/fanlist/internal/shared"
	tu "github.com/desertthunder/fanlist/internal/testing"
	"github.com/urfave/cli/v3"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// testConfig returns a config with a fresh credential and a database in a temp dir.
func testConfig(t *testing.T) *shared.Config {
	t.Helper()
	config := shared.DefaultConfig()
	config.Credentials.Spotify.ClientID = "client"
	config.Credentials.Spotify.SetCredential("access", "refresh", time.Now().Add(time.Hour).Unix())
	config.Database.Path = filepath.Join(t.TempDir(), "fanlist.db")
	config.Build.RequestsPerSecond = 0
	return config
}

// testApp mirrors newApp without the Before hook so injected config survives.
func testApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:     "fanlist",
		Flags:    rootFlags(),
		Commands: r.register(),
	}
}

func mockCatalog() *tu.MockService {
	return &tu.MockService{
		User:    models.User{ID: "u1", DisplayName: "Una"},
		Artists: []models.Artist{{ID: "a1", Name: "Alpha"}, {ID: "a2", Name: "Beta"}},
		Albums: map[string][]models.Album{
			"a1": {{ID: "al1", Name: "First", ReleaseDate: "2020-01-01", ReleaseDatePrecision: "day"}},
			"a2": {{ID: "al2", Name: "Second", ReleaseDate: "2019", ReleaseDatePrecision: "year"}},
		},
		Tracks: map[string][]models.ReleaseTrack{
			"al1": {tu.Track("t1", 1, 1, "a1"), tu.Track("t2", 1, 2, "a1")},
			"al2": {tu.Track("t3", 1, 1, "a2")},
		},
	}
}

type harness struct {
	runner  *Runner
	service *tu.MockService
	output  *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{service: mockCatalog(), output: &bytes.Buffer{}}
	h.runner = NewRunner(RunnerOpts{
		Config:   testConfig(t),
		Service:  h.service,
		DB:       setupTestDB(t),
		Output:   h.output,
		Progress: &bytes.Buffer{},
	})
	return h
}

func (h *harness) run(ctx context.Context, args ...string) error {
	h.output.Reset()
	return testApp(h.runner).Run(ctx, append([]string{"fanlist"}, args...))
}

func TestBuildCommand(t *testing.T) {
	t.Run("dry run prints the track list", func(t *testing.T) {
		h := newHarness(t)

		if err := h.run(context.Background(), "build", "--dry-run", "--artist", "a1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		out := h.output.String()
		if !strings.Contains(out, "Dry run: 2 tracks from 1 artists") {
			t.Errorf("expected dry run summary, got %q", out)
		}
		if !strings.Contains(out, "1. Alpha - t1") || !strings.Contains(out, "2. Alpha - t2") {
			t.Errorf("expected track list, got %q", out)
		}
		if len(h.service.Created) != 0 {
			t.Error("expected no playlist to be created")
		}
	})

	t.Run("creates the playlist and writes exports", func(t *testing.T) {
		h := newHarness(t)
		base := filepath.Join(t.TempDir(), "out")

		err := h.run(context.Background(), "build", "--name", "Mine", "--public", "--format", "csv,json", "--output", base)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		out := h.output.String()
		if !strings.Contains(out, `Created public playlist "Mine"`) {
			t.Errorf("expected created line, got %q", out)
		}
		if !strings.Contains(out, models.PlaylistURL("pl1")) {
			t.Errorf("expected playlist url, got %q", out)
		}
		if got := h.service.Written["pl1"]; len(got) != 3 {
			t.Errorf("expected 3 tracks written, got %v", got)
		}
		tu.AssertFileExists(t, base+".csv")
		tu.AssertFileExists(t, base+".json")

		t.Run("history lists the run", func(t *testing.T) {
			if err := h.run(context.Background(), "history"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			out := h.output.String()
			if !strings.Contains(out, "Mine") || !strings.Contains(out, "succeeded") {
				t.Errorf("expected recorded run, got %q", out)
			}
		})

		t.Run("history as JSON", func(t *testing.T) {
			if err := h.run(context.Background(), "history", "--json"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !strings.Contains(h.output.String(), `"playlist_url": "https://open.spotify.com/playlist/pl1"`) {
				t.Errorf("expected playlist url in JSON, got %q", h.output.String())
			}
		})
	})

	t.Run("config supplies defaults", func(t *testing.T) {
		h := newHarness(t)
		h.runner.config.Build.PlaylistName = "From config"
		h.runner.config.Build.Public = true

		if err := h.run(context.Background(), "build"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(h.service.Created) != 1 || h.service.Created[0].Name != "From config" || !h.service.Created[0].Public {
			t.Errorf("unexpected playlist %+v", h.service.Created)
		}
	})

	t.Run("rejects bad input before any request", func(t *testing.T) {
		dir := t.TempDir()
		notJPEG := filepath.Join(dir, "cover.png")
		tu.MustWriteFile(t, notJPEG, []byte("\x89PNG"))

		tests := []struct {
			name string
			args []string
			want error
		}{
			{"unknown format", []string{"build", "--format", "xml"}, shared.ErrInvalidArgument},
			{"missing cover", []string{"build", "--cover", filepath.Join(dir, "nope.jpg")}, shared.ErrInvalidArgument},
			{"cover not a jpeg", []string{"build", "--cover", notJPEG}, shared.ErrInvalidInput},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				h := newHarness(t)
				if err := h.run(context.Background(), tt.args...); !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
				if len(h.service.Calls) != 0 {
					t.Errorf("expected no calls, got %v", h.service.Calls)
				}
			})
		}
	})

	t.Run("unknown artists fail the build", func(t *testing.T) {
		h := newHarness(t)

		err := h.run(context.Background(), "build", "--artist", "zzz")
		if !errors.Is(err, shared.ErrNoArtists) {
			t.Errorf("expected ErrNoArtists, got %v", err)
		}
	})
}

func TestArtistsCommand(t *testing.T) {
	t.Run("numbered list", func(t *testing.T) {
		h := newHarness(t)

		if err := h.run(context.Background(), "artists", "list"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		out := h.output.String()
		if !strings.Contains(out, "Following 2 artists") || !strings.Contains(out, "  1. Alpha") || !strings.Contains(out, "ID: a2") {
			t.Errorf("unexpected output %q", out)
		}
	})

	t.Run("json", func(t *testing.T) {
		h := newHarness(t)

		if err := h.run(context.Background(), "artists", "list", "--json"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(h.output.String(), `"name": "Beta"`) {
			t.Errorf("unexpected output %q", h.output.String())
		}
	})

	t.Run("none followed", func(t *testing.T) {
		h := newHarness(t)
		h.service.Artists = nil

		if err := h.run(context.Background(), "artists", "list"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(h.output.String(), "do not follow any artists") {
			t.Errorf("unexpected output %q", h.output.String())
		}
	})
}

func TestCountsCommand(t *testing.T) {
	t.Run("table with total", func(t *testing.T) {
		h := newHarness(t)

		if err := h.run(context.Background(), "counts"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		out := h.output.String()
		for _, want := range []string{"Alpha", "Beta", "Total", "3"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in %q", want, out)
			}
		}

		t.Run("second run is served from the cache", func(t *testing.T) {
			h.service.Calls = nil
			if err := h.run(context.Background(), "counts"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			for _, call := range h.service.Calls {
				if strings.HasPrefix(call, "albums:") || strings.HasPrefix(call, "tracks:") {
					t.Errorf("expected cached counts, got call %s", call)
				}
			}
		})

		t.Run("cache list and clear", func(t *testing.T) {
			if err := h.run(context.Background(), "cache", "list"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !strings.Contains(h.output.String(), "Alpha") || !strings.Contains(h.output.String(), "all releases") {
				t.Errorf("unexpected cache list %q", h.output.String())
			}

			if err := h.run(context.Background(), "cache", "clear"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !strings.Contains(h.output.String(), "Removed 2 cached counts") {
				t.Errorf("unexpected clear output %q", h.output.String())
			}

			if err := h.run(context.Background(), "cache", "list"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !strings.Contains(h.output.String(), "No cached track counts") {
				t.Errorf("expected empty cache, got %q", h.output.String())
			}
		})
	})

	t.Run("interrupt prints partial counts", func(t *testing.T) {
		h := newHarness(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		h.service.OnCall = func(call string) {
			if call == "albums:a2" {
				cancel()
			}
		}

		if err := h.run(ctx, "counts"); err != nil {
			t.Fatalf("expected partial result without error, got %v", err)
		}
		out := h.output.String()
		if !strings.Contains(out, "Alpha") || strings.Contains(out, "Beta") {
			t.Errorf("expected only Alpha counted, got %q", out)
		}
		if !strings.Contains(out, "Stopped early after 1 artists") {
			t.Errorf("expected early stop notice, got %q", out)
		}
	})
}

func TestAuthCommands(t *testing.T) {
	t.Run("status without credential", func(t *testing.T) {
		h := newHarness(t)
		h.runner.config.Credentials.Spotify.ClearCredential()

		if err := h.run(context.Background(), "auth", "status"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(h.output.String(), "Credential: ✗ none") {
			t.Errorf("unexpected output %q", h.output.String())
		}
	})

	t.Run("status shows the account", func(t *testing.T) {
		h := newHarness(t)

		if err := h.run(context.Background(), "auth", "status"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		out := h.output.String()
		if !strings.Contains(out, "Credential: ✓ valid until") || !strings.Contains(out, "Account: Una (u1)") {
			t.Errorf("unexpected output %q", out)
		}
	})

	t.Run("logout clears the saved credential", func(t *testing.T) {
		h := newHarness(t)
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := shared.SaveConfig(configPath, h.runner.config); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}
		h.runner.configPath = configPath

		if err := h.run(context.Background(), "auth", "logout"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		loaded, err := shared.LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to reload config: %v", err)
		}
		if loaded.Credentials.Spotify.HasCredential() {
			t.Error("expected credential to be removed from the file")
		}
	})

	t.Run("login", func(t *testing.T) {
		tokens := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseForm(); err != nil {
				t.Errorf("bad token request: %v", err)
			}
			if r.Form.Get("code") != "the-code" || r.Form.Get("code_verifier") == "" {
				http.Error(w, "bad grant", http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"access_token":"new-access","refresh_token":"new-refresh","token_type":"Bearer","expires_in":3600}`)
		}))
		t.Cleanup(tokens.Close)

		setup := func(t *testing.T, callback func(authURL *url.URL) string) *harness {
			t.Helper()
			h := newHarness(t)
			h.runner.config.Credentials.Spotify.ClearCredential()
			h.runner.config.Credentials.Spotify.RedirectURI = fmt.Sprintf("http://127.0.0.1:%d/callback", freePort(t))

			auth, err := services.NewSpotifyAuth(h.runner.config.Credentials.Spotify, nil)
			if err != nil {
				t.Fatalf("failed to create auth: %v", err)
			}
			auth.Config().Endpoint.TokenURL = tokens.URL
			h.runner.auth = auth

			h.runner.openBrowser = func(raw string) error {
				authURL, err := url.Parse(raw)
				if err != nil {
					return err
				}
				resp, err := http.Get(callback(authURL))
				if err != nil {
					return err
				}
				return resp.Body.Close()
			}
			return h
		}

		t.Run("stores the exchanged credential", func(t *testing.T) {
			h := setup(t, func(authURL *url.URL) string {
				q := authURL.Query()
				if q.Get("code_challenge_method") != "S256" {
					t.Errorf("expected PKCE challenge, got %v", q)
				}
				return q.Get("redirect_uri") + "?code=the-code&state=" + url.QueryEscape(q.Get("state"))
			})

			if err := h.run(context.Background(), "auth", "login"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			spotify := h.runner.config.Credentials.Spotify
			if spotify.AccessToken != "new-access" || spotify.RefreshToken != "new-refresh" {
				t.Errorf("unexpected credential %+v", spotify)
			}
			if spotify.ExpiresAt <= time.Now().Unix() {
				t.Errorf("expected future expiry, got %d", spotify.ExpiresAt)
			}
			if !strings.Contains(h.output.String(), "✓ Logged in") {
				t.Errorf("unexpected output %q", h.output.String())
			}
		})

		t.Run("state mismatch fails", func(t *testing.T) {
			h := setup(t, func(authURL *url.URL) string {
				return authURL.Query().Get("redirect_uri") + "?code=the-code&state=forged"
			})

			err := h.run(context.Background(), "auth", "login")
			if !errors.Is(err, shared.ErrAuthFailed) {
				t.Errorf("expected ErrAuthFailed, got %v", err)
			}
			if h.runner.config.Credentials.Spotify.HasCredential() {
				t.Error("expected no credential to be stored")
			}
		})

		t.Run("denied consent fails", func(t *testing.T) {
			h := setup(t, func(authURL *url.URL) string {
				q := authURL.Query()
				return q.Get("redirect_uri") + "?error=access_denied&state=" + url.QueryEscape(q.Get("state"))
			})

			err := h.run(context.Background(), "auth", "login")
			if !errors.Is(err, shared.ErrAuthFailed) || !strings.Contains(err.Error(), "access_denied") {
				t.Errorf("expected denied error, got %v", err)
			}
		})
	})
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find a free port: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestAPIGetCommand(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/me":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"id":"u1","display_name":"Una"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":{"status":404,"message":"Not found"}}`)
		}
	}))
	t.Cleanup(api.Close)

	newRunner := func(t *testing.T) (*Runner, *bytes.Buffer) {
		output := &bytes.Buffer{}
		r := NewRunner(RunnerOpts{Config: testConfig(t), BaseURL: api.URL, Output: output, Progress: &bytes.Buffer{}})
		t.Cleanup(func() { r.Close() })
		return r, output
	}

	t.Run("pretty JSON", func(t *testing.T) {
		r, output := newRunner(t)

		if err := testApp(r).Run(context.Background(), []string{"fanlist", "api", "get", "/me"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), `"display_name": "Una"`) {
			t.Errorf("unexpected output %q", output.String())
		}
	})

	t.Run("compact JSON", func(t *testing.T) {
		r, output := newRunner(t)

		if err := testApp(r).Run(context.Background(), []string{"fanlist", "api", "get", "--pretty=false", "me"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), `"display_name":"Una"`) {
			t.Errorf("unexpected output %q", output.String())
		}
	})

	t.Run("error status", func(t *testing.T) {
		r, _ := newRunner(t)

		err := testApp(r).Run(context.Background(), []string{"fanlist", "api", "get", "/nope"})
		apiErr, ok := shared.AsAPIError(err)
		if !ok || apiErr.Status != http.StatusNotFound {
			t.Errorf("expected 404 APIError, got %v", err)
		}
	})

	t.Run("missing path", func(t *testing.T) {
		r, _ := newRunner(t)

		err := testApp(r).Run(context.Background(), []string{"fanlist", "api", "get"})
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}

func TestSetupDatabase(t *testing.T) {
	t.Chdir(t.TempDir())

	runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})
	runner.configPath = "config.toml"

	if err := testApp(runner).Run(context.Background(), []string{"fanlist", "setup", "database"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	tu.AssertFileExists(t, "config.toml")
	tu.AssertFileExists(t, runner.config.Database.Path)

	t.Run("existing config is kept", func(t *testing.T) {
		config := shared.DefaultConfig()
		config.Credentials.Spotify.ClientID = "kept"
		if err := shared.SaveConfig("config.toml", config); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		if err := testApp(runner).Run(context.Background(), []string{"fanlist", "setup", "database"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(tu.MustReadFile(t, "config.toml"), `client_id = "kept"`) {
			t.Error("expected config file to be left alone")
		}
	})
}

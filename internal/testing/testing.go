// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/fanlist/internal/models"
)

// StubCredentials hands out a fixed token and counts refreshes.
//
// When RefreshTokens is set, each refresh returns the next entry.
// When RefreshErr is set, every refresh fails with it.
type StubCredentials struct {
	mu            sync.Mutex
	AccessToken   string
	RefreshTokens []string
	RefreshErr    error
	TokenErr      error
	Refreshes     int
}

func (s *StubCredentials) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.TokenErr != nil {
		return "", s.TokenErr
	}
	return s.AccessToken, nil
}

func (s *StubCredentials) Refresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Refreshes++
	if s.RefreshErr != nil {
		return "", s.RefreshErr
	}
	if len(s.RefreshTokens) > 0 {
		s.AccessToken, s.RefreshTokens = s.RefreshTokens[0], s.RefreshTokens[1:]
	}
	return s.AccessToken, nil
}

// MockService is an in-memory catalog and playlist writer.
//
// Albums and Tracks are keyed by artist id and album id; Calls records every
// catalog call as "albums:<id>", "tracks:<id>" or "top:<id>". Playlist writes
// fail with the context's error once it is done.
type MockService struct {
	mu sync.Mutex

	User      models.User
	Artists   []models.Artist
	Albums    map[string][]models.Album
	Tracks    map[string][]models.ReleaseTrack
	TopHits   map[string][]models.ReleaseTrack
	Errs      map[string]error
	Calls     []string
	Created   []models.Playlist
	Written   map[string][]string
	Covers    map[string][]byte
	OnCall    func(call string)
	PlaylistN int
}

func (m *MockService) record(call string) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, call)
	err := m.Errs[call]
	hook := m.OnCall
	m.mu.Unlock()
	if hook != nil {
		hook(call)
	}
	return err
}

func (m *MockService) Name() string { return "mock" }

func (m *MockService) Me(ctx context.Context) (models.User, error) {
	if err := m.record("me"); err != nil {
		return models.User{}, err
	}
	return m.User, nil
}

func (m *MockService) FollowedArtists(ctx context.Context) ([]models.Artist, error) {
	if err := m.record("following"); err != nil {
		return nil, err
	}
	return m.Artists, nil
}

func (m *MockService) ArtistAlbums(ctx context.Context, artistID string, singlesOnly bool) ([]models.Album, error) {
	if err := m.record("albums:" + artistID); err != nil {
		return nil, err
	}
	return m.Albums[artistID], nil
}

func (m *MockService) AlbumTracks(ctx context.Context, albumID string) ([]models.ReleaseTrack, error) {
	if err := m.record("tracks:" + albumID); err != nil {
		return nil, err
	}
	return m.Tracks[albumID], nil
}

func (m *MockService) TopTracks(ctx context.Context, artistID string) ([]models.ReleaseTrack, error) {
	if err := m.record("top:" + artistID); err != nil {
		return nil, err
	}
	return m.TopHits[artistID], nil
}

func (m *MockService) CreatePlaylist(ctx context.Context, ownerID, name string, public bool) (models.Playlist, error) {
	if err := m.record("create:" + ownerID); err != nil {
		return models.Playlist{}, err
	}
	if err := ctx.Err(); err != nil {
		return models.Playlist{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PlaylistN++
	id := fmt.Sprintf("pl%d", m.PlaylistN)
	p := models.Playlist{ID: id, Name: name, Public: public, URL: models.PlaylistURL(id)}
	m.Created = append(m.Created, p)
	return p, nil
}

func (m *MockService) ReplaceItems(ctx context.Context, playlistID string, uris []string, onBatch func(done, total int)) error {
	if err := m.record("replace:" + playlistID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	if m.Written == nil {
		m.Written = map[string][]string{}
	}
	m.Written[playlistID] = append([]string(nil), uris...)
	m.mu.Unlock()
	if onBatch != nil {
		onBatch(len(uris), len(uris))
	}
	return nil
}

func (m *MockService) UploadCover(ctx context.Context, playlistID string, jpeg []byte) error {
	if err := m.record("cover:" + playlistID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Covers == nil {
		m.Covers = map[string][]byte{}
	}
	m.Covers[playlistID] = jpeg
	return nil
}

// Track builds a release track credited to artistIDs.
func Track(id string, disc, number int, artistIDs ...string) models.ReleaseTrack {
	return models.ReleaseTrack{
		ID:          id,
		URI:         "spotify:track:" + id,
		Name:        id,
		DiscNumber:  disc,
		TrackNumber: number,
		ArtistIDs:   artistIDs,
	}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

func MustWriteFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
}

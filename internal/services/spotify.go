// Spotify Web API catalog reads and playlist writes.
//
// Response types follow https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/fanlist/internal/models"
	"github.com/desertthunder/fanlist/internal/shared"
	"github.com/samber/lo"
)

const (
	spotifyBaseURL = "https://api.spotify.com/v1"

	// PageSize is the page size for every paginated listing.
	PageSize = 50
	// BatchSize is the largest number of URIs accepted per add-items call.
	BatchSize = 100
	// MaxCoverBytes is the largest JPEG accepted as a playlist cover.
	MaxCoverBytes = 256 * 1024

	playlistDescription = "auto: all tracks from artists i follow"
	marketFromToken     = "from_token"
)

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyUser represents the current user's profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Country     string         `json:"country"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyArtist represents a full or simplified artist object.
type SpotifyArtist struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []SpotifyImage `json:"images"`
	URI    string         `json:"uri"`
}

// SpotifyAlbum represents a simplified album object from an artist's album listing.
type SpotifyAlbum struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	AlbumGroup           string `json:"album_group"`
	ReleaseDate          string `json:"release_date"`
	ReleaseDatePrecision string `json:"release_date_precision"`
	TotalTracks          int    `json:"total_tracks"`
}

// SpotifyTrack represents a simplified track object.
type SpotifyTrack struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	URI         string          `json:"uri"`
	DiscNumber  int             `json:"disc_number"`
	TrackNumber int             `json:"track_number"`
	Artists     []SpotifyArtist `json:"artists"`
}

// SpotifyPlaylist is the subset of the create-playlist response we read.
type SpotifyPlaylist struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Public bool   `json:"public"`
}

func firstImage(images []SpotifyImage) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}

func (a SpotifyArtist) toModel() models.Artist {
	return models.Artist{ID: a.ID, Name: a.Name, ImageURL: firstImage(a.Images)}
}

func (a SpotifyAlbum) toModel() models.Album {
	return models.Album{
		ID:                   a.ID,
		Name:                 a.Name,
		ReleaseDate:          a.ReleaseDate,
		ReleaseDatePrecision: a.ReleaseDatePrecision,
	}
}

func (t SpotifyTrack) toModel() models.ReleaseTrack {
	return models.ReleaseTrack{
		ID:          t.ID,
		URI:         t.URI,
		Name:        t.Name,
		DiscNumber:  t.DiscNumber,
		TrackNumber: t.TrackNumber,
		ArtistIDs:   lo.Map(t.Artists, func(a SpotifyArtist, _ int) string { return a.ID }),
	}
}

// SpotifyService reads the followed-artist catalog and writes playlists through a [Fetcher].
type SpotifyService struct {
	fetcher *Fetcher
	baseURL string
	logger  *log.Logger
}

// NewSpotifyService creates a SpotifyService. An empty baseURL targets the public Web API.
func NewSpotifyService(fetcher *Fetcher, baseURL string, logger *log.Logger) *SpotifyService {
	if baseURL == "" {
		baseURL = spotifyBaseURL
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &SpotifyService{fetcher: fetcher, baseURL: baseURL, logger: logger}
}

// Name returns the service name.
func (s *SpotifyService) Name() string {
	return "Spotify"
}

// Fetcher exposes the underlying fetcher.
func (s *SpotifyService) Fetcher() *Fetcher {
	return s.fetcher
}

func (s *SpotifyService) endpoint(path string, params url.Values) string {
	u := s.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// Me returns the current user's profile.
func (s *SpotifyService) Me(ctx context.Context) (models.User, error) {
	var user SpotifyUser
	if err := s.fetcher.GetJSON(ctx, s.endpoint("/me", nil), &user); err != nil {
		return models.User{}, err
	}
	return models.User{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Country:     user.Country,
		ImageURL:    firstImage(user.Images),
	}, nil
}

// FollowedArtists returns every artist the user follows, in server order.
func (s *SpotifyService) FollowedArtists(ctx context.Context) ([]models.Artist, error) {
	artists, err := CollectCursor[SpotifyArtist](ctx, s.fetcher, CursorQuery{
		URL: s.endpoint("/me/following", nil),
		Params: url.Values{
			"type":  {"artist"},
			"limit": {strconv.Itoa(PageSize)},
		},
		ItemsPath:  "artists.items",
		CursorPath: "artists.cursors.after",
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("followed artists read", "count", len(artists))
	return lo.Map(artists, func(a SpotifyArtist, _ int) models.Artist { return a.toModel() }), nil
}

// ArtistAlbums returns an artist's releases: singles only, or albums and singles.
func (s *SpotifyService) ArtistAlbums(ctx context.Context, artistID string, singlesOnly bool) ([]models.Album, error) {
	groups := "album,single"
	if singlesOnly {
		groups = "single"
	}

	first := s.endpoint("/artists/"+url.PathEscape(artistID)+"/albums", url.Values{
		"limit":          {strconv.Itoa(PageSize)},
		"include_groups": {groups},
		"market":         {marketFromToken},
	})
	albums, err := CollectNext[SpotifyAlbum](ctx, s.fetcher, first)
	if err != nil {
		return nil, err
	}
	return lo.Map(albums, func(a SpotifyAlbum, _ int) models.Album { return a.toModel() }), nil
}

// AlbumTracks returns every track on an album in listing order.
func (s *SpotifyService) AlbumTracks(ctx context.Context, albumID string) ([]models.ReleaseTrack, error) {
	first := s.endpoint("/albums/"+url.PathEscape(albumID)+"/tracks", url.Values{
		"limit":  {strconv.Itoa(PageSize)},
		"market": {marketFromToken},
	})
	tracks, err := CollectNext[SpotifyTrack](ctx, s.fetcher, first)
	if err != nil {
		return nil, err
	}
	return lo.Map(tracks, func(t SpotifyTrack, _ int) models.ReleaseTrack { return t.toModel() }), nil
}

// TopTracks returns an artist's top tracks. The listing is not paginated.
func (s *SpotifyService) TopTracks(ctx context.Context, artistID string) ([]models.ReleaseTrack, error) {
	var resp struct {
		Tracks []SpotifyTrack `json:"tracks"`
	}
	u := s.endpoint("/artists/"+url.PathEscape(artistID)+"/top-tracks", url.Values{"market": {marketFromToken}})
	if err := s.fetcher.GetJSON(ctx, u, &resp); err != nil {
		return nil, err
	}
	return lo.Map(resp.Tracks, func(t SpotifyTrack, _ int) models.ReleaseTrack { return t.toModel() }), nil
}

// CreatePlaylist creates a playlist owned by ownerID.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, ownerID, name string, public bool) (models.Playlist, error) {
	body := map[string]any{
		"name":        name,
		"description": playlistDescription,
		"public":      public,
	}

	var created SpotifyPlaylist
	u := s.endpoint("/users/"+url.PathEscape(ownerID)+"/playlists", nil)
	if err := s.fetcher.SendJSON(ctx, http.MethodPost, u, body, &created); err != nil {
		return models.Playlist{}, err
	}
	if created.ID == "" {
		return models.Playlist{}, fmt.Errorf("%w: create playlist returned no id", shared.ErrAPIRequest)
	}

	return models.Playlist{
		ID:     created.ID,
		Name:   name,
		Public: public,
		URL:    models.PlaylistURL(created.ID),
	}, nil
}

// ReplaceItems clears a playlist and appends uris in batches of [BatchSize], in order.
// onBatch, when set, receives the running count after every batch.
func (s *SpotifyService) ReplaceItems(ctx context.Context, playlistID string, uris []string, onBatch func(done, total int)) error {
	u := s.endpoint("/playlists/"+url.PathEscape(playlistID)+"/tracks", nil)

	if err := s.fetcher.SendJSON(ctx, http.MethodPut, u, map[string][]string{"uris": {}}, nil); err != nil {
		return fmt.Errorf("failed to clear playlist: %w", err)
	}

	done := 0
	for _, batch := range lo.Chunk(uris, BatchSize) {
		if err := s.fetcher.SendJSON(ctx, http.MethodPost, u, map[string][]string{"uris": batch}, nil); err != nil {
			return fmt.Errorf("failed to add items %d-%d: %w", done+1, done+len(batch), err)
		}
		done += len(batch)
		s.logger.Debug("items added", "playlist", playlistID, "done", done, "total", len(uris))
		if onBatch != nil {
			onBatch(done, len(uris))
		}
	}

	return nil
}

// UploadCover sets a JPEG image of at most [MaxCoverBytes] as the playlist cover.
func (s *SpotifyService) UploadCover(ctx context.Context, playlistID string, jpeg []byte) error {
	if err := ValidateCover(jpeg); err != nil {
		return err
	}

	encoded := make([]byte, base64.StdEncoding.EncodedLen(len(jpeg)))
	base64.StdEncoding.Encode(encoded, jpeg)

	_, err := s.fetcher.Do(ctx, Request{
		Method:      http.MethodPut,
		URL:         s.endpoint("/playlists/"+url.PathEscape(playlistID)+"/images", nil),
		Body:        encoded,
		ContentType: "image/jpeg",
		Expect:      http.StatusAccepted,
	})
	if err != nil {
		return fmt.Errorf("cover upload failed: %w", err)
	}
	return nil
}

// ValidateCover checks that data is a JPEG within the upload limit.
func ValidateCover(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: cover image is empty", shared.ErrInvalidInput)
	}
	if len(data) > MaxCoverBytes {
		return fmt.Errorf("%w: cover image is %d bytes, limit is %d", shared.ErrInvalidInput, len(data), MaxCoverBytes)
	}
	if !bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}) {
		return fmt.Errorf("%w: cover image must be a JPEG", shared.ErrInvalidInput)
	}
	return nil
}

// package services talks to the Spotify Web API
package services

import (
	"context"

	"github.com/desertthunder/fanlist/internal/models"
)

// Catalog is the read side used to aggregate tracks.
type Catalog interface {
	// ArtistAlbums lists an artist's releases, singles only or albums and singles.
	ArtistAlbums(ctx context.Context, artistID string, singlesOnly bool) ([]models.Album, error)

	// AlbumTracks lists every track on an album.
	AlbumTracks(ctx context.Context, albumID string) ([]models.ReleaseTrack, error)

	// TopTracks lists an artist's top tracks.
	TopTracks(ctx context.Context, artistID string) ([]models.ReleaseTrack, error)
}

// PlaylistWriter creates playlists and fills them.
type PlaylistWriter interface {
	CreatePlaylist(ctx context.Context, ownerID, name string, public bool) (models.Playlist, error)
	ReplaceItems(ctx context.Context, playlistID string, uris []string, onBatch func(done, total int)) error
	UploadCover(ctx context.Context, playlistID string, jpeg []byte) error
}

// Service is everything a playlist build needs from the music service.
type Service interface {
	Catalog
	PlaylistWriter

	// Me returns the authenticated user.
	Me(ctx context.Context) (models.User, error)

	// FollowedArtists lists every followed artist in server order.
	FollowedArtists(ctx context.Context) ([]models.Artist, error)

	// Name returns the name of the service.
	Name() string
}

var _ Service = (*SpotifyService)(nil)

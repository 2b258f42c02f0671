// package models defines the data model for fanlist
package models

import (
	"slices"
	"time"
)

// Model is implemented by records kept in the local database.
type Model interface {
	ID() string
	CreatedAt() time.Time
	UpdatedAt() time.Time
	Validate() error
}

// Repository is the CRUD surface shared by the sqlite repositories.
type Repository[T Model] interface {
	Create(model T) error
	Get(id string) (T, error)
	Update(model T) error
	Delete(id string) error
	List(criteria map[string]any) ([]T, error)
}

// User is the authenticated Spotify account.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Country     string `json:"country"`
	ImageURL    string `json:"image_url,omitempty"`
}

// Name returns the display name, falling back to the account id.
func (u User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.ID
}

// Artist is a followed artist. Identity is ID.
type Artist struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url,omitempty"`
}

// Album is a release as listed for an artist. ReleaseDate is the raw value
// ("2001", "2001-05" or "2001-05-17") and ReleaseDatePrecision says which.
type Album struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	ReleaseDate          string `json:"release_date"`
	ReleaseDatePrecision string `json:"release_date_precision"`
}

// ReleaseTrack is a track as listed on a release or in an artist's top tracks.
type ReleaseTrack struct {
	ID          string   `json:"id"`
	URI         string   `json:"uri"`
	Name        string   `json:"name"`
	DiscNumber  int      `json:"disc_number"`
	TrackNumber int      `json:"track_number"`
	ArtistIDs   []string `json:"artist_ids"`
}

// CreditedTo reports whether artistID is among the track's credited artists.
func (t ReleaseTrack) CreditedTo(artistID string) bool {
	return slices.Contains(t.ArtistIDs, artistID)
}

// Track is one entry of an aggregation result.
//
// AlbumID is empty for tracks taken from an artist's top tracks; those carry
// TrackNumber 0 and the time of the build as AlbumDate.
type Track struct {
	ID          string    `json:"id"`
	URI         string    `json:"uri"`
	Name        string    `json:"name"`
	ArtistID    string    `json:"artist_id"`
	ArtistName  string    `json:"artist_name"`
	AlbumID     string    `json:"album_id,omitempty"`
	AlbumName   string    `json:"album_name,omitempty"`
	DiscNumber  int       `json:"disc_number"`
	TrackNumber int       `json:"track_number"`
	AlbumDate   time.Time `json:"album_date"`
}

// FromTopTracks reports whether the track came from the top-tracks fallback.
func (t Track) FromTopTracks() bool {
	return t.AlbumID == ""
}

// Playlist is a playlist created by a build.
type Playlist struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Public bool   `json:"public"`
	URL    string `json:"url"`
}

// PlaylistURL returns the web player link for a playlist id.
func PlaylistURL(id string) string {
	return "https://open.spotify.com/playlist/" + id
}

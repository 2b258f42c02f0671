// package formatter exports aggregated track lists to various formats (CSV, JSON, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/fanlist/internal/models"
	"github.com/desertthunder/fanlist/internal/shared"
	"github.com/samber/lo"
)

// Format names an export format.
type Format string

const (
	CSV      Format = "csv"
	JSON     Format = "json"
	Markdown Format = "md"
	Text     Format = "txt"
)

// Formats lists every supported format in the order they are written.
var Formats = []Format{CSV, JSON, Markdown, Text}

// Extension returns the file extension including the leading dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// ParseFormats parses a comma separated list such as "csv,md". Duplicates are dropped.
func ParseFormats(list string) ([]Format, error) {
	formats := []Format{}
	for _, part := range strings.Split(list, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		if name == "markdown" {
			name = string(Markdown)
		}
		if name == "text" {
			name = string(Text)
		}
		f := Format(name)
		if !lo.Contains(Formats, f) {
			return nil, fmt.Errorf("%w: unknown format %q (want csv, json, md or txt)", shared.ErrInvalidArgument, part)
		}
		formats = append(formats, f)
	}
	return lo.Uniq(formats), nil
}

// Export is a track list together with the settings that produced it.
type Export struct {
	Name          string         `json:"name"`
	Public        bool           `json:"public"`
	Chronological bool           `json:"chronological"`
	SinglesOnly   bool           `json:"singles_only"`
	ArtistCount   int            `json:"artist_count"`
	GeneratedAt   time.Time      `json:"generated_at"`
	Tracks        []models.Track `json:"tracks"`
}

// Render converts an export to the given format.
func Render(export *Export, format Format) ([]byte, error) {
	switch format {
	case CSV:
		return ExportToCSV(export.Tracks)
	case JSON:
		return shared.MarshalJSON(export, true)
	case Markdown:
		return ExportToMarkdown(export)
	case Text:
		return ExportToText(export)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}
}

// ExportToCSV converts tracks to CSV with columns: Position, ID, URI, Title, Artist, Album, Disc, Track, Release Date
func ExportToCSV(tracks []models.Track) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "ID", "URI", "Title", "Artist", "Album", "Disc", "Track", "Release Date"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, track := range tracks {
		record := []string{
			strconv.Itoa(i + 1),
			track.ID,
			track.URI,
			track.Name,
			track.ArtistName,
			albumLabel(track),
			strconv.Itoa(track.DiscNumber),
			strconv.Itoa(track.TrackNumber),
			releaseDate(track),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders a heading, the build settings and a numbered track list.
func ExportToMarkdown(export *Export) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", export.Name)
	fmt.Fprintf(&buf, "**Tracks**: %d\n", len(export.Tracks))
	fmt.Fprintf(&buf, "**Artists**: %d\n", export.ArtistCount)
	fmt.Fprintf(&buf, "**Visibility**: %s\n", shared.Visibility(export.Public))
	fmt.Fprintf(&buf, "**Order**: %s\n", orderLabel(export.Chronological))
	if export.SinglesOnly {
		buf.WriteString("**Releases**: singles only\n")
	}
	buf.WriteString("\n## Tracks\n\n")

	for i, track := range export.Tracks {
		fmt.Fprintf(&buf, "%d. %s - %s (%s)\n", i+1, track.ArtistName, track.Name, albumLabel(track))
	}

	return buf.Bytes(), nil
}

// ExportToText converts an export to plain text format
func ExportToText(export *Export) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", export.Name)
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(export.Tracks))

	for i, track := range export.Tracks {
		fmt.Fprintf(&buf, "%d. %s - %s\n", i+1, track.ArtistName, track.Name)
	}

	return buf.Bytes(), nil
}

// WriteExports writes one file per format and returns the paths written.
//
// base is the output path without extension; an extension on base is replaced.
// Defaults to "tracks" in the working directory.
func WriteExports(export *Export, formats []Format, base string) ([]string, error) {
	if base == "" {
		base = "tracks"
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))

	if dir := filepath.Dir(base); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	written := []string{}
	for _, format := range formats {
		data, err := Render(export, format)
		if err != nil {
			return written, fmt.Errorf("failed to generate %s: %w", format, err)
		}

		path := base + format.Extension()
		if err := os.WriteFile(path, data, 0644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", path, err)
		}
		written = append(written, path)
	}

	return written, nil
}

func albumLabel(track models.Track) string {
	if track.FromTopTracks() {
		return "top tracks"
	}
	return track.AlbumName
}

// releaseDate is blank for releases without a known date.
func releaseDate(track models.Track) string {
	if track.AlbumDate.IsZero() {
		return ""
	}
	return track.AlbumDate.Format(time.DateOnly)
}

func orderLabel(chronological bool) string {
	if chronological {
		return "chronological"
	}
	return "by artist"
}

package music

import (
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Track is a snapshot of one track as observed on the renderer.
//
// Empty strings mean the renderer did not supply the field. Duration is zero
// when unknown. ObservedAt is set when the snapshot is created and is never
// changed afterwards; elapsed-time rules are measured from it.
type Track struct {
	Title        string        `json:"title,omitempty"`
	Subtitle     string        `json:"subtitle,omitempty"`
	Artist       string        `json:"artist,omitempty"`
	Album        string        `json:"album,omitempty"`
	Duration     time.Duration `json:"duration,omitempty"`
	TrackURI     string        `json:"track_uri,omitempty"`     // CurrentTrackURI, forwarded to the library resolver
	TransportURI string        `json:"transport_uri,omitempty"` // AVTransportURI
	ObservedAt   time.Time     `json:"observed_at"`
}

// IsEmpty reports whether the snapshot carries nothing worth tracking.
// An artist on its own does not identify a track.
func (t *Track) IsEmpty() bool {
	return t == nil || (t.Title == "" && t.Album == "")
}

// HasDuration reports whether the renderer supplied a duration.
func (t *Track) HasDuration() bool {
	return t.Duration > 0
}

// Copy returns an independent copy of the snapshot.
func (t *Track) Copy() *Track {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// Key returns a stable identifier for the logical track, derived from the
// same fields SameTrack compares.
func (t *Track) Key() string {
	return fmt.Sprintf("%x", xxhash.Sum64String(fmt.Sprintf("%s\x00%s\x00%s\x00%s\x00%d",
		t.Title, t.Subtitle, t.Artist, t.Album, t.Duration)))
}

// String renders the track for log lines.
func (t *Track) String() string {
	if t == nil {
		return "<none>"
	}
	return fmt.Sprintf("%s - %s (%s)", t.Artist, t.Title, t.Album)
}

// SameTrack reports whether two snapshots denote the same logical track.
//
// Transport references are not compared: renderers rotate stream URLs for the
// same item.
func SameTrack(a, b *Track) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Album == b.Album &&
		a.Artist == b.Artist &&
		a.Duration == b.Duration &&
		a.Subtitle == b.Subtitle &&
		a.Title == b.Title
}

// FirstArtist returns the primary credit of a comma-joined artist list.
func FirstArtist(artist string) string {
	if artist == "" {
		return ""
	}
	first, _, _ := strings.Cut(artist, ",")
	return strings.TrimSpace(first)
}

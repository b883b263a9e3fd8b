package lastfm

import (
	"time"
)

// Track is the metadata sent with now-playing updates and scrobbles.
type Track struct {
	Artist      string // Required
	Track       string // Required: track title
	Album       string
	AlbumArtist string
	Duration    int // seconds
	TrackNumber int
	MBTrackID   string
}

// Scrobble is a Track with the time it started playing.
type Scrobble struct {
	Track     Track
	Timestamp time.Time
}

// Token is an unauthorised request token from auth.getToken.
type Token struct {
	Token string
}

// Session is the result of auth.getSession.
type Session struct {
	Key        string
	Username   string
	Subscriber bool
}

// IgnoredMessage explains why Last.fm dropped a submission. Code 0 means
// it was not ignored.
type IgnoredMessage struct {
	Code int
	Text string
}

// NowPlayingResponse is the echo from track.updateNowPlaying, with any
// corrections Last.fm applied.
type NowPlayingResponse struct {
	Artist      string
	Track       string
	Album       string
	AlbumArtist string
	Ignored     IgnoredMessage
}

// ScrobbleResult is the per-entry outcome of track.scrobble.
type ScrobbleResult struct {
	Artist    string
	Track     string
	Album     string
	Timestamp int64
	Ignored   IgnoredMessage
}

// ScrobbleResponse is the result of track.scrobble.
type ScrobbleResponse struct {
	Accepted  int
	Ignored   int
	Scrobbles []ScrobbleResult
}

package scrobbler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jfmyers9/upnp-scribbles/internal/music"
)

// ErrNoLibraryMatch is returned when a track cannot be found in the library.
var ErrNoLibraryMatch = errors.New("track not found in library")

// Library is the personal media server a play is mirrored to.
type Library interface {
	// Lookup returns the library id for a renderer snapshot.
	Lookup(ctx context.Context, track music.Track) (string, error)
	// Scrobble registers a play (submission) or a now-playing hint.
	Scrobble(ctx context.Context, id string, at time.Time, submission bool) error
}

// LibraryReporter mirrors the engine's reports to a Subsonic-compatible library.
type LibraryReporter struct {
	Library Library
}

func (r *LibraryReporter) NowPlaying(ctx context.Context, track music.Track) error {
	return r.report(ctx, track, time.Now(), false)
}

func (r *LibraryReporter) Scrobble(ctx context.Context, s Scrobble) error {
	return r.report(ctx, s.Track, s.Timestamp, true)
}

func (r *LibraryReporter) report(ctx context.Context, track music.Track, at time.Time, submission bool) error {
	id, err := r.Library.Lookup(ctx, track)
	if err != nil {
		return fmt.Errorf("library lookup for %s: %w", track.String(), err)
	}
	if id == "" {
		return fmt.Errorf("%s: %w", track.String(), ErrNoLibraryMatch)
	}

	if err := r.Library.Scrobble(ctx, id, at, submission); err != nil {
		return fmt.Errorf("library scrobble of %s: %w", id, err)
	}
	return nil
}

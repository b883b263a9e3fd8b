package scrobbler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/upnp-scribbles/internal/music"
)

// Reporter receives the engine's now-playing and played decisions.
type Reporter interface {
	NowPlaying(ctx context.Context, track music.Track) error
	Scrobble(ctx context.Context, s Scrobble) error
}

// Scrobble represents a single play to submit
type Scrobble struct {
	Artist    string
	Title     string
	Album     string
	Duration  time.Duration
	Timestamp time.Time

	// Track is the snapshot the play was decided on. Sinks that need the
	// renderer's URIs read them from here.
	Track music.Track
}

// NewScrobble builds a Scrobble from a snapshot, crediting only the first artist.
func NewScrobble(track music.Track, at time.Time) Scrobble {
	return Scrobble{
		Artist:    music.FirstArtist(track.Artist),
		Title:     track.Title,
		Album:     track.Album,
		Duration:  track.Duration,
		Timestamp: at,
		Track:     track,
	}
}

// MultiReporter fans reports out to a primary sink and any number of
// secondary ones, in that order. Only the primary's result is returned;
// secondary failures are logged.
//
// With a Timeout each sink runs under its own deadline, so a primary that
// retries until its context ends does not leave the secondaries with an
// expired one. Cancelling the parent still stops every sink.
type MultiReporter struct {
	Primary   Reporter
	Secondary []Reporter
	Timeout   time.Duration
	Logger    zerolog.Logger
}

func (m *MultiReporter) NowPlaying(ctx context.Context, track music.Track) error {
	err := m.nowPlaying(ctx, m.Primary, track)
	for _, r := range m.Secondary {
		if serr := m.nowPlaying(ctx, r, track); serr != nil {
			m.Logger.Warn().Err(serr).Str("track", track.String()).Msg("Secondary now playing failed")
		}
	}
	return err
}

func (m *MultiReporter) Scrobble(ctx context.Context, s Scrobble) error {
	err := m.scrobble(ctx, m.Primary, s)
	for _, r := range m.Secondary {
		if serr := m.scrobble(ctx, r, s); serr != nil {
			m.Logger.Warn().Err(serr).Str("track", s.Track.String()).Msg("Secondary scrobble failed")
		}
	}
	return err
}

func (m *MultiReporter) nowPlaying(parent context.Context, r Reporter, track music.Track) error {
	ctx, cancel := m.sinkContext(parent)
	defer cancel()
	return r.NowPlaying(ctx, track)
}

func (m *MultiReporter) scrobble(parent context.Context, r Reporter, s Scrobble) error {
	ctx, cancel := m.sinkContext(parent)
	defer cancel()
	return r.Scrobble(ctx, s)
}

// sinkContext gives one sink a fresh deadline. It keeps the parent's values
// and follows its cancellation, but not its deadline.
func (m *MultiReporter) sinkContext(parent context.Context) (context.Context, context.CancelFunc) {
	if m.Timeout <= 0 || errors.Is(parent.Err(), context.Canceled) {
		return parent, func() {}
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), m.Timeout)
	stop := context.AfterFunc(parent, func() {
		if errors.Is(parent.Err(), context.Canceled) {
			cancel()
		}
	})
	return ctx, func() {
		stop()
		cancel()
	}
}

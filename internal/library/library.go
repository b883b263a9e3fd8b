// Package library maps renderer snapshots onto songs in a Subsonic-compatible
// media server and mirrors plays to it.
package library

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/upnp-scribbles/internal/music"
	"github.com/jfmyers9/upnp-scribbles/pkg/subsonic"
)

// Client is the subset of *subsonic.Client used by Library.
type Client interface {
	Searcher
	Scrobble(ctx context.Context, id string, at time.Time, submission bool) error
}

// Library implements scrobbler.Library over a Subsonic server.
type Library struct {
	client   Client
	resolver *Resolver
	matcher  *Matcher
	logger   zerolog.Logger
}

// New creates a Library. baseURL and port must be the ones the client uses.
func New(client Client, baseURL string, port int, logger zerolog.Logger) *Library {
	return &Library{
		client:   client,
		resolver: NewResolver(baseURL, port),
		matcher:  NewMatcher(client),
		logger:   logger.With().Str("component", "library").Logger(),
	}
}

// Lookup resolves a snapshot to a library id: the track URI first, then the
// transport URI, then a metadata search. An empty id with a nil error means
// the library has no such song.
func (l *Library) Lookup(ctx context.Context, track music.Track) (string, error) {
	for _, uri := range []string{track.TrackURI, track.TransportURI} {
		if id, ok := l.resolver.ResolveTrackID(uri); ok {
			l.logger.Debug().Str("uri", uri).Str("id", id).Msg("Resolved library id from URI")
			return id, nil
		}
	}

	song, err := l.matcher.FindTrack(ctx, track.Title, track.Artist, track.Album)
	if errors.Is(err, subsonic.ErrNotFound) {
		l.logger.Debug().Str("track", track.String()).Msg("No library match")
		return "", nil
	}
	if err != nil {
		return "", err
	}

	l.logger.Debug().Str("track", track.String()).Str("id", song.ID).Msg("Matched library song")
	return song.ID, nil
}

// Scrobble forwards to the server's scrobble endpoint.
func (l *Library) Scrobble(ctx context.Context, id string, at time.Time, submission bool) error {
	return l.client.Scrobble(ctx, id, at, submission)
}

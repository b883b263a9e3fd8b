// Package discord mirrors the renderer's track to Discord Rich Presence.
package discord

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/jfmyers9/upnp-scribbles/internal/music"
	"github.com/jfmyers9/upnp-scribbles/internal/scrobbler"
)

// DefaultActivityName is shown as "Listening to <name>".
const DefaultActivityName = "Music"

type rpcClient interface {
	SetActivity(ctx context.Context, a *Activity) error
	Close() error
}

// Config selects the Discord application the presence is published under.
type Config struct {
	AppID        string
	ActivityName string
}

// Presence is a scrobbler.Reporter that shows the now-playing track as a
// Discord activity. It connects to the local client lazily and reconnects on
// the next track after any failure, so Discord not running is never fatal.
type Presence struct {
	cfg     Config
	logger  zerolog.Logger
	connect func(context.Context, string) (rpcClient, error)
	artwork *artworkLookup
	clock   clockwork.Clock

	mu     sync.Mutex
	client rpcClient
	last   lastActivity
}

var _ scrobbler.Reporter = (*Presence)(nil)

type lastActivity struct {
	key        string
	observedAt time.Time
}

func New(cfg Config, logger zerolog.Logger) *Presence {
	if cfg.ActivityName == "" {
		cfg.ActivityName = DefaultActivityName
	}
	return &Presence{
		cfg:    cfg,
		logger: logger.With().Str("component", "discord").Logger(),
		connect: func(ctx context.Context, appID string) (rpcClient, error) {
			return ipcConnect(ctx, appID)
		},
		artwork: newArtworkLookup(),
		clock:   clockwork.NewRealClock(),
	}
}

// NowPlaying publishes track. Reporting the same listen twice is a no-op,
// so a resume after pause does not reset the progress bar.
func (p *Presence) NowPlaying(ctx context.Context, track music.Track) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	cur := lastActivity{key: track.Key(), observedAt: track.ObservedAt}
	if p.client != nil && cur == p.last {
		return nil
	}

	if err := p.ensureConnected(ctx); err != nil {
		p.logger.Debug().Err(err).Msg("Discord not available")
		return err
	}

	activity := p.activity(ctx, track)
	if err := p.client.SetActivity(ctx, activity); err != nil {
		p.logger.Warn().Err(err).Msg("Failed to set activity")
		_ = p.closeClient()
		return err
	}
	p.last = cur
	return nil
}

// Scrobble does nothing: a finished play leaves nothing to show.
func (p *Presence) Scrobble(context.Context, scrobbler.Scrobble) error {
	return nil
}

// Close clears the activity and disconnects.
func (p *Presence) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.client.SetActivity(ctx, nil); err != nil {
		p.logger.Debug().Err(err).Msg("Failed to clear activity")
	}
	return p.closeClient()
}

func (p *Presence) activity(ctx context.Context, track music.Track) *Activity {
	artist := music.FirstArtist(track.Artist)

	start := track.ObservedAt
	if start.IsZero() {
		start = p.clock.Now()
	}
	startUnix := start.Unix()
	timestamps := &Timestamps{Start: &startUnix}
	if track.HasDuration() {
		endUnix := start.Add(track.Duration).Unix()
		timestamps.End = &endUnix
	}

	a := &Activity{
		Type:       activityListening,
		Name:       p.cfg.ActivityName,
		Details:    track.Title,
		Timestamps: timestamps,
		Assets: &Assets{
			LargeText:  track.Album,
			SmallImage: "upnp-scribbles",
			SmallText:  "upnp-scribbles",
		},
	}
	if artist != "" {
		a.State = "by " + artist
	}
	if p.artwork != nil && artist != "" {
		a.Assets.LargeImage = p.artwork.Lookup(ctx, artist, track.Album, track.Title)
	}
	return a
}

func (p *Presence) ensureConnected(ctx context.Context) error {
	if p.client != nil {
		return nil
	}
	client, err := p.connect(ctx, p.cfg.AppID)
	if err != nil {
		return err
	}
	p.logger.Info().Msg("Connected to Discord")
	p.client = client
	p.last = lastActivity{}
	return nil
}

func (p *Presence) closeClient() error {
	if p.client == nil {
		return nil
	}
	err := p.client.Close()
	p.client = nil
	p.last = lastActivity{}
	return err
}

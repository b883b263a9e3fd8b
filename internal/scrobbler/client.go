package scrobbler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/upnp-scribbles/internal/music"
	"github.com/jfmyers9/upnp-scribbles/pkg/lastfm"
)

// ErrIgnored is returned when Last.fm accepted the request but dropped the scrobble.
var ErrIgnored = errors.New("scrobble was ignored by Last.fm")

// Client wraps the Last.fm API client and reports plays to it. When a journal
// is attached, every play is recorded before it is submitted.
type Client struct {
	client  *lastfm.Client
	journal *Queue
	logger  zerolog.Logger
}

// New creates a new Last.fm client
func New(apiKey, apiSecret string) (*Client, error) {
	return NewWithConfig(lastfm.Config{
		APIKey:    apiKey,
		APISecret: apiSecret,
	})
}

// NewWithSession creates a new Last.fm client with an existing session key
func NewWithSession(apiKey, apiSecret, sessionKey string) (*Client, error) {
	return NewWithConfig(lastfm.Config{
		APIKey:     apiKey,
		APISecret:  apiSecret,
		SessionKey: sessionKey,
	})
}

// NewWithConfig creates a client from a full SDK configuration.
func NewWithConfig(cfg lastfm.Config) (*Client, error) {
	client, err := lastfm.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create lastfm client: %w", err)
	}
	return &Client{
		client: client,
		logger: zerolog.Nop(),
	}, nil
}

// WithJournal attaches a scrobble journal.
func (c *Client) WithJournal(q *Queue) *Client {
	c.journal = q
	return c
}

// WithLogger sets the logger used for journal bookkeeping failures.
func (c *Client) WithLogger(logger zerolog.Logger) *Client {
	c.logger = logger.With().Str("component", "lastfm").Logger()
	return c
}

// AuthenticateWithToken initiates the authentication flow
// Returns the auth URL that the user should visit
func (c *Client) AuthenticateWithToken(ctx context.Context) (token string, authURL string, err error) {
	tokenResp, err := c.client.Auth().GetToken(ctx)
	if err != nil {
		return "", "", fmt.Errorf("failed to get auth token: %w", err)
	}

	return tokenResp.Token, c.client.Auth().GetAuthURL(tokenResp.Token), nil
}

// GetSession completes the authentication flow after user authorization
// Returns the session key that should be stored for future use
func (c *Client) GetSession(ctx context.Context, token string) (sessionKey string, err error) {
	session, err := c.client.Auth().GetSession(ctx, token)
	if err != nil {
		return "", fmt.Errorf("failed to login with token: %w", err)
	}

	if session.Key == "" {
		return "", fmt.Errorf("received empty session key")
	}

	c.client.SetSessionKey(session.Key)

	return session.Key, nil
}

// NowPlaying implements Reporter.
func (c *Client) NowPlaying(ctx context.Context, track music.Track) error {
	_, err := c.client.Scrobble().UpdateNowPlaying(ctx, toLastFMTrack(
		music.FirstArtist(track.Artist), track.Title, track.Album, track.Duration))
	if err != nil {
		return fmt.Errorf("failed to update now playing: %w", err)
	}
	return nil
}

// Scrobble implements Reporter. The play is journalled first; a failed
// submission leaves the row pending with its error recorded.
func (c *Client) Scrobble(ctx context.Context, s Scrobble) error {
	var id int64
	if c.journal != nil {
		var err error
		if id, err = c.journal.Add(ctx, s); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to journal scrobble")
		}
	}

	err := c.ScrobbleTrack(ctx, s.Artist, s.Title, s.Album, s.Timestamp, s.Duration)

	if id > 0 {
		// The engine's deadline may be spent; bookkeeping gets its own.
		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		var jerr error
		if err != nil {
			jerr = c.journal.MarkError(bctx, id, err.Error())
		} else {
			jerr = c.journal.MarkScrobbled(bctx, id)
		}
		if jerr != nil {
			c.logger.Warn().Err(jerr).Int64("id", id).Msg("Failed to update journal")
		}
	}

	return err
}

// ScrobbleTrack submits one play.
func (c *Client) ScrobbleTrack(ctx context.Context, artist, track, album string, timestamp time.Time, duration time.Duration) error {
	resp, err := c.client.Scrobble().Scrobble(ctx, toLastFMTrack(artist, track, album, duration), timestamp)
	if err != nil {
		return fmt.Errorf("failed to scrobble track: %w", err)
	}

	if resp.Ignored > 0 {
		if len(resp.Scrobbles) > 0 && resp.Scrobbles[0].Ignored.Text != "" {
			return fmt.Errorf("%w: %s", ErrIgnored, resp.Scrobbles[0].Ignored.Text)
		}
		return ErrIgnored
	}

	return nil
}

// BatchResult reports which entries of a batch were accepted.
type BatchResult struct {
	Accepted []int          // indexes into the submitted slice
	Ignored  map[int]string // index -> Last.fm reason
}

// ScrobbleBatch submits up to lastfm.MaxBatchSize plays in one request.
func (c *Client) ScrobbleBatch(ctx context.Context, scrobbles []Scrobble) (*BatchResult, error) {
	if len(scrobbles) == 0 {
		return &BatchResult{}, nil
	}

	if len(scrobbles) > lastfm.MaxBatchSize {
		return nil, fmt.Errorf("cannot scrobble more than %d tracks at once (got %d)", lastfm.MaxBatchSize, len(scrobbles))
	}

	lfmScrobbles := make([]lastfm.Scrobble, len(scrobbles))
	for i, s := range scrobbles {
		lfmScrobbles[i] = lastfm.Scrobble{
			Track:     toLastFMTrack(s.Artist, s.Title, s.Album, s.Duration),
			Timestamp: s.Timestamp,
		}
	}

	resp, err := c.client.Scrobble().ScrobbleBatch(ctx, lfmScrobbles)
	if err != nil {
		return nil, fmt.Errorf("failed to scrobble batch: %w", err)
	}

	result := &BatchResult{Ignored: make(map[int]string)}
	for i := range scrobbles {
		if i < len(resp.Scrobbles) && resp.Scrobbles[i].Ignored.Code != 0 {
			reason := resp.Scrobbles[i].Ignored.Text
			if reason == "" {
				reason = ErrIgnored.Error()
			}
			result.Ignored[i] = reason
			continue
		}
		result.Accepted = append(result.Accepted, i)
	}

	return result, nil
}

// RetryPending resubmits journal rows that failed earlier, or that were left
// unfinished before staleBefore. It returns how many were accepted.
func (c *Client) RetryPending(ctx context.Context, staleBefore time.Time) (int, error) {
	if c.journal == nil {
		return 0, nil
	}

	if n, err := c.journal.CleanupOldFailed(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to drop expired scrobbles")
	} else if n > 0 {
		c.logger.Info().Int64("count", n).Msg("Dropped scrobbles older than Last.fm accepts")
	}

	pending, err := c.journal.GetRetryable(ctx, lastfm.MaxBatchSize, staleBefore)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	batch := make([]Scrobble, len(pending))
	for i, p := range pending {
		batch[i] = Scrobble{
			Artist:    p.Artist,
			Title:     p.TrackName,
			Album:     p.Album,
			Duration:  p.Duration,
			Timestamp: p.Timestamp,
		}
	}

	result, err := c.ScrobbleBatch(ctx, batch)
	if err != nil {
		for _, p := range pending {
			if merr := c.journal.MarkError(ctx, p.ID, err.Error()); merr != nil {
				c.logger.Warn().Err(merr).Int64("id", p.ID).Msg("Failed to update journal")
			}
		}
		return 0, err
	}

	ids := make([]int64, 0, len(result.Accepted))
	for _, i := range result.Accepted {
		ids = append(ids, pending[i].ID)
	}
	if err := c.journal.MarkScrobbledBatch(ctx, ids); err != nil {
		return 0, err
	}

	for i, reason := range result.Ignored {
		if merr := c.journal.MarkError(ctx, pending[i].ID, reason); merr != nil {
			c.logger.Warn().Err(merr).Int64("id", pending[i].ID).Msg("Failed to update journal")
		}
	}

	return len(ids), nil
}

// IsAuthenticated checks if the client has a valid session
func (c *Client) IsAuthenticated() bool {
	return c.client.GetSessionKey() != ""
}

// GetSessionKey returns the current session key
func (c *Client) GetSessionKey() string {
	return c.client.GetSessionKey()
}

func toLastFMTrack(artist, title, album string, duration time.Duration) lastfm.Track {
	t := lastfm.Track{
		Artist: artist,
		Track:  title,
		Album:  album,
	}
	if duration > 0 {
		t.Duration = int(duration.Seconds())
	}
	return t
}

package subsonic

import (
	"context"
	"net/url"
	"strconv"
	"time"
)

// Song is a child entry of type music.
type Song struct {
	ID       string `json:"id"`
	Parent   string `json:"parent,omitempty"`
	Title    string `json:"title"`
	Album    string `json:"album,omitempty"`
	Artist   string `json:"artist,omitempty"`
	AlbumID  string `json:"albumId,omitempty"`
	ArtistID string `json:"artistId,omitempty"`
	Track    int    `json:"track,omitempty"`
	Year     int    `json:"year,omitempty"`
	Genre    string `json:"genre,omitempty"`
	Duration int    `json:"duration,omitempty"` // seconds
	Suffix   string `json:"suffix,omitempty"`
	Path     string `json:"path,omitempty"`
}

// Length returns the song duration.
func (s *Song) Length() time.Duration {
	return time.Duration(s.Duration) * time.Second
}

// SearchOptions bounds a search3 request.
type SearchOptions struct {
	SongCount  int
	SongOffset int
}

// Ping checks connectivity and credentials.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.call(ctx, "ping", nil)
	return err
}

// GetSong fetches one song by id. A missing song matches ErrNotFound.
func (c *Client) GetSong(ctx context.Context, id string) (*Song, error) {
	resp, err := c.call(ctx, "getSong", url.Values{"id": {id}})
	if err != nil {
		return nil, err
	}
	if resp.Song == nil {
		return nil, ErrNotFound
	}
	return resp.Song, nil
}

// Search3 searches songs only; artists and albums are not requested.
func (c *Client) Search3(ctx context.Context, query string, opts SearchOptions) ([]Song, error) {
	params := url.Values{
		"query":       {query},
		"artistCount": {"0"},
		"albumCount":  {"0"},
	}
	if opts.SongCount > 0 {
		params.Set("songCount", strconv.Itoa(opts.SongCount))
	}
	if opts.SongOffset > 0 {
		params.Set("songOffset", strconv.Itoa(opts.SongOffset))
	}

	resp, err := c.call(ctx, "search3", params)
	if err != nil {
		return nil, err
	}
	if resp.SearchResult3 == nil {
		return nil, nil
	}
	return resp.SearchResult3.Songs, nil
}

// Scrobble registers a play (submission) or a now-playing notification for
// the song id.
func (c *Client) Scrobble(ctx context.Context, id string, at time.Time, submission bool) error {
	params := url.Values{
		"id":         {id},
		"submission": {strconv.FormatBool(submission)},
	}
	if !at.IsZero() {
		params.Set("time", strconv.FormatInt(at.UnixMilli(), 10))
	}
	_, err := c.call(ctx, "scrobble", params)
	return err
}

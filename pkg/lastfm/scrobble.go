package lastfm

import (
	"context"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ScrobbleService provides track.updateNowPlaying and track.scrobble.
type ScrobbleService struct {
	client *Client
}

// MaxBatchSize is the most scrobbles track.scrobble accepts per request.
const MaxBatchSize = 50

// UpdateNowPlaying tells Last.fm a track has started. It does not count as
// a play. Requires a session key.
//
//	_, err := client.Scrobble().UpdateNowPlaying(ctx, lastfm.Track{
//	    Artist: "Seamus Blake",
//	    Track:  "Bellwether",
//	})
func (s *ScrobbleService) UpdateNowPlaying(ctx context.Context, track Track) (*NowPlayingResponse, error) {
	if s.client.GetSessionKey() == "" {
		return nil, ErrNoSessionKey
	}

	params := make(map[string]string)
	addTrackParams(params, track, "")

	inner, err := s.client.call(ctx, "track.updateNowPlaying", params, true)
	if err != nil {
		return nil, err
	}

	resp, err := parseNowPlaying(inner)
	if err != nil {
		return nil, fmt.Errorf("lastfm: failed to parse now playing response: %w", err)
	}
	return resp, nil
}

// Scrobble submits a single play. Requires a session key.
func (s *ScrobbleService) Scrobble(ctx context.Context, track Track, timestamp time.Time) (*ScrobbleResponse, error) {
	return s.ScrobbleBatch(ctx, []Scrobble{{Track: track, Timestamp: timestamp}})
}

// ScrobbleBatch submits up to MaxBatchSize plays in one request; extra
// entries are not sent. Requires a session key.
func (s *ScrobbleService) ScrobbleBatch(ctx context.Context, scrobbles []Scrobble) (*ScrobbleResponse, error) {
	if s.client.GetSessionKey() == "" {
		return nil, ErrNoSessionKey
	}
	if len(scrobbles) == 0 {
		return &ScrobbleResponse{}, nil
	}
	if len(scrobbles) > MaxBatchSize {
		scrobbles = scrobbles[:MaxBatchSize]
	}

	params := make(map[string]string)
	for i, sc := range scrobbles {
		idx := "[" + strconv.Itoa(i) + "]"
		addTrackParams(params, sc.Track, idx)
		params["timestamp"+idx] = strconv.FormatInt(sc.Timestamp.Unix(), 10)
	}

	inner, err := s.client.call(ctx, "track.scrobble", params, true)
	if err != nil {
		return nil, err
	}

	resp, err := parseScrobbles(inner)
	if err != nil {
		return nil, fmt.Errorf("lastfm: failed to parse scrobble response: %w", err)
	}
	return resp, nil
}

// addTrackParams sets the track fields with an optional batch index suffix.
func addTrackParams(params map[string]string, t Track, idx string) {
	params["artist"+idx] = t.Artist
	params["track"+idx] = t.Track

	if t.Album != "" {
		params["album"+idx] = t.Album
	}
	if t.AlbumArtist != "" {
		params["albumArtist"+idx] = t.AlbumArtist
	}
	if t.Duration > 0 {
		params["duration"+idx] = strconv.Itoa(t.Duration)
	}
	if t.TrackNumber > 0 {
		params["trackNumber"+idx] = strconv.Itoa(t.TrackNumber)
	}
	if t.MBTrackID != "" {
		params["mbid"+idx] = t.MBTrackID
	}
}

type xmlIgnored struct {
	Code int    `xml:"code,attr"`
	Text string `xml:",chardata"`
}

func (x xmlIgnored) toIgnored() IgnoredMessage {
	return IgnoredMessage{Code: x.Code, Text: strings.TrimSpace(x.Text)}
}

type xmlNowPlaying struct {
	NowPlaying struct {
		Artist      string     `xml:"artist"`
		Track       string     `xml:"track"`
		Album       string     `xml:"album"`
		AlbumArtist string     `xml:"albumArtist"`
		Ignored     xmlIgnored `xml:"ignoredMessage"`
	} `xml:"nowplaying"`
}

type xmlScrobbles struct {
	Scrobbles struct {
		Accepted int `xml:"accepted,attr"`
		Ignored  int `xml:"ignored,attr"`
		Entries  []struct {
			Artist    string     `xml:"artist"`
			Track     string     `xml:"track"`
			Album     string     `xml:"album"`
			Timestamp int64      `xml:"timestamp"`
			Ignored   xmlIgnored `xml:"ignoredMessage"`
		} `xml:"scrobble"`
	} `xml:"scrobbles"`
}

// unwrap parses the inner XML of an <lfm> envelope into v.
func unwrap(inner []byte, v any) error {
	wrapped := make([]byte, 0, len(inner)+13)
	wrapped = append(wrapped, "<root>"...)
	wrapped = append(wrapped, inner...)
	wrapped = append(wrapped, "</root>"...)
	return xml.Unmarshal(wrapped, v)
}

func parseNowPlaying(inner []byte) (*NowPlayingResponse, error) {
	var x xmlNowPlaying
	if err := unwrap(inner, &x); err != nil {
		return nil, err
	}
	np := x.NowPlaying
	return &NowPlayingResponse{
		Artist:      np.Artist,
		Track:       np.Track,
		Album:       np.Album,
		AlbumArtist: np.AlbumArtist,
		Ignored:     np.Ignored.toIgnored(),
	}, nil
}

func parseScrobbles(inner []byte) (*ScrobbleResponse, error) {
	var x xmlScrobbles
	if err := unwrap(inner, &x); err != nil {
		return nil, err
	}

	resp := &ScrobbleResponse{
		Accepted:  x.Scrobbles.Accepted,
		Ignored:   x.Scrobbles.Ignored,
		Scrobbles: make([]ScrobbleResult, len(x.Scrobbles.Entries)),
	}
	for i, e := range x.Scrobbles.Entries {
		resp.Scrobbles[i] = ScrobbleResult{
			Artist:    e.Artist,
			Track:     e.Track,
			Album:     e.Album,
			Timestamp: e.Timestamp,
			Ignored:   e.Ignored.toIgnored(),
		}
	}
	return resp, nil
}

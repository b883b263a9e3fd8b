package library

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jfmyers9/upnp-scribbles/internal/music"
	"github.com/jfmyers9/upnp-scribbles/pkg/subsonic"
)

func TestResolver_ResolveTrackID(t *testing.T) {
	r := NewResolver("https://music.example.com", 0)

	tests := []struct {
		name   string
		uri    string
		wantID string
		wantOK bool
	}{
		{
			name:   "library stream url",
			uri:    "https://music.example.com/rest/stream?id=tr-42&u=listener",
			wantID: "tr-42",
			wantOK: true,
		},
		{
			name:   "explicit default port",
			uri:    "https://music.example.com:443/rest/stream?id=tr-42",
			wantID: "tr-42",
			wantOK: true,
		},
		{
			name: "library url without id",
			uri:  "https://music.example.com/rest/stream?u=listener",
		},
		{
			name: "library url with repeated id",
			uri:  "https://music.example.com/rest/stream?id=1&id=2",
		},
		{
			name: "other port",
			uri:  "https://music.example.com:8443/rest/stream?id=tr-42",
		},
		{
			name:   "upmpdcli proxy",
			uri:    "http://192.168.1.10:49149/subsonic/track/version/1/trackId/tr-7",
			wantID: "tr-7",
			wantOK: true,
		},
		{
			name: "unrelated path",
			uri:  "http://192.168.1.10:49149/tidal/track/version/1/trackId/tr-7",
		},
		{
			name: "proxy without id",
			uri:  "http://192.168.1.10:49149/subsonic/track/version/1/trackId/",
		},
		{
			name: "empty",
			uri:  "",
		},
		{
			name: "not a url",
			uri:  "x-rincon-queue:RINCON_000E58",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := r.ResolveTrackID(tt.uri)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestResolver_ConfiguredPort(t *testing.T) {
	r := NewResolver("http://navidrome.lan", 4533)

	id, ok := r.ResolveTrackID("http://navidrome.lan:4533/rest/stream?id=abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", id)

	_, ok = r.ResolveTrackID("http://navidrome.lan/rest/stream?id=abc")
	assert.False(t, ok)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Bellwether", "bellwether"},
		{"  So What (Remastered)", "so what"},
		{"Blue in Green - Remaster", "blue in green"},
		{"Don't Stop", "dont stop"},
		{"Tom_Sawyer -- Live", "tom sawyer live"},
		{"Sigur Rós", "sigur rós"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, normalize(tt.in))
		})
	}
}

type fakeSubsonic struct {
	pages      map[int][]subsonic.Song
	searchErr  error
	searches   []int
	scrobbles  []string
	submission []bool
}

func (f *fakeSubsonic) Search3(_ context.Context, _ string, opts subsonic.SearchOptions) ([]subsonic.Song, error) {
	f.searches = append(f.searches, opts.SongCount)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.pages[opts.SongCount], nil
}

func (f *fakeSubsonic) Scrobble(_ context.Context, id string, _ time.Time, submission bool) error {
	f.scrobbles = append(f.scrobbles, id)
	f.submission = append(f.submission, submission)
	return nil
}

func fill(n int, song subsonic.Song) []subsonic.Song {
	songs := make([]subsonic.Song, n)
	for i := range songs {
		songs[i] = subsonic.Song{ID: "filler", Title: "Something Else", Artist: "Nobody"}
	}
	songs[n-1] = song
	return songs
}

func TestMatcher_FindTrack(t *testing.T) {
	target := subsonic.Song{ID: "tr-1", Title: "Bellwether (Remastered)", Artist: "Seamus Blake Quintet", Album: "Bellwether"}

	tests := []struct {
		name         string
		pages        map[int][]subsonic.Song
		artist       string
		album        string
		wantID       string
		wantSearches []int
	}{
		{
			name:         "first page",
			pages:        map[int][]subsonic.Song{10: {target}},
			artist:       "Seamus Blake, Kenny Barron",
			album:        "Bellwether",
			wantID:       "tr-1",
			wantSearches: []int{10},
		},
		{
			name: "second page",
			pages: map[int][]subsonic.Song{
				10: fill(10, subsonic.Song{ID: "x", Title: "Bellwether", Artist: "Someone Else"}),
				50: fill(50, target),
			},
			artist:       "Seamus Blake",
			wantID:       "tr-1",
			wantSearches: []int{10, 50},
		},
		{
			name:         "album mismatch",
			pages:        map[int][]subsonic.Song{10: {target}},
			artist:       "Seamus Blake",
			album:        "Live at Smalls",
			wantSearches: []int{10},
		},
		{
			name:         "no results",
			pages:        map[int][]subsonic.Song{},
			artist:       "Seamus Blake",
			wantSearches: []int{10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeSubsonic{pages: tt.pages}
			m := NewMatcher(fake)

			song, err := m.FindTrack(context.Background(), "Bellwether", tt.artist, tt.album)
			assert.Equal(t, tt.wantSearches, fake.searches)
			if tt.wantID == "" {
				assert.ErrorIs(t, err, subsonic.ErrNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, song.ID)
		})
	}
}

func TestMatcher_SearchError(t *testing.T) {
	boom := errors.New("connection refused")
	m := NewMatcher(&fakeSubsonic{searchErr: boom})

	_, err := m.FindTrack(context.Background(), "Bellwether", "Seamus Blake", "")
	assert.ErrorIs(t, err, boom)
}

func TestLibrary_Lookup(t *testing.T) {
	fake := &fakeSubsonic{pages: map[int][]subsonic.Song{
		10: {{ID: "matched", Title: "Bellwether", Artist: "Seamus Blake"}},
	}}
	lib := New(fake, "https://music.example.com", 0, zerolog.Nop())
	ctx := context.Background()

	t.Run("track uri wins", func(t *testing.T) {
		id, err := lib.Lookup(ctx, music.Track{
			Title:        "Bellwether",
			TrackURI:     "https://music.example.com/rest/stream?id=from-track",
			TransportURI: "https://music.example.com/rest/stream?id=from-transport",
		})
		require.NoError(t, err)
		assert.Equal(t, "from-track", id)
	})

	t.Run("transport uri fallback", func(t *testing.T) {
		id, err := lib.Lookup(ctx, music.Track{
			Title:        "Bellwether",
			TrackURI:     "http://radio.example/stream.mp3",
			TransportURI: "http://10.0.0.2:49149/subsonic/track/version/1/trackId/from-proxy",
		})
		require.NoError(t, err)
		assert.Equal(t, "from-proxy", id)
	})

	t.Run("metadata search fallback", func(t *testing.T) {
		id, err := lib.Lookup(ctx, music.Track{Title: "Bellwether", Artist: "Seamus Blake"})
		require.NoError(t, err)
		assert.Equal(t, "matched", id)
	})

	t.Run("no match is not an error", func(t *testing.T) {
		id, err := lib.Lookup(ctx, music.Track{Title: "Unknown Song", Artist: "Nobody"})
		require.NoError(t, err)
		assert.Empty(t, id)
	})
}

func TestLibrary_Scrobble(t *testing.T) {
	fake := &fakeSubsonic{}
	lib := New(fake, "https://music.example.com", 0, zerolog.Nop())

	require.NoError(t, lib.Scrobble(context.Background(), "tr-1", time.Now(), false))
	require.NoError(t, lib.Scrobble(context.Background(), "tr-1", time.Now(), true))

	assert.Equal(t, []string{"tr-1", "tr-1"}, fake.scrobbles)
	assert.Equal(t, []bool{false, true}, fake.submission)
}

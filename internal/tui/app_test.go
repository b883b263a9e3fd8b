package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jfmyers9/upnp-scribbles/internal/daemon"
	"github.com/jfmyers9/upnp-scribbles/internal/music"
	"github.com/jfmyers9/upnp-scribbles/internal/scrobbler"
)

var t0 = time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)

func playing(elapsed time.Duration) *daemon.Status {
	return &daemon.Status{
		Connection: daemon.ConnSubscribed,
		Device:     "Living Room",
		State:      music.StatePlaying,
		Track: &music.Track{
			Title:      "Bellwether",
			Artist:     "Seamus Blake",
			Album:      "Bellwether",
			Duration:   310 * time.Second,
			ObservedAt: t0,
		},
		UpdatedAt: t0.Add(elapsed),
	}
}

func TestRenderNowPlaying(t *testing.T) {
	assert.Contains(t, renderNowPlaying(nil), "Daemon not running")

	disconnected := &daemon.Status{Connection: daemon.ConnConnecting, Device: "Kitchen"}
	assert.Contains(t, renderNowPlaying(disconnected), "Renderer connecting: Kitchen")

	out := renderNowPlaying(playing(0))
	assert.Contains(t, out, "Bellwether")
	assert.Contains(t, out, "Seamus Blake")
	assert.Contains(t, out, "▶")

	paused := playing(0)
	paused.State = music.StatePaused
	assert.Contains(t, renderNowPlaying(paused), "⏸")
}

func TestPosition(t *testing.T) {
	s := playing(30 * time.Second)
	assert.Equal(t, 90*time.Second, position(s, t0.Add(90*time.Second)))

	s.State = music.StatePaused
	assert.Equal(t, 30*time.Second, position(s, t0.Add(90*time.Second)), "frozen while paused")

	s.State = music.StatePlaying
	assert.Equal(t, 310*time.Second, position(s, t0.Add(time.Hour)), "capped at duration")
}

func TestRenderScrobble(t *testing.T) {
	rules := scrobbler.DefaultRules()

	s := playing(0)
	out := renderScrobble(s, rules, t0.Add(155*time.Second), 2)
	assert.Contains(t, out, "100%")
	assert.Contains(t, out, "Pending: 2")

	out = renderScrobble(s, rules, t0.Add(31*time.Second), 0)
	assert.Contains(t, out, "20%")

	s.LastScrobbled = s.Track.Copy()
	assert.Contains(t, renderScrobble(s, rules, t0, 0), "Scrobbled")

	assert.Contains(t, renderScrobble(nil, rules, t0, 0), "No track")
}

func TestRenderRecent(t *testing.T) {
	assert.Contains(t, renderRecent(nil), "No recent tracks")

	out := renderRecent([]scrobbler.QueuedScrobble{
		{TrackName: "Bellwether", Scrobbled: true},
		{TrackName: "A Title That Is Far Too Long To Fit", Scrobbled: false},
	})
	lines := strings.Split(out, "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "✓")
	assert.Contains(t, lines[1], "✗")
	assert.Contains(t, lines[1], "A Title That Is F...")
}

func TestBuildProgressBar(t *testing.T) {
	assert.Equal(t, "----", buildProgressBar(time.Second, 0, 4))
	assert.Equal(t, "[green]██[-][gray]░░[-]", buildProgressBar(5*time.Second, 10*time.Second, 4))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "05:10", formatDuration(310*time.Second))
	assert.Equal(t, "1:01:01", formatDuration(time.Hour+61*time.Second))
	assert.Equal(t, "00:00", formatDuration(-time.Second))
}

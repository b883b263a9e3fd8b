package daemon

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jfmyers9/upnp-scribbles/internal/music"
	"github.com/jfmyers9/upnp-scribbles/internal/renderer"
	"github.com/jfmyers9/upnp-scribbles/internal/scrobbler"
)

// fakeReporter records reporter calls in the order they were made.
type fakeReporter struct {
	calls       []string
	scrobbles   []scrobbler.Scrobble
	scrobbleErr error
	nowErr      error
	deadlines   []bool
}

func (f *fakeReporter) NowPlaying(ctx context.Context, track music.Track) error {
	_, ok := ctx.Deadline()
	f.deadlines = append(f.deadlines, ok)
	f.calls = append(f.calls, "now:"+track.Title)
	return f.nowErr
}

func (f *fakeReporter) Scrobble(ctx context.Context, s scrobbler.Scrobble) error {
	_, ok := ctx.Deadline()
	f.deadlines = append(f.deadlines, ok)
	f.calls = append(f.calls, "scrobble:"+s.Title)
	if f.scrobbleErr == nil {
		f.scrobbles = append(f.scrobbles, s)
	}
	return f.scrobbleErr
}

func (f *fakeReporter) count(prefix string) int {
	n := 0
	for _, c := range f.calls {
		if len(c) > len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

type engineHarness struct {
	engine   *Engine
	reporter *fakeReporter
	clock    *clockwork.FakeClock
	diags    []Diagnostic
}

func newHarness(t *testing.T, mutate ...func(*EngineConfig)) *engineHarness {
	t.Helper()

	cfg := DefaultEngineConfig()
	for _, m := range mutate {
		m(&cfg)
	}

	h := &engineHarness{
		reporter: &fakeReporter{},
		clock:    clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)),
	}
	h.engine = NewEngine(cfg, h.reporter, h.clock, zerolog.Nop())
	h.engine.OnDiagnostic(func(d Diagnostic) { h.diags = append(h.diags, d) })
	return h
}

func (h *engineHarness) ingest(vars ...renderer.Variable) {
	h.engine.Ingest(context.Background(), renderer.Batch(vars))
}

func (h *engineHarness) kinds() []DiagnosticKind {
	out := make([]DiagnosticKind, len(h.diags))
	for i, d := range h.diags {
		out[i] = d.Kind
	}
	return out
}

func stateVar(raw string) renderer.Variable {
	return renderer.Variable{Name: renderer.VarTransportState, Value: raw}
}

func metaVar(title, artist, album, duration string) renderer.Variable {
	res := ""
	if duration != "" {
		res = fmt.Sprintf(`<res duration="%s">http://nas/stream</res>`, duration)
	}
	return renderer.Variable{
		Name: renderer.VarCurrentTrackMetaData,
		Value: fmt.Sprintf(`<DIDL-Lite xmlns="urn:schemas-upnp-org:metadata-1-0/DIDL-Lite/"
 xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:upnp="urn:schemas-upnp-org:metadata-1-0/upnp/">
<item id="1" parentID="0" restricted="1"><dc:title>%s</dc:title><upnp:artist>%s</upnp:artist><upnp:album>%s</upnp:album>%s</item>
</DIDL-Lite>`, title, artist, album, res),
	}
}

func TestEngine_TrackChangeScrobblesPrevious(t *testing.T) {
	h := newHarness(t)

	h.ingest(metaVar("A", "Seamus Blake, Ari Hoenig", "Bellwether", "0:03:20"))
	h.ingest(stateVar("PLAYING"))
	h.clock.Advance(130 * time.Second)
	h.ingest(metaVar("B", "Seamus Blake", "Bellwether", "0:04:00"))

	// PLAYING repeats now playing for A; A is scrobbled before B is announced.
	assert.Equal(t, []string{"now:A", "now:A", "scrobble:A", "now:B"}, h.reporter.calls)
	require.Len(t, h.reporter.scrobbles, 1)
	assert.Equal(t, "Seamus Blake", h.reporter.scrobbles[0].Artist)
	assert.Equal(t, h.clock.Now(), h.reporter.scrobbles[0].Timestamp)

	snap := h.engine.Snapshot()
	assert.Equal(t, "B", snap.Current.Title)
	assert.Nil(t, snap.Armed)
	assert.Equal(t, "A", snap.LastScrobbled.Title)
}

func TestEngine_EligibilityThresholds(t *testing.T) {
	tests := []struct {
		name     string
		duration string
		elapsed  time.Duration
		want     bool
	}{
		{name: "below half and threshold", duration: "0:03:20", elapsed: 90 * time.Second, want: false},
		{name: "crossed half duration", duration: "0:03:20", elapsed: 101 * time.Second, want: true},
		{name: "crossed fixed threshold", duration: "1:00:00", elapsed: 241 * time.Second, want: true},
		{name: "long track under threshold", duration: "1:00:00", elapsed: 239 * time.Second, want: false},
		{name: "unknown duration uses assumed length", elapsed: 61 * time.Second, want: true},
		{name: "unknown duration too short", elapsed: 59 * time.Second, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)

			h.ingest(stateVar("PLAYING"), metaVar("A", "X", "Y", tt.duration))
			h.clock.Advance(tt.elapsed)
			h.ingest(stateVar("STOPPED"))

			assert.Equal(t, tt.want, h.reporter.count("scrobble:") == 1)
			assert.Nil(t, h.engine.Snapshot().Current)
		})
	}
}

func TestEngine_StoppedAlwaysEvaluatesAndClears(t *testing.T) {
	h := newHarness(t)

	h.ingest(stateVar("PLAYING"), metaVar("A", "X", "Y", "0:03:20"))
	h.clock.Advance(5 * time.Second)
	h.ingest(stateVar("STOPPED"))

	assert.Equal(t, 0, h.reporter.count("scrobble:"))
	assert.Contains(t, h.kinds(), DiagNotEligible)
	assert.Nil(t, h.engine.Snapshot().Current)
	assert.Equal(t, music.StateStopped, h.engine.Snapshot().State)

	// A second stop has nothing left to evaluate.
	h.diags = nil
	h.ingest(stateVar("STOPPED"))
	assert.Empty(t, h.diags)
}

func TestEngine_StoppedRetainedBySilenceDoesNotClear(t *testing.T) {
	h := newHarness(t)

	h.ingest(stateVar("STOPPED"))
	h.ingest(metaVar("A", "X", "Y", "0:03:20"))
	h.clock.Advance(150 * time.Second)
	h.ingest(renderer.Variable{Name: renderer.VarCurrentPlayMode, Value: "NORMAL"})

	assert.Equal(t, []string{"now:A"}, h.reporter.calls)
	assert.Equal(t, "A", h.engine.Snapshot().Current.Title)
}

func TestEngine_DebounceRepeatedScrobble(t *testing.T) {
	h := newHarness(t)

	// A four second track is eligible after two seconds.
	h.ingest(stateVar("PLAYING"), metaVar("A", "X", "Y", "0:00:04"))
	h.clock.Advance(3 * time.Second)
	h.ingest(stateVar("STOPPED"))

	h.ingest(stateVar("PLAYING"), metaVar("A", "X", "Y", "0:00:04"))
	h.clock.Advance(3 * time.Second)
	h.ingest(stateVar("STOPPED"))

	assert.Equal(t, 1, h.reporter.count("scrobble:"))
	assert.Contains(t, h.kinds(), DiagDebounced)

	// Outside the repeat interval the same track counts again.
	h.clock.Advance(10 * time.Second)
	h.ingest(stateVar("PLAYING"), metaVar("A", "X", "Y", "0:00:04"))
	h.clock.Advance(3 * time.Second)
	h.ingest(stateVar("STOPPED"))

	assert.Equal(t, 2, h.reporter.count("scrobble:"))
}

func TestEngine_ArmedWhilePausedEvaluatedOnPlay(t *testing.T) {
	h := newHarness(t)

	h.ingest(stateVar("PLAYING"), metaVar("A", "X", "Y", "0:03:20"))
	h.clock.Advance(150 * time.Second)
	h.ingest(stateVar("PAUSED_PLAYBACK"))
	h.ingest(metaVar("B", "X", "Y", "0:03:00"))

	snap := h.engine.Snapshot()
	require.NotNil(t, snap.Armed)
	assert.Equal(t, "A", snap.Armed.Title)
	assert.Equal(t, 0, h.reporter.count("scrobble:"))

	// Time spent paused after the change does not count for A, but A already
	// qualified when it was superseded.
	h.clock.Advance(time.Hour)
	h.ingest(stateVar("PLAYING"))

	assert.Equal(t, []string{"now:A", "now:B", "scrobble:A", "now:B"}, h.reporter.calls)
	assert.Nil(t, h.engine.Snapshot().Armed)

	// Never evaluated twice.
	h.ingest(stateVar("PAUSED_PLAYBACK"))
	h.ingest(stateVar("PLAYING"))
	assert.Equal(t, 1, h.reporter.count("scrobble:"))
}

func TestEngine_ArmedElapsedStopsAtSupersede(t *testing.T) {
	h := newHarness(t)

	h.ingest(stateVar("TRANSITIONING"), metaVar("A", "X", "Y", "0:03:20"))
	h.clock.Advance(30 * time.Second)
	h.ingest(metaVar("B", "X", "Y", "0:03:20"))
	h.clock.Advance(10 * time.Minute)
	h.ingest(stateVar("PLAYING"))

	assert.Equal(t, 0, h.reporter.count("scrobble:"))
	var missed *Diagnostic
	for i := range h.diags {
		if h.diags[i].Kind == DiagNotEligible {
			missed = &h.diags[i]
		}
	}
	require.NotNil(t, missed)
	assert.Equal(t, "A", missed.Track.Title)
	assert.Equal(t, 30*time.Second, missed.Elapsed)
}

func TestEngine_NowPlaying(t *testing.T) {
	t.Run("re-emitted when playback starts after metadata", func(t *testing.T) {
		h := newHarness(t)

		h.ingest(stateVar("STOPPED"), metaVar("A", "X", "Y", "0:03:20"))
		h.ingest(stateVar("PAUSED_PLAYBACK"))
		h.ingest(metaVar("A", "X", "Y", "0:03:20"))
		h.ingest(stateVar("TRANSITIONING"))
		h.ingest(metaVar("A", "X", "Y", "0:03:20"))
		h.ingest(stateVar("PLAYING"))

		// The STOPPED batch cleared A; the second A batch installs it again.
		assert.Equal(t, []string{"now:A", "now:A", "now:A"}, h.reporter.calls)
	})

	t.Run("not repeated while already playing", func(t *testing.T) {
		h := newHarness(t)

		h.ingest(stateVar("PLAYING"), metaVar("A", "X", "Y", "0:03:20"))
		h.ingest(stateVar("PLAYING"))
		h.ingest(metaVar("A", "X", "Y", "0:03:20"))

		assert.Equal(t, []string{"now:A"}, h.reporter.calls)
	})

	t.Run("emitted on metadata change regardless of state", func(t *testing.T) {
		h := newHarness(t)

		h.ingest(stateVar("PAUSED_PLAYBACK"))
		h.ingest(metaVar("A", "X", "Y", ""))

		assert.Equal(t, []string{"now:A"}, h.reporter.calls)
	})

	t.Run("disabled", func(t *testing.T) {
		h := newHarness(t, func(c *EngineConfig) { c.NowPlayingEnabled = false })

		h.ingest(stateVar("PLAYING"), metaVar("A", "X", "Y", "0:00:04"))
		h.clock.Advance(3 * time.Second)
		h.ingest(stateVar("STOPPED"))

		assert.Equal(t, []string{"scrobble:A"}, h.reporter.calls)
	})
}

func TestEngine_EmptyMetadataNeverPromoted(t *testing.T) {
	h := newHarness(t)

	h.ingest(stateVar("PLAYING"), metaVar("", "A, B", "", "0:03:00"))

	assert.Nil(t, h.engine.Snapshot().Current)
	assert.Empty(t, h.reporter.calls)
}

func TestEngine_DecodeFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)

	h.ingest(stateVar("PLAYING"), renderer.Variable{Name: renderer.VarCurrentTrackMetaData, Value: "<DIDL-Lite><item>"})

	assert.Equal(t, []DiagnosticKind{DiagDecodeFailed}, h.kinds())
	assert.ErrorIs(t, h.diags[0].Err, renderer.ErrMalformedMetadata)
	assert.Equal(t, music.StatePlaying, h.engine.Snapshot().State)
}

func TestEngine_ReporterFailureLeavesStateUntouched(t *testing.T) {
	h := newHarness(t)
	h.reporter.scrobbleErr = errors.New("network down")
	h.reporter.nowErr = errors.New("network down")

	h.ingest(stateVar("PLAYING"), metaVar("A", "X", "Y", "0:00:04"))
	h.clock.Advance(3 * time.Second)
	h.ingest(stateVar("STOPPED"))

	assert.Nil(t, h.engine.Snapshot().LastScrobbled)
	assert.Contains(t, h.kinds(), DiagScrobbleFailed)
	assert.Contains(t, h.kinds(), DiagNowPlayingFailed)

	// The next qualifying listen of the same track is not debounced.
	h.reporter.scrobbleErr = nil
	h.ingest(stateVar("PLAYING"), metaVar("A", "X", "Y", "0:00:04"))
	h.clock.Advance(3 * time.Second)
	h.ingest(stateVar("STOPPED"))

	assert.Len(t, h.reporter.scrobbles, 1)
}

func TestEngine_ReporterCallsAreBounded(t *testing.T) {
	h := newHarness(t)

	h.ingest(stateVar("PLAYING"), metaVar("A", "X", "Y", "0:00:04"))
	h.clock.Advance(3 * time.Second)
	h.ingest(stateVar("STOPPED"))

	require.Len(t, h.reporter.deadlines, 2)
	for _, ok := range h.reporter.deadlines {
		assert.True(t, ok, "reporter call without deadline")
	}
}

func TestEngine_Reset(t *testing.T) {
	h := newHarness(t)

	h.ingest(stateVar("PLAYING"), metaVar("A", "X", "Y", "0:00:04"))
	h.clock.Advance(3 * time.Second)
	h.ingest(metaVar("B", "X", "Y", "0:00:04"))
	require.NotNil(t, h.engine.Snapshot().LastScrobbled)

	h.engine.Reset()

	assert.Equal(t, Snapshot{State: music.StateUnknown}, h.engine.Snapshot())
}

func TestEngine_HandleKeepsObservedAt(t *testing.T) {
	h := newHarness(t)
	observed := h.clock.Now().Add(-time.Minute)

	h.engine.Handle(context.Background(), renderer.Event{
		State:    music.StatePlaying,
		HasState: true,
		Track:    &music.Track{Title: "A", Album: "Y", ObservedAt: observed},
	})

	assert.Equal(t, observed, h.engine.Snapshot().Current.ObservedAt)
}

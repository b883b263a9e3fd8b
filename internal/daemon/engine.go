package daemon

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/jfmyers9/upnp-scribbles/internal/music"
	"github.com/jfmyers9/upnp-scribbles/internal/renderer"
	"github.com/jfmyers9/upnp-scribbles/internal/scrobbler"
)

// Engine defaults
const (
	DefaultMinimumRepeatInterval = 10 * time.Second
	DefaultReportTimeout         = 10 * time.Second
)

// EngineConfig holds the playback tracking rules.
type EngineConfig struct {
	MinimumRepeatInterval time.Duration   // Same-track scrobbles closer than this are dropped
	NowPlayingEnabled     bool            // Report now playing on track changes
	ReportTimeout         time.Duration   // Upper bound for each reporter call
	Rules                 scrobbler.Rules // Elapsed-time eligibility

	DumpEventKeys      bool // Log the variable names of every batch
	DumpEventKeyValues bool // Log names and raw values of every batch
	DumpMetadata       bool // Log every decoded track
}

// DefaultEngineConfig returns the stock tracking rules.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MinimumRepeatInterval: DefaultMinimumRepeatInterval,
		NowPlayingEnabled:     true,
		ReportTimeout:         DefaultReportTimeout,
		Rules:                 scrobbler.DefaultRules(),
	}
}

// DiagnosticKind names an engine decision point.
type DiagnosticKind string

const (
	DiagDecodeFailed     DiagnosticKind = "decode_failed"
	DiagTrackChanged     DiagnosticKind = "track_changed"
	DiagNowPlaying       DiagnosticKind = "now_playing"
	DiagNowPlayingFailed DiagnosticKind = "now_playing_failed"
	DiagDebounced        DiagnosticKind = "debounced"
	DiagNotEligible      DiagnosticKind = "not_eligible"
	DiagScrobbled        DiagnosticKind = "scrobbled"
	DiagScrobbleFailed   DiagnosticKind = "scrobble_failed"
)

// Diagnostic describes one decision the engine made. Track is a copy.
type Diagnostic struct {
	Kind    DiagnosticKind
	Track   *music.Track
	Elapsed time.Duration
	Err     error
}

// Snapshot is a copy of the engine state.
type Snapshot struct {
	State         music.PlayState `json:"state"`
	Current       *music.Track    `json:"current,omitempty"`
	Armed         *music.Track    `json:"armed,omitempty"`
	ArmedAt       time.Time       `json:"armed_at,omitempty"`
	LastScrobbled *music.Track    `json:"last_scrobbled,omitempty"`
}

// Engine turns decoded renderer events into now-playing and scrobble
// reports for one renderer.
//
// Engine is not safe for concurrent use. All calls must come from the
// goroutine that consumes the renderer's events.
type Engine struct {
	cfg      EngineConfig
	reporter scrobbler.Reporter
	clock    clockwork.Clock
	logger   zerolog.Logger
	observer func(Diagnostic)

	state         music.PlayState
	current       *music.Track
	armed         *music.Track // superseded track awaiting evaluation
	armedAt       time.Time
	lastScrobbled *music.Track
}

// NewEngine creates an engine reporting to reporter. A nil clock means the
// real clock.
func NewEngine(cfg EngineConfig, reporter scrobbler.Reporter, clock clockwork.Clock, logger zerolog.Logger) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.ReportTimeout <= 0 {
		cfg.ReportTimeout = DefaultReportTimeout
	}
	return &Engine{
		cfg:      cfg,
		reporter: reporter,
		clock:    clock,
		logger:   logger.With().Str("component", "engine").Logger(),
	}
}

// OnDiagnostic registers fn to receive every diagnostic after it is logged.
func (e *Engine) OnDiagnostic(fn func(Diagnostic)) {
	e.observer = fn
}

// Ingest decodes one notification batch and handles it.
func (e *Engine) Ingest(ctx context.Context, batch renderer.Batch) {
	if e.cfg.DumpEventKeyValues {
		for _, v := range batch {
			e.logger.Debug().Str("name", v.Name).Str("value", v.Value).Msg("Event variable")
		}
	} else if e.cfg.DumpEventKeys {
		e.logger.Debug().Strs("names", batch.Names()).Msg("Event batch")
	}

	ev := renderer.Decode(batch, e.clock.Now())
	if e.cfg.DumpMetadata && ev.Track != nil {
		e.logger.Debug().Interface("track", ev.Track).Msg("Decoded metadata")
	}
	e.Handle(ctx, ev)
}

// Handle applies one decoded event.
func (e *Engine) Handle(ctx context.Context, ev renderer.Event) {
	for _, err := range ev.Errors {
		e.emit(Diagnostic{Kind: DiagDecodeFailed, Err: err})
	}

	before := e.state
	if ev.HasState {
		e.state = ev.State
	}

	// Stopped only ends a listen when this notification said so.
	evaluate := e.state == music.StatePlaying || (e.state == music.StateStopped && ev.HasState)

	changed := false
	if !ev.Track.IsEmpty() && !music.SameTrack(ev.Track, e.current) {
		e.supersede(ctx, evaluate)

		e.current = ev.Track.Copy()
		if e.current.ObservedAt.IsZero() {
			e.current.ObservedAt = e.clock.Now()
		}
		changed = true

		e.emit(Diagnostic{Kind: DiagTrackChanged, Track: e.current.Copy()})
		e.nowPlaying(ctx)
	}

	switch e.state {
	case music.StatePlaying:
		e.evaluateArmed(ctx)
		if !changed && ev.HasState && before != music.StatePlaying && e.current != nil {
			e.nowPlaying(ctx)
		}
	case music.StateStopped:
		if !ev.HasState {
			break
		}
		e.evaluateArmed(ctx)
		if e.current != nil {
			e.maybeScrobble(ctx, e.current, e.clock.Now())
			e.current = nil
		}
	}
}

// supersede arms the current track ahead of a new one. When evaluate is set
// the armed track is offered for scrobbling right away, so its report
// precedes the new track's now playing.
func (e *Engine) supersede(ctx context.Context, evaluate bool) {
	if e.current == nil {
		return
	}

	// A track still armed from an earlier change is offered before it is
	// replaced.
	e.evaluateArmed(ctx)

	e.armed = e.current
	e.armedAt = e.clock.Now()
	e.current = nil

	if evaluate {
		e.evaluateArmed(ctx)
	}
}

func (e *Engine) evaluateArmed(ctx context.Context) {
	if e.armed == nil {
		return
	}
	track, at := e.armed, e.armedAt
	e.armed, e.armedAt = nil, time.Time{}
	e.maybeScrobble(ctx, track, at)
}

// maybeScrobble evaluates track with elapsed time measured up to endedAt.
func (e *Engine) maybeScrobble(ctx context.Context, track *music.Track, endedAt time.Time) {
	if e.lastScrobbled != nil && music.SameTrack(track, e.lastScrobbled) &&
		track.ObservedAt.Sub(e.lastScrobbled.ObservedAt) < e.cfg.MinimumRepeatInterval {
		e.emit(Diagnostic{Kind: DiagDebounced, Track: track.Copy()})
		return
	}

	elapsed := endedAt.Sub(track.ObservedAt)
	if !e.cfg.Rules.Eligible(track.Duration, elapsed) {
		e.emit(Diagnostic{Kind: DiagNotEligible, Track: track.Copy(), Elapsed: elapsed})
		return
	}

	rctx, cancel := context.WithTimeout(ctx, e.cfg.ReportTimeout)
	defer cancel()

	if err := e.reporter.Scrobble(rctx, scrobbler.NewScrobble(*track, e.clock.Now())); err != nil {
		e.emit(Diagnostic{Kind: DiagScrobbleFailed, Track: track.Copy(), Elapsed: elapsed, Err: err})
		return
	}

	e.lastScrobbled = track.Copy()
	e.emit(Diagnostic{Kind: DiagScrobbled, Track: track.Copy(), Elapsed: elapsed})
}

func (e *Engine) nowPlaying(ctx context.Context) {
	if !e.cfg.NowPlayingEnabled || e.current == nil {
		return
	}

	rctx, cancel := context.WithTimeout(ctx, e.cfg.ReportTimeout)
	defer cancel()

	if err := e.reporter.NowPlaying(rctx, *e.current); err != nil {
		e.emit(Diagnostic{Kind: DiagNowPlayingFailed, Track: e.current.Copy(), Err: err})
		return
	}
	e.emit(Diagnostic{Kind: DiagNowPlaying, Track: e.current.Copy()})
}

// Reset forgets everything, as after a transport gap.
func (e *Engine) Reset() {
	e.state = music.StateUnknown
	e.current = nil
	e.armed = nil
	e.armedAt = time.Time{}
	e.lastScrobbled = nil
}

// Snapshot returns a copy of the engine state.
func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		State:         e.state,
		Current:       e.current.Copy(),
		Armed:         e.armed.Copy(),
		ArmedAt:       e.armedAt,
		LastScrobbled: e.lastScrobbled.Copy(),
	}
}

func (e *Engine) emit(d Diagnostic) {
	var ev *zerolog.Event
	switch d.Kind {
	case DiagDecodeFailed, DiagNowPlayingFailed, DiagScrobbleFailed:
		ev = e.logger.Warn().Err(d.Err)
	case DiagTrackChanged, DiagScrobbled:
		ev = e.logger.Info()
	default:
		ev = e.logger.Debug()
	}

	if d.Track != nil {
		ev = ev.Str("track", d.Track.Title).
			Str("artist", d.Track.Artist).
			Str("album", d.Track.Album).
			Str("key", d.Track.Key())
		if d.Track.HasDuration() {
			ev = ev.Dur("duration", d.Track.Duration)
		}
	}
	if d.Elapsed > 0 {
		ev = ev.Dur("elapsed", d.Elapsed)
	}
	ev.Str("decision", string(d.Kind)).Msg(diagnosticMessages[d.Kind])

	if e.observer != nil {
		e.observer(d)
	}
}

var diagnosticMessages = map[DiagnosticKind]string{
	DiagDecodeFailed:     "Failed to decode event field",
	DiagTrackChanged:     "Track changed",
	DiagNowPlaying:       "Updated now playing",
	DiagNowPlayingFailed: "Failed to update now playing",
	DiagDebounced:        "Same track scrobbled moments ago, skipping",
	DiagNotEligible:      "Not played long enough to scrobble",
	DiagScrobbled:        "Scrobbled track",
	DiagScrobbleFailed:   "Failed to scrobble track",
}

package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/jfmyers9/upnp-scribbles/internal/daemon"
	"github.com/jfmyers9/upnp-scribbles/internal/music"
	"github.com/jfmyers9/upnp-scribbles/internal/scrobbler"
)

const maxRecentTracks = 5

// Config holds TUI configuration options
type Config struct {
	RefreshRate time.Duration // How often to re-read the daemon status
	Rules       scrobbler.Rules
}

// DefaultConfig returns the default TUI configuration
func DefaultConfig() Config {
	return Config{
		RefreshRate: 500 * time.Millisecond,
		Rules:       scrobbler.DefaultRules(),
	}
}

// Source is where the TUI reads the daemon's published state.
type Source interface {
	Status() (*daemon.Status, error)
	Recent(ctx context.Context, limit int) ([]scrobbler.QueuedScrobble, error)
	Pending(ctx context.Context) (int, error)
}

// Controls drives the renderer from key presses.
type Controls interface {
	TogglePause(ctx context.Context) (music.PlayState, error)
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
}

// App is the TUI application for displaying renderer playback
type App struct {
	app        *tview.Application
	nowPlaying *tview.TextView
	progress   *tview.TextView
	status     *tview.TextView
	scrobble   *tview.TextView
	recent     *tview.TextView

	config   Config
	source   Source
	controls Controls

	// mu guards the fields below, written by the poll loop and read on the
	// draw goroutine.
	mu           sync.Mutex
	current      *daemon.Status
	recentRows   []scrobbler.QueuedScrobble
	pendingCount int
	lastError    string
	sessionStart time.Time

	// Last-rendered content for change detection
	lastNowPlaying string
	lastProgress   string
	lastScrobble   string
	lastRecent     string

	// Cached progress bar width to stabilize change detection.
	// Updated only when GetInnerRect returns a positive value.
	lastBarWidth int

	cancelFunc context.CancelFunc
}

// New creates a TUI reading from source. controls may be nil, which
// disables the playback keys.
func New(cfg Config, source Source, controls Controls) *App {
	a := &App{
		app:          tview.NewApplication(),
		config:       cfg,
		source:       source,
		controls:     controls,
		sessionStart: time.Now(),
	}
	a.setupUI()
	return a
}

func (a *App) setupUI() {
	a.nowPlaying = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.nowPlaying.SetBorder(true).
		SetTitle(" Now Playing ").
		SetTitleAlign(tview.AlignLeft)

	a.progress = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.progress.SetBorder(true)

	a.scrobble = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	a.scrobble.SetBorder(true).
		SetTitle(" Scrobble ").
		SetTitleAlign(tview.AlignLeft)

	a.recent = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	a.recent.SetBorder(true).
		SetTitle(" Recent ").
		SetTitleAlign(tview.AlignLeft)

	help := "[gray]q:quit[-]"
	if a.controls != nil {
		help = "[gray]q:quit  space:play/pause  n:next  p:prev[-]"
	}
	a.status = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetText(help)

	bottomRow := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(a.scrobble, 0, 1, false).
		AddItem(a.recent, 0, 1, false)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.nowPlaying, 0, 3, false).
		AddItem(a.progress, 3, 1, false).
		AddItem(bottomRow, 8, 1, false).
		AddItem(a.status, 1, 1, false)

	a.app.SetInputCapture(a.handleKeyEvent)
	a.app.SetRoot(flex, true)
}

func (a *App) handleKeyEvent(event *tcell.EventKey) *tcell.EventKey {
	var action func(ctx context.Context) error
	switch event.Rune() {
	case 'q', 'Q':
		a.app.Stop()
		return nil
	case ' ':
		if a.controls != nil {
			action = func(ctx context.Context) error {
				_, err := a.controls.TogglePause(ctx)
				return err
			}
		}
	case 'n', 'N':
		if a.controls != nil {
			action = a.controls.Next
		}
	case 'p', 'P':
		if a.controls != nil {
			action = a.controls.Previous
		}
	default:
		return event
	}

	if action != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			a.setError(action(ctx))
		}()
	}
	return nil
}

// Run polls the source until ctx is cancelled or the user quits.
func (a *App) Run(ctx context.Context) error {
	ctx, a.cancelFunc = context.WithCancel(ctx)
	defer a.cancelFunc()

	go a.poll(ctx)

	if err := a.app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// poll is the only source of redraws.
func (a *App) poll(ctx context.Context) {
	refreshRate := a.config.RefreshRate
	if refreshRate <= 0 {
		refreshRate = 500 * time.Millisecond
	}
	ticker := time.NewTicker(refreshRate)
	defer ticker.Stop()

	a.load(ctx)
	a.refresh()

	for {
		select {
		case <-ctx.Done():
			a.app.Stop()
			return
		case <-ticker.C:
			a.load(ctx)
			a.refresh()
		}
	}
}

func (a *App) load(ctx context.Context) {
	status, err := a.source.Status()
	recent, rerr := a.source.Recent(ctx, maxRecentTracks)
	pending, perr := a.source.Pending(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = status
	if rerr == nil {
		a.recentRows = recent
	}
	if perr == nil {
		a.pendingCount = pending
	}
	if err != nil {
		a.lastError = err.Error()
	}
}

func (a *App) setError(err error) {
	if err == nil {
		return
	}
	a.mu.Lock()
	a.lastError = err.Error()
	a.mu.Unlock()
}

func (a *App) refresh() {
	a.app.QueueUpdateDraw(func() {
		a.mu.Lock()
		defer a.mu.Unlock()

		now := time.Now()
		a.setIfChanged(a.nowPlaying, &a.lastNowPlaying, renderNowPlaying(a.current))

		_, _, width, _ := a.progress.GetInnerRect()
		barWidth := width - 16
		if barWidth > 0 {
			a.lastBarWidth = barWidth
		}
		if a.lastBarWidth < 10 {
			a.lastBarWidth = 10
		}
		a.setIfChanged(a.progress, &a.lastProgress, renderProgress(a.current, now, a.lastBarWidth))

		scrobble := renderScrobble(a.current, a.config.Rules, now, a.pendingCount) +
			fmt.Sprintf("\nSession: %s", formatDuration(now.Sub(a.sessionStart)))
		if a.lastError != "" {
			scrobble += fmt.Sprintf("\n[red]%s[-]", tview.Escape(a.lastError))
		}
		a.setIfChanged(a.scrobble, &a.lastScrobble, scrobble)

		a.setIfChanged(a.recent, &a.lastRecent, renderRecent(a.recentRows))
	})
}

func (a *App) setIfChanged(view *tview.TextView, last *string, text string) {
	if text != *last {
		*last = text
		view.SetText(text)
	}
}

// Stop stops the TUI application
func (a *App) Stop() {
	if a.cancelFunc != nil {
		a.cancelFunc()
	}
	a.app.Stop()
}

func renderNowPlaying(status *daemon.Status) string {
	if status == nil {
		return "\n\n[gray]Daemon not running[-]"
	}
	if status.Connection != daemon.ConnSubscribed {
		return fmt.Sprintf("\n\n[gray]%s[-]", tview.Escape(connectionLabel(status)))
	}
	if status.Track == nil || status.State == music.StateStopped {
		return "\n\n[gray]No track playing[-]"
	}

	t := status.Track
	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("[white::b]%s[-:-:-]\n", tview.Escape(t.Title)))
	sb.WriteString(fmt.Sprintf("[yellow]%s[-]\n", tview.Escape(t.Artist)))
	sb.WriteString(fmt.Sprintf("[gray]%s[-]", tview.Escape(t.Album)))

	stateIcon := "[green]▶[-]"
	switch status.State {
	case music.StatePaused:
		stateIcon = "[yellow]⏸[-]"
	case music.StateTransitioning:
		stateIcon = "[gray]…[-]"
	}
	sb.WriteString(fmt.Sprintf("\n\n%s  [gray]%s[-]", stateIcon, tview.Escape(status.Device)))
	return sb.String()
}

func connectionLabel(status *daemon.Status) string {
	label := "Renderer " + status.Connection.String()
	if status.Device != "" {
		label += ": " + status.Device
	}
	return label
}

// position estimates how far into the track the renderer is. The renderer
// reports no position in events, so this counts from when the track was
// first observed, frozen at the last update while not playing.
func position(status *daemon.Status, now time.Time) time.Duration {
	t := status.Track
	end := now
	if status.State != music.StatePlaying {
		end = status.UpdatedAt
	}
	pos := end.Sub(t.ObservedAt)
	if pos < 0 {
		pos = 0
	}
	if t.HasDuration() && pos > t.Duration {
		pos = t.Duration
	}
	return pos
}

func renderProgress(status *daemon.Status, now time.Time, width int) string {
	if status == nil || status.Track == nil || status.State == music.StateStopped {
		return ""
	}
	pos := position(status, now)
	dur := "--:--"
	if status.Track.HasDuration() {
		dur = formatDuration(status.Track.Duration)
	}
	return fmt.Sprintf("%s %s %s", formatDuration(pos), buildProgressBar(pos, status.Track.Duration, width), dur)
}

func renderScrobble(status *daemon.Status, rules scrobbler.Rules, now time.Time, pending int) string {
	var sb strings.Builder

	switch {
	case status == nil || status.Track == nil:
		sb.WriteString("[gray]No track[-]\n")
	case status.LastScrobbled != nil && music.SameTrack(status.LastScrobbled, status.Track):
		sb.WriteString("[green]✓ Scrobbled[-]\n")
	default:
		threshold := rules.Threshold(status.Track.Duration)
		progress := 100.0
		if threshold > 0 {
			progress = float64(position(status, now)) / float64(threshold) * 100
		}
		if progress > 100 {
			progress = 100
		}

		barWidth := 10
		filled := int(progress / 100 * float64(barWidth))
		bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
		sb.WriteString(fmt.Sprintf("[yellow]%s %.0f%%[-]\n", bar, progress))
	}

	if status != nil && status.LastScrobbled != nil {
		sb.WriteString(fmt.Sprintf("Last: %s\n", tview.Escape(status.LastScrobbled.Title)))
	}
	sb.WriteString(fmt.Sprintf("Pending: %d", pending))
	return sb.String()
}

func renderRecent(rows []scrobbler.QueuedScrobble) string {
	if len(rows) == 0 {
		return "[gray]No recent tracks[-]"
	}

	var sb strings.Builder
	for i, row := range rows {
		if i > 0 {
			sb.WriteString("\n")
		}
		if row.Scrobbled {
			sb.WriteString("[green]✓[-] ")
		} else {
			sb.WriteString("[red]✗[-] ")
		}

		name := []rune(row.TrackName)
		if len(name) > 20 {
			name = append(name[:17], []rune("...")...)
		}
		sb.WriteString(fmt.Sprintf("[white]%s[-]", tview.Escape(string(name))))
	}
	return sb.String()
}

// buildProgressBar creates a text-based progress bar
func buildProgressBar(position, duration time.Duration, width int) string {
	if duration == 0 || width <= 0 {
		return strings.Repeat("-", max(width, 0))
	}

	progress := float64(position) / float64(duration)
	if progress > 1 {
		progress = 1
	}
	if progress < 0 {
		progress = 0
	}

	filled := int(progress * float64(width))
	empty := width - filled

	return "[green]" + strings.Repeat("█", filled) + "[-]" +
		"[gray]" + strings.Repeat("░", empty) + "[-]"
}

// formatDuration formats a duration as MM:SS or HH:MM:SS for longer durations
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

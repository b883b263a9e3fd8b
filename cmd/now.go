/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/jfmyers9/upnp-scribbles/internal/config"
	"github.com/jfmyers9/upnp-scribbles/internal/daemon"
)

// nowCmd represents the now command
var nowCmd = &cobra.Command{
	Use:   "now",
	Short: "Display the track currently playing on the renderer",
	Long: `Display the track the daemon last saw playing on the renderer.

The daemon publishes its state to state.json in the data directory; this
command only reads that file, so it is cheap enough for a status bar.

The output format can be customized with output.format in config.yaml
using a Go template. Available fields: .Title, .Artist, .Album, .Subtitle,
.Duration, .State, .Device

Exit codes:
  0 - Track is currently playing
  1 - No track playing, paused, or daemon not running`,
	RunE: runNow,
}

func init() {
	rootCmd.AddCommand(nowCmd)

	// Add format flag to override config
	nowCmd.Flags().StringP("format", "f", "", "Output format template (overrides config)")
	// Add width flag to set fixed output width
	nowCmd.Flags().IntP("width", "w", 0, "Fixed output width (0=disabled, overrides config)")
	// Add marquee flag to enable scrolling
	nowCmd.Flags().Bool("marquee", false, "Enable marquee scrolling for long text (overrides config)")
	nowCmd.Flags().BoolP("verbose", "v", false, "Also print connection and scrobble details")
	nowCmd.Flags().String("data-dir", "", "Data directory the daemon writes to")
}

// nowView is the data available to output templates.
type nowView struct {
	Title    string
	Artist   string
	Album    string
	Subtitle string
	Duration string
	State    string
	Device   string
}

func newNowView(status *daemon.Status) nowView {
	t := status.Track
	v := nowView{
		Title:    t.Title,
		Artist:   t.Artist,
		Album:    t.Album,
		Subtitle: t.Subtitle,
		State:    status.State.String(),
		Device:   status.Device,
	}
	if t.HasDuration() {
		v.Duration = shortDuration(t.Duration)
	}
	return v
}

// shortDuration renders MM:SS, or H:MM:SS past an hour.
func shortDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h, m, sec := int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%02d:%02d", m, sec)
}

func runNow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Check for format flag override
	if formatFlag, _ := cmd.Flags().GetString("format"); formatFlag != "" {
		cfg.Output.Format = formatFlag
	}

	statePath := config.StateFilePath()
	if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
		statePath = filepath.Join(dir, "state.json")
	}

	status, err := daemon.ReadStatus(statePath)
	if err != nil {
		// No state file means the daemon never ran
		if os.IsNotExist(err) {
			os.Exit(1)
		}
		return fmt.Errorf("failed to read daemon state: %w", err)
	}

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		printStatusDetails(cmd, status, time.Now())
	}

	// If not playing, exit with code 1
	if status.Connection != daemon.ConnSubscribed || !status.Playing() {
		os.Exit(1)
		return nil
	}

	// Format and print output
	output, err := formatTrack(newNowView(status), cfg.Output.Format)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	// Apply width padding/marquee if requested
	width, _ := cmd.Flags().GetInt("width")
	if width == 0 {
		width = cfg.Output.Width
	}

	marquee, _ := cmd.Flags().GetBool("marquee")
	if !cmd.Flags().Changed("marquee") {
		marquee = cfg.Output.MarqueeEnabled
	}

	if width > 0 {
		if marquee {
			output = marqueeText(output, width, cfg.Output.MarqueeSpeed, cfg.Output.MarqueeSeparator)
		} else {
			output = padToWidth(output, width)
		}
	}

	fmt.Println(output)
	return nil
}

// printStatusDetails writes connection and scrobble details to stderr so
// the formatted line on stdout stays usable in scripts.
func printStatusDetails(cmd *cobra.Command, status *daemon.Status, now time.Time) {
	w := cmd.ErrOrStderr()
	device := status.Device
	if device == "" {
		device = "renderer"
	}
	fmt.Fprintf(w, "%s: %s, %s (updated %s)\n", device, status.Connection, status.State,
		humanize.RelTime(status.UpdatedAt, now, "ago", "from now"))
	if status.Track != nil {
		fmt.Fprintf(w, "Track: %s (first seen %s)\n", status.Track.String(),
			humanize.RelTime(status.Track.ObservedAt, now, "ago", "from now"))
	}
	if status.LastScrobbled != nil {
		fmt.Fprintf(w, "Last scrobbled: %s\n", status.LastScrobbled.String())
	}
}

// formatTrack applies the template to the track data
func formatTrack(track nowView, templateStr string) (string, error) {
	tmpl, err := template.New("output").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("invalid template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, track); err != nil {
		return "", fmt.Errorf("template execution failed: %w", err)
	}

	return buf.String(), nil
}

// padToWidth pads or truncates text to a fixed display width.
// Width is measured in display columns, accounting for Unicode characters.
// If width <= 0, returns text unchanged.
// If text is longer than width, truncates with "..." suffix.
// If text is shorter than width, pads with spaces.
func padToWidth(text string, width int) string {
	if width <= 0 {
		return text // no padding requested
	}

	currentWidth := runewidth.StringWidth(text)

	if currentWidth > width {
		// Truncate with "..." suffix
		// We need to manually truncate and add "..." then pad if needed
		ellipsis := "..."
		ellipsisWidth := runewidth.StringWidth(ellipsis)

		if width <= ellipsisWidth {
			// If width is too small, just return ellipsis truncated to width
			return runewidth.Truncate(ellipsis, width, "")
		}

		// Truncate to (width - ellipsisWidth) and add ellipsis
		truncated := runewidth.Truncate(text, width-ellipsisWidth, "")
		result := truncated + ellipsis

		// Ensure we're exactly at the target width (in case truncate was imprecise)
		resultWidth := runewidth.StringWidth(result)
		if resultWidth < width {
			padding := strings.Repeat(" ", width-resultWidth)
			return result + padding
		} else if resultWidth > width {
			// Shouldn't happen, but handle it just in case
			return runewidth.Truncate(result, width, "")
		}
		return result
	} else if currentWidth < width {
		// Pad with spaces
		padding := strings.Repeat(" ", width-currentWidth)
		return text + padding
	}

	return text // exactly the right width
}

// extractWindow extracts a substring from text starting at startPos (in display columns)
// and returns exactly 'width' display columns. Handles Unicode characters correctly.
//
// This helper is used by marqueeText to extract a sliding window from the extended text.
// Position and width are measured in display columns (not runes), so emoji and CJK
// characters are counted by their visual width (typically 2 columns).
//
// If the extracted text is shorter than width, it's padded with spaces to ensure
// consistent output width.
func extractWindow(text string, startPos int, width int) string {
	if width <= 0 {
		return ""
	}

	runes := []rune(text)
	var result []rune
	currentPos := 0
	resultWidth := 0

	// Skip to start position
	for i := 0; i < len(runes) && currentPos < startPos; i++ {
		currentPos += runewidth.RuneWidth(runes[i])
	}

	// Collect runes until we reach the target width
	for i := 0; i < len(runes) && resultWidth < width; {
		// Skip past runes we've already processed to reach startPos
		runePos := 0
		for j := 0; j < i; j++ {
			runePos += runewidth.RuneWidth(runes[j])
		}

		if runePos >= startPos {
			r := runes[i]
			rw := runewidth.RuneWidth(r)

			// Don't exceed target width
			if resultWidth+rw <= width {
				result = append(result, r)
				resultWidth += rw
			} else {
				break
			}
		}
		i++
	}

	// Pad with spaces if we haven't reached target width
	if resultWidth < width {
		padding := strings.Repeat(" ", width-resultWidth)
		return string(result) + padding
	}

	return string(result)
}

// marqueeText creates a scrolling marquee effect for text that exceeds the target width.
// If text fits within width, returns static padded text.
// If text is longer, creates a scrolling window using timestamp-based positioning.
//
// Algorithm:
// 1. Create extended text: "original{separator}original" for continuous looping
// 2. Calculate scroll position: time.Now().Unix() * speed % len(extended)
//   - speed is in characters per second
//   - position wraps around to create infinite loop
//   - deterministic: same timestamp = same output (important for testing)
//
// 3. Extract a window of exactly 'width' display columns starting at position
// 4. Pad with spaces if needed to ensure exact width
//
// Interaction with tmux:
// - tmux refreshes status bar at discrete intervals (status-interval, typically 5s)
// - Each refresh calls this function with a new timestamp
// - Creates step-animation effect (not smooth scrolling)
// - Example: speed=2, interval=5s → advances 10 chars per visual update
// - Users can tune speed based on their tmux interval for optimal readability
//
// Edge cases:
// - Short text (fits in width): returns static padded text (no scrolling)
// - Very long text: will eventually cycle through entire text
// - Unicode/emoji: handled correctly using runewidth for display column calculation
func marqueeText(text string, width int, speed int, separator string) string {
	if width <= 0 {
		return text
	}

	textWidth := runewidth.StringWidth(text)

	// If text fits, just pad normally (no scrolling needed)
	if textWidth <= width {
		return padToWidth(text, width)
	}

	// Create extended text: "original + separator + original"
	// This creates a continuous loop
	extended := text + separator + text
	extendedRunes := []rune(extended)

	// Calculate scroll position based on current time
	// This creates a deterministic, timestamp-based scroll position that:
	// - Advances continuously over time (speed chars/second)
	// - Wraps around to create infinite loop (modulo totalChars)
	// - Is stateless (no need to persist position between calls)
	// - Is testable (can mock time.Now for unit tests)
	now := time.Now().Unix()
	totalChars := len(extendedRunes)
	// Position = (current_unix_time * chars_per_second) % total_chars
	// Example: speed=2, time=10s → position = 20 % totalChars
	position := int(now*int64(speed)) % totalChars

	// Build the window starting at position
	var result []rune
	resultWidth := 0

	for i := 0; i < totalChars && resultWidth < width; i++ {
		idx := (position + i) % totalChars
		r := extendedRunes[idx]
		rw := runewidth.RuneWidth(r)

		// Don't exceed target width
		if resultWidth+rw <= width {
			result = append(result, r)
			resultWidth += rw
		} else {
			break
		}
	}

	// Pad with spaces if needed to reach exact width
	if resultWidth < width {
		padding := strings.Repeat(" ", width-resultWidth)
		return string(result) + padding
	}

	return string(result)
}

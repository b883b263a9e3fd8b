package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jfmyers9/upnp-scribbles/internal/config"
	"github.com/jfmyers9/upnp-scribbles/internal/renderer"
)

const controlTimeout = 5 * time.Second

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Resume playback on the renderer",
	RunE: withController(func(ctx context.Context, cmd *cobra.Command, c *renderer.Controller, args []string) error {
		return c.Play(ctx)
	}),
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause playback on the renderer",
	RunE: withController(func(ctx context.Context, cmd *cobra.Command, c *renderer.Controller, args []string) error {
		return c.Pause(ctx)
	}),
}

var playpauseCmd = &cobra.Command{
	Use:   "playpause",
	Short: "Toggle between play and pause",
	Long:  `Ask the renderer for its transport state, pause it when playing and resume it otherwise.`,
	RunE: withController(func(ctx context.Context, cmd *cobra.Command, c *renderer.Controller, args []string) error {
		state, err := c.TogglePause(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), state)
		return nil
	}),
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop playback on the renderer",
	RunE: withController(func(ctx context.Context, cmd *cobra.Command, c *renderer.Controller, args []string) error {
		return c.Stop(ctx)
	}),
}

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Skip to the next track",
	RunE: withController(func(ctx context.Context, cmd *cobra.Command, c *renderer.Controller, args []string) error {
		return c.Next(ctx)
	}),
}

var prevCmd = &cobra.Command{
	Use:   "prev",
	Short: "Go back to the previous track",
	RunE: withController(func(ctx context.Context, cmd *cobra.Command, c *renderer.Controller, args []string) error {
		return c.Previous(ctx)
	}),
}

var shuffleCmd = &cobra.Command{
	Use:   "shuffle [on|off]",
	Short: "Toggle or set the renderer's shuffle play mode",
	Long: `Control the AVTransport play mode.

Without arguments, toggles between SHUFFLE and NORMAL.
With 'on' or 'off', sets it explicitly. Not every renderer supports
SHUFFLE; those answer with a UPnP error.`,
	Args: cobra.MaximumNArgs(1),
	RunE: withController(runShuffle),
}

var volumeCmd = &cobra.Command{
	Use:   "volume [0-100]",
	Short: "Show or set the renderer volume",
	Long: `Without arguments, print the master volume reported by the renderer's
RenderingControl service. With a level between 0 and 100, set it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: withController(runVolume),
}

func init() {
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(playpauseCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(nextCmd)
	rootCmd.AddCommand(prevCmd)
	rootCmd.AddCommand(shuffleCmd)
	rootCmd.AddCommand(volumeCmd)
}

type controlFunc func(ctx context.Context, cmd *cobra.Command, c *renderer.Controller, args []string) error

// withController loads the device settings, connects to the renderer and
// runs fn under a short timeout.
func withController(fn controlFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		logger := setupLogger(logFile, logLevel)
		c, err := openController(ctx, cfg, logger)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(ctx, controlTimeout)
		defer cancel()
		return fn(ctx, cmd, c, args)
	}
}

func openController(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*renderer.Controller, error) {
	connector := &rendererConnector{device: cfg.Device, logger: logger}
	location, err := connector.locate(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, controlTimeout)
	defer cancel()
	return renderer.NewController(ctx, location)
}

func runShuffle(ctx context.Context, cmd *cobra.Command, c *renderer.Controller, args []string) error {
	var enabled bool
	if len(args) == 0 {
		current, err := c.Shuffle(ctx)
		if err != nil {
			return err
		}
		enabled = !current
	} else {
		switch args[0] {
		case "on":
			enabled = true
		case "off":
			enabled = false
		default:
			return fmt.Errorf("invalid shuffle argument: %s (must be 'on' or 'off')", args[0])
		}
	}

	if err := c.SetShuffle(ctx, enabled); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "shuffle %s\n", onOff(enabled))
	return nil
}

func runVolume(ctx context.Context, cmd *cobra.Command, c *renderer.Controller, args []string) error {
	if len(args) == 0 {
		level, err := c.Volume(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), level)
		return nil
	}

	level, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid volume level: %s (must be a number 0-100)", args[0])
	}
	return c.SetVolume(ctx, level)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jfmyers9/upnp-scribbles/internal/config"
	"github.com/jfmyers9/upnp-scribbles/internal/scrobbler"
	"github.com/jfmyers9/upnp-scribbles/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Display a terminal dashboard for the running daemon",
	Long: `Display a terminal dashboard that follows the state file written by a
running daemon.

The dashboard shows:
- The track on the renderer, its play state and position
- Progress toward the scrobble point
- Recent scrobbles from the journal and how many are pending

Keys: space toggles play/pause, n and p skip tracks when the renderer can
be reached, q quits.`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)

	tuiCmd.Flags().String("data-dir", "", "Data directory the daemon writes to")
	tuiCmd.Flags().Bool("no-controls", false, "Do not connect to the renderer for playback keys")
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// The dashboard owns the terminal, so logs only go to a file.
	logger := setupLogger(logFile, logLevel)
	if logFile == "" {
		logger = logger.Level(zerolog.Disabled)
	}

	statePath, dbPath := config.StateFilePath(), config.QueueDBPath()
	if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
		statePath = filepath.Join(dir, "state.json")
		dbPath = filepath.Join(dir, "queue.db")
	}

	source := &tui.FileSource{StatePath: statePath}
	if _, err := os.Stat(dbPath); err == nil {
		queue, err := scrobbler.NewQueue(dbPath)
		if err != nil {
			return err
		}
		defer queue.Close()
		source.Journal = queue
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var controls tui.Controls
	if noControls, _ := cmd.Flags().GetBool("no-controls"); !noControls {
		c, err := openController(ctx, cfg, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("Renderer unreachable, playback keys disabled")
		} else {
			controls = c
		}
	}

	tuiCfg := tui.DefaultConfig()
	tuiCfg.Rules = scrobbleRules(cfg)

	return tui.New(tuiCfg, source, controls).Run(ctx)
}

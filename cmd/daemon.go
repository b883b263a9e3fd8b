package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jfmyers9/upnp-scribbles/internal/config"
	"github.com/jfmyers9/upnp-scribbles/internal/daemon"
	"github.com/jfmyers9/upnp-scribbles/internal/discord"
	"github.com/jfmyers9/upnp-scribbles/internal/library"
	"github.com/jfmyers9/upnp-scribbles/internal/renderer"
	"github.com/jfmyers9/upnp-scribbles/internal/scrobbler"
	"github.com/jfmyers9/upnp-scribbles/pkg/lastfm"
	"github.com/jfmyers9/upnp-scribbles/pkg/subsonic"
)

var daemonDataDir string

// discoveryTimeout bounds each SSDP search when the renderer is located by
// name or UDN.
const discoveryTimeout = 10 * time.Second

// daemonCmd represents the daemon command
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the scrobbling daemon",
	Long: `Run the scrobbling daemon that follows a UPnP renderer and scrobbles tracks to Last.fm.

The daemon will:
- Subscribe to the renderer's AVTransport events, resubscribing periodically
- Report now playing when the track changes
- Scrobble tracks that played long enough (half their length or 4 minutes)
- Journal every scrobble and retry failed ones
- Mirror plays to a Subsonic library when one is configured
- Show the current track as Discord Rich Presence when discord.app_id is set
- Reconnect with a fixed delay whenever the renderer goes away
- Handle graceful shutdown on SIGINT/SIGTERM

The renderer is located by device.url (DEVICE_URL), or found on the network
by device.udn or device.name.

The daemon runs in the foreground and logs to stderr by default.
Use the --log-file flag to log to a file (useful for launchd or systemd).`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)

	daemonCmd.Flags().StringVar(&daemonDataDir, "data-dir", "", "Data directory for state and journal (default: $XDG_DATA_HOME/upnp-scribbles)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := setupLogger(logFile, logLevel)
	logger.Info().
		Str("version", version).
		Msg("Starting upnp-scribbles daemon")

	dataDir := daemonDataDir
	if dataDir == "" {
		dataDir = config.DataDir()
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	logger.Info().Str("data_dir", dataDir).Msg("Using data directory")

	lastfmClient, err := scrobbler.NewWithConfig(lastfm.Config{
		APIKey:     cfg.LastFM.APIKey,
		APISecret:  cfg.LastFM.APISecret,
		SessionKey: cfg.LastFM.SessionKey,
		Logger:     debugLogger{logger.With().Str("component", "lastfm").Logger()},
	})
	if err != nil {
		return err
	}

	retryInterval := cfg.Scrobble.RetryInterval
	if !cfg.Scrobble.RetryFailed {
		retryInterval = 0
	}

	engineCfg := daemon.DefaultEngineConfig()
	engineCfg.MinimumRepeatInterval = cfg.Scrobble.MinimumRepeatInterval
	engineCfg.NowPlayingEnabled = cfg.Scrobble.NowPlaying
	engineCfg.Rules = scrobbleRules(cfg)
	engineCfg.DumpEventKeys = cfg.Debug.DumpEventKeys
	engineCfg.DumpEventKeyValues = cfg.Debug.DumpEventKeyValues
	engineCfg.DumpMetadata = cfg.Debug.DumpUPnPData

	reporter, closers, err := buildReporter(cfg, lastfmClient, engineCfg.ReportTimeout, logger)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				logger.Debug().Err(err).Msg("Error closing reporter")
			}
		}
	}()

	daemonCfg := daemon.Config{
		StateFile:     filepath.Join(dataDir, "state.json"),
		QueueDB:       filepath.Join(dataDir, "queue.db"),
		RetryInterval: retryInterval,
		Engine:        engineCfg,
		Supervisor:    daemon.DefaultSupervisorConfig(),
	}

	connector := &rendererConnector{device: cfg.Device, logger: logger}

	d, err := daemon.New(daemonCfg, connector, reporter, lastfmClient, logger)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	// Run daemon (blocks until shutdown signal)
	runErr := d.Run()

	if err := d.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("Error during shutdown")
		if runErr == nil {
			runErr = err
		}
	}
	if runErr != nil {
		return fmt.Errorf("daemon error: %w", runErr)
	}

	logger.Info().Msg("Daemon stopped")
	return nil
}

func scrobbleRules(cfg *config.Config) scrobbler.Rules {
	return scrobbler.Rules{
		DurationThreshold: cfg.Scrobble.DurationThreshold,
		AssumedDuration:   cfg.Scrobble.AssumedDuration,
	}
}

// buildReporter returns Last.fm alone, or Last.fm followed by the Subsonic
// library and the Discord presence when those are configured. Each sink gets
// its own timeout. The closers are run once the daemon has stopped.
func buildReporter(cfg *config.Config, lastfmClient *scrobbler.Client, timeout time.Duration, logger zerolog.Logger) (scrobbler.Reporter, []io.Closer, error) {
	var secondary []scrobbler.Reporter
	var closers []io.Closer

	if cfg.Subsonic.Enabled() {
		lib, err := newLibrary(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info().Str("base_url", cfg.Subsonic.BaseURL).Msg("Mirroring plays to Subsonic library")
		secondary = append(secondary, &scrobbler.LibraryReporter{Library: lib})
	}

	if cfg.Discord.Enabled() {
		presence := discord.New(discord.Config{
			AppID:        cfg.Discord.AppID,
			ActivityName: cfg.Discord.ActivityName,
		}, logger)
		logger.Info().Msg("Publishing now playing to Discord")
		secondary = append(secondary, presence)
		closers = append(closers, presence)
	}

	if len(secondary) == 0 {
		return lastfmClient, nil, nil
	}
	return &scrobbler.MultiReporter{
		Primary:   lastfmClient,
		Secondary: secondary,
		Timeout:   timeout,
		Logger:    logger.With().Str("component", "reporter").Logger(),
	}, closers, nil
}

func newSubsonicClient(cfg *config.Config, logger zerolog.Logger) (*subsonic.Client, error) {
	client, err := subsonic.NewClient(subsonic.Config{
		BaseURL:    cfg.Subsonic.BaseURL,
		Port:       cfg.Subsonic.Port,
		ServerPath: cfg.Subsonic.ServerPath,
		Username:   cfg.Subsonic.Username,
		Password:   cfg.Subsonic.Password,
		LegacyAuth: cfg.Subsonic.LegacyAuth,
		UserAgent:  "upnp-scribbles/" + version,
		Logger:     debugLogger{logger.With().Str("component", "subsonic").Logger()},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create subsonic client: %w", err)
	}
	return client, nil
}

func newLibrary(cfg *config.Config, logger zerolog.Logger) (*library.Library, error) {
	client, err := newSubsonicClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	return library.New(client, cfg.Subsonic.BaseURL, cfg.Subsonic.Port, logger), nil
}

// debugLogger adapts zerolog to the SDK logger interfaces.
type debugLogger struct {
	zerolog.Logger
}

func (l debugLogger) Debugf(format string, args ...any) {
	l.Debug().Msgf(format, args...)
}

// rendererConnector resolves the configured renderer and opens a GENA
// subscription on every connect attempt.
type rendererConnector struct {
	device config.DeviceConfig
	logger zerolog.Logger
}

func (c *rendererConnector) Connect(ctx context.Context) (daemon.Session, error) {
	location, err := c.locate(ctx)
	if err != nil {
		return nil, err
	}

	conn := &renderer.Connector{
		Location:     location,
		CallbackHost: c.device.CallbackHost,
		Logger:       c.logger,
	}
	sub, err := conn.Subscribe(ctx)
	if err != nil {
		return nil, err
	}
	return rendererSession{sub}, nil
}

func (c *rendererConnector) locate(ctx context.Context) (string, error) {
	if c.device.URL != "" {
		return c.device.URL, nil
	}

	ctx, cancel := context.WithTimeout(ctx, discoveryTimeout)
	defer cancel()

	location, err := renderer.Locate(ctx, c.device.Name, c.device.UDN)
	if err != nil {
		return "", fmt.Errorf("failed to locate renderer: %w", err)
	}
	c.logger.Debug().Str("location", location).Msg("Located renderer")
	return location, nil
}

type rendererSession struct {
	*renderer.Subscription
}

func (s rendererSession) DeviceName() string {
	if dev := s.Device(); dev != nil {
		return dev.FriendlyName
	}
	return ""
}

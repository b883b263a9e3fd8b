// Package config loads settings from config.yaml, env files and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// AppName names the config and data directories.
const AppName = "upnp-scribbles"

// ErrNoDevice is returned by Validate when no renderer locator is configured.
var ErrNoDevice = errors.New("no renderer configured: set device.url, device.name or device.udn")

// ErrNoCredentials is returned by Validate when Last.fm is not set up.
var ErrNoCredentials = errors.New("Last.fm credentials not configured: run 'upnp-scribbles auth'")

// Config holds application configuration
type Config struct {
	Device   DeviceConfig
	Scrobble ScrobbleConfig
	LastFM   LastFMConfig
	Subsonic SubsonicConfig
	Discord  DiscordConfig
	Debug    DebugConfig
	Output   OutputConfig

	// Dir is the directory config.yaml was looked up in.
	Dir string
}

// DeviceConfig locates the renderer. URL wins over UDN, UDN over Name.
type DeviceConfig struct {
	URL          string
	Name         string
	UDN          string
	CallbackHost string
}

// ScrobbleConfig holds the listening rules and journal settings.
type ScrobbleConfig struct {
	DurationThreshold     time.Duration
	AssumedDuration       time.Duration
	MinimumRepeatInterval time.Duration
	NowPlaying            bool
	RetryFailed           bool
	RetryInterval         time.Duration
}

// LastFMConfig holds Last.fm specific configuration
type LastFMConfig struct {
	APIKey     string
	APISecret  string
	SessionKey string
}

// SubsonicConfig points at an optional personal library.
type SubsonicConfig struct {
	BaseURL    string
	Port       int
	Username   string
	Password   string
	ServerPath string
	LegacyAuth bool
}

// Enabled reports whether enough is configured to talk to the library.
func (s SubsonicConfig) Enabled() bool {
	return s.BaseURL != "" && s.Username != "" && s.Password != ""
}

// DiscordConfig turns on the Discord Rich Presence sink when AppID is set.
type DiscordConfig struct {
	AppID        string
	ActivityName string
}

// Enabled reports whether a Discord application is configured.
func (d DiscordConfig) Enabled() bool {
	return d.AppID != ""
}

// DebugConfig switches on raw event dumps.
type DebugConfig struct {
	DumpUPnPData       bool
	DumpEventKeys      bool
	DumpEventKeyValues bool
}

// OutputConfig shapes the now command.
type OutputConfig struct {
	// Output format template for the now command
	// Default: "{{.Artist}} - {{.Title}}"
	Format           string
	Width            int
	MarqueeEnabled   bool
	MarqueeSpeed     int
	MarqueeSeparator string
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	dir := Dir()
	loadEnvFiles(dir)

	v := newViper(dir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return fromViper(v, dir)
}

func newViper(dir string) *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	v.AddConfigPath(".")

	v.SetEnvPrefix("UPNP_SCRIBBLES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, p := range Params {
		if p.Default != nil {
			v.SetDefault(p.Key, p.Default)
		}
		if len(p.Env) > 0 {
			_ = v.BindEnv(append([]string{p.Key, envName(p.Key)}, p.Env...)...)
		}
	}
	return v
}

func fromViper(v *viper.Viper, dir string) (*Config, error) {
	var errs []error
	seconds := func(key string) time.Duration {
		d, err := parseSeconds(v.GetString(key))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return d
	}
	boolean := func(key string) bool {
		return ParseBool(v.GetString(key))
	}

	cfg := &Config{
		Dir: dir,
		Device: DeviceConfig{
			URL:          v.GetString(KeyDeviceURL),
			Name:         v.GetString(KeyDeviceName),
			UDN:          v.GetString(KeyDeviceUDN),
			CallbackHost: v.GetString(KeyCallbackHost),
		},
		Scrobble: ScrobbleConfig{
			DurationThreshold:     seconds(KeyDurationThreshold),
			AssumedDuration:       seconds(KeyAssumedDuration),
			MinimumRepeatInterval: seconds(KeyMinimumRepeatInterval),
			NowPlaying:            boolean(KeyNowPlaying),
			RetryFailed:           boolean(KeyRetryFailed),
			RetryInterval:         seconds(KeyRetryInterval),
		},
		LastFM: LastFMConfig{
			APIKey:     v.GetString(KeyLastFMAPIKey),
			APISecret:  v.GetString(KeyLastFMAPISecret),
			SessionKey: v.GetString(KeyLastFMSessionKey),
		},
		Subsonic: SubsonicConfig{
			BaseURL:    v.GetString(KeySubsonicBaseURL),
			Port:       v.GetInt(KeySubsonicPort),
			Username:   v.GetString(KeySubsonicUsername),
			Password:   v.GetString(KeySubsonicPassword),
			ServerPath: v.GetString(KeySubsonicServerPath),
			LegacyAuth: boolean(KeySubsonicLegacyAuth),
		},
		Discord: DiscordConfig{
			AppID:        v.GetString(KeyDiscordAppID),
			ActivityName: v.GetString(KeyDiscordActivityName),
		},
		Debug: DebugConfig{
			DumpUPnPData:       boolean(KeyDumpUPnPData),
			DumpEventKeys:      boolean(KeyDumpEventKeys),
			DumpEventKeyValues: boolean(KeyDumpEventKeyValues),
		},
		Output: OutputConfig{
			Format:           v.GetString(KeyOutputFormat),
			Width:            v.GetInt(KeyOutputWidth),
			MarqueeEnabled:   boolean(KeyMarqueeEnabled),
			MarqueeSpeed:     v.GetInt(KeyMarqueeSpeed),
			MarqueeSeparator: v.GetString(KeyMarqueeSeparator),
		},
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks what the daemon cannot run without.
func (c *Config) Validate() error {
	if c.Device.URL == "" && c.Device.Name == "" && c.Device.UDN == "" {
		return ErrNoDevice
	}
	if c.LastFM.APIKey == "" || c.LastFM.APISecret == "" || c.LastFM.SessionKey == "" {
		return ErrNoCredentials
	}
	return nil
}

// Save writes configuration to config.yaml in the config directory.
func (c *Config) Save() error {
	dir := c.Dir
	if dir == "" {
		dir = Dir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.Set(KeyDeviceURL, c.Device.URL)
	v.Set(KeyDeviceName, c.Device.Name)
	v.Set(KeyDeviceUDN, c.Device.UDN)
	v.Set(KeyCallbackHost, c.Device.CallbackHost)
	v.Set(KeyDurationThreshold, int(c.Scrobble.DurationThreshold/time.Second))
	v.Set(KeyAssumedDuration, int(c.Scrobble.AssumedDuration/time.Second))
	v.Set(KeyMinimumRepeatInterval, c.Scrobble.MinimumRepeatInterval.Seconds())
	v.Set(KeyNowPlaying, c.Scrobble.NowPlaying)
	v.Set(KeyRetryFailed, c.Scrobble.RetryFailed)
	v.Set(KeyRetryInterval, int(c.Scrobble.RetryInterval/time.Second))
	v.Set(KeyLastFMAPIKey, c.LastFM.APIKey)
	v.Set(KeyLastFMAPISecret, c.LastFM.APISecret)
	v.Set(KeyLastFMSessionKey, c.LastFM.SessionKey)
	v.Set(KeySubsonicBaseURL, c.Subsonic.BaseURL)
	v.Set(KeySubsonicPort, c.Subsonic.Port)
	v.Set(KeySubsonicUsername, c.Subsonic.Username)
	v.Set(KeySubsonicPassword, c.Subsonic.Password)
	v.Set(KeySubsonicServerPath, c.Subsonic.ServerPath)
	v.Set(KeySubsonicLegacyAuth, c.Subsonic.LegacyAuth)
	v.Set(KeyDiscordAppID, c.Discord.AppID)
	v.Set(KeyDiscordActivityName, c.Discord.ActivityName)
	v.Set(KeyOutputFormat, c.Output.Format)
	v.Set(KeyOutputWidth, c.Output.Width)
	v.Set(KeyMarqueeEnabled, c.Output.MarqueeEnabled)
	v.Set(KeyMarqueeSpeed, c.Output.MarqueeSpeed)
	v.Set(KeyMarqueeSeparator, c.Output.MarqueeSeparator)

	return v.WriteConfigAs(filepath.Join(dir, "config.yaml"))
}

// Dir returns the configuration directory. CONFIG_DIR overrides the XDG
// location.
func Dir() string {
	if dir := os.Getenv("CONFIG_DIR"); dir != "" {
		return dir
	}
	return filepath.Join(xdg.ConfigHome, AppName)
}

// DataDir returns where the journal and state file live.
func DataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// StateFilePath is the daemon's status file read by the now command.
func StateFilePath() string {
	return filepath.Join(DataDir(), "state.json")
}

// QueueDBPath is the scrobble journal database.
func QueueDBPath() string {
	return filepath.Join(DataDir(), "queue.db")
}

// loadEnvFiles exports variables from optional env files. Variables already
// set in the environment are kept.
func loadEnvFiles(dir string) {
	for _, path := range []string{
		filepath.Join(dir, AppName+".env"),
		filepath.Join(dir, "last_fm_config.env"),
		".env",
	} {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
		}
	}
}

// ParseBool accepts true, 1, y and yes in any case. Anything else is false.
func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "y", "yes":
		return true
	}
	return false
}

// parseSeconds reads a plain number of seconds ("240", "10.5") or a Go
// duration ("4m").
func parseSeconds(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(f * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}

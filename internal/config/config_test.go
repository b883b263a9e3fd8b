package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("CONFIG_DIR", dir)
	return dir
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0600))
}

func TestLoad_Defaults(t *testing.T) {
	dir := setConfigDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.Dir)
	assert.Equal(t, 240*time.Second, cfg.Scrobble.DurationThreshold)
	assert.Equal(t, 120*time.Second, cfg.Scrobble.AssumedDuration)
	assert.Equal(t, 10*time.Second, cfg.Scrobble.MinimumRepeatInterval)
	assert.True(t, cfg.Scrobble.NowPlaying)
	assert.True(t, cfg.Scrobble.RetryFailed)
	assert.Equal(t, 30*time.Second, cfg.Scrobble.RetryInterval)
	assert.False(t, cfg.Debug.DumpUPnPData)
	assert.Equal(t, "{{.Artist}} - {{.Title}}", cfg.Output.Format)
	assert.False(t, cfg.Subsonic.Enabled())
	assert.False(t, cfg.Discord.Enabled())
	assert.Equal(t, "Music", cfg.Discord.ActivityName)
	assert.ErrorIs(t, cfg.Validate(), ErrNoDevice)
}

func TestLoad_File(t *testing.T) {
	dir := setConfigDir(t)
	writeFile(t, filepath.Join(dir, "config.yaml"), `
device:
  url: http://192.168.1.20:49152/description.xml
scrobble:
  duration_threshold: 180
  minimum_repeat_interval: 2.5
  now_playing: "no"
lastfm:
  api_key: key
  api_secret: secret
  session_key: session
subsonic:
  base_url: https://music.example.com
  username: listener
  password: sesame
  legacy_auth: "y"
discord:
  app_id: "1234567890"
  activity_name: Living Room
`)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://192.168.1.20:49152/description.xml", cfg.Device.URL)
	assert.Equal(t, 180*time.Second, cfg.Scrobble.DurationThreshold)
	assert.Equal(t, 2500*time.Millisecond, cfg.Scrobble.MinimumRepeatInterval)
	assert.False(t, cfg.Scrobble.NowPlaying)
	assert.True(t, cfg.Subsonic.Enabled())
	assert.True(t, cfg.Subsonic.LegacyAuth)
	assert.Equal(t, DiscordConfig{AppID: "1234567890", ActivityName: "Living Room"}, cfg.Discord)
	assert.True(t, cfg.Discord.Enabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_LegacyEnvironment(t *testing.T) {
	setConfigDir(t)
	t.Setenv("DEVICE_URL", "http://renderer.lan/desc.xml")
	t.Setenv("DURATION_THRESHOLD", "200")
	t.Setenv("ENABLE_NOW_PLAYING", "0")
	t.Setenv("DUMP_EVENT_KEYS", "YES")
	t.Setenv("SUBSONIC_PORT", "4533")
	t.Setenv("LAST_FM_API_KEY", "env-key")
	t.Setenv("DISCORD_APP_ID", "42")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://renderer.lan/desc.xml", cfg.Device.URL)
	assert.Equal(t, 200*time.Second, cfg.Scrobble.DurationThreshold)
	assert.False(t, cfg.Scrobble.NowPlaying)
	assert.True(t, cfg.Debug.DumpEventKeys)
	assert.Equal(t, 4533, cfg.Subsonic.Port)
	assert.Equal(t, "env-key", cfg.LastFM.APIKey)
	assert.Equal(t, "42", cfg.Discord.AppID)
}

func TestLoad_PrefixedEnvironmentWins(t *testing.T) {
	setConfigDir(t)
	t.Setenv("DEVICE_NAME", "Kitchen")
	t.Setenv("UPNP_SCRIBBLES_DEVICE_NAME", "Living Room")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "Living Room", cfg.Device.Name)
}

func TestLoad_EnvFile(t *testing.T) {
	dir := setConfigDir(t)
	writeFile(t, filepath.Join(dir, AppName+".env"), "DEVICE_UDN=uuid:5f9ec1b3-ed59-1900-4530-00a0dea6a5a3\n")
	t.Cleanup(func() { os.Unsetenv("DEVICE_UDN") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "uuid:5f9ec1b3-ed59-1900-4530-00a0dea6a5a3", cfg.Device.UDN)
}

func TestLoad_InvalidDuration(t *testing.T) {
	setConfigDir(t)
	t.Setenv("ASSUMED_DURATION", "forever")

	_, err := Load()
	assert.ErrorContains(t, err, KeyAssumedDuration)
}

func TestSave_RoundTrip(t *testing.T) {
	setConfigDir(t)

	cfg, err := Load()
	require.NoError(t, err)
	cfg.Device.Name = "Living Room"
	cfg.LastFM = LastFMConfig{APIKey: "k", APISecret: "s", SessionKey: "sk"}
	require.NoError(t, cfg.Save())

	reloaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, cfg.Device, reloaded.Device)
	assert.Equal(t, cfg.LastFM, reloaded.LastFM)
	assert.Equal(t, cfg.Discord, reloaded.Discord)
	assert.Equal(t, cfg.Scrobble, reloaded.Scrobble)
	assert.NoError(t, reloaded.Validate())
}

func TestParseBool(t *testing.T) {
	for _, s := range []string{"true", "TRUE", "1", "y", "Y", "yes", " Yes "} {
		assert.True(t, ParseBool(s), s)
	}
	for _, s := range []string{"", "false", "0", "n", "no", "on", "enabled"} {
		assert.False(t, ParseBool(s), s)
	}
}

func TestParseSeconds(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"240", 240 * time.Second},
		{"10.0", 10 * time.Second},
		{"0.5", 500 * time.Millisecond},
		{"4m", 4 * time.Minute},
	}
	for _, tt := range tests {
		got, err := parseSeconds(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

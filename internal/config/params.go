package config

import "strings"

// Configuration keys, as written in config.yaml.
const (
	KeyDeviceURL             = "device.url"
	KeyDeviceName            = "device.name"
	KeyDeviceUDN             = "device.udn"
	KeyCallbackHost          = "device.callback_host"
	KeyDurationThreshold     = "scrobble.duration_threshold"
	KeyAssumedDuration       = "scrobble.assumed_duration"
	KeyMinimumRepeatInterval = "scrobble.minimum_repeat_interval"
	KeyNowPlaying            = "scrobble.now_playing"
	KeyRetryFailed           = "scrobble.retry_failed"
	KeyRetryInterval         = "scrobble.retry_interval"
	KeyLastFMAPIKey          = "lastfm.api_key"
	KeyLastFMAPISecret       = "lastfm.api_secret"
	KeyLastFMSessionKey      = "lastfm.session_key"
	KeySubsonicBaseURL       = "subsonic.base_url"
	KeySubsonicPort          = "subsonic.port"
	KeySubsonicUsername      = "subsonic.username"
	KeySubsonicPassword      = "subsonic.password"
	KeySubsonicServerPath    = "subsonic.server_path"
	KeySubsonicLegacyAuth    = "subsonic.legacy_auth"
	KeyDiscordAppID          = "discord.app_id"
	KeyDiscordActivityName   = "discord.activity_name"
	KeyDumpUPnPData          = "debug.dump_upnp_data"
	KeyDumpEventKeys         = "debug.dump_event_keys"
	KeyDumpEventKeyValues    = "debug.dump_event_key_values"
	KeyOutputFormat          = "output.format"
	KeyOutputWidth           = "output.width"
	KeyMarqueeEnabled        = "output.marquee_enabled"
	KeyMarqueeSpeed          = "output.marquee_speed"
	KeyMarqueeSeparator      = "output.marquee_separator"
)

// Param declares one setting: its key, the bare environment variables that
// also set it, and its default.
type Param struct {
	Key     string
	Env     []string
	Default any
}

// Params is every setting the application reads. Each key can also be set
// through UPNP_SCRIBBLES_<KEY> with dots replaced by underscores.
var Params = []Param{
	{Key: KeyDeviceURL, Env: []string{"DEVICE_URL"}},
	{Key: KeyDeviceName, Env: []string{"DEVICE_NAME"}},
	{Key: KeyDeviceUDN, Env: []string{"DEVICE_UDN"}},
	{Key: KeyCallbackHost, Env: []string{"CALLBACK_HOST"}},
	{Key: KeyDurationThreshold, Env: []string{"DURATION_THRESHOLD"}, Default: 240},
	{Key: KeyAssumedDuration, Env: []string{"ASSUMED_DURATION"}, Default: 120},
	{Key: KeyMinimumRepeatInterval, Env: []string{"MINIMUM_REPEAT_INTERVAL", "MINIMUM_DELTA"}, Default: 10.0},
	{Key: KeyNowPlaying, Env: []string{"ENABLE_NOW_PLAYING"}, Default: true},
	{Key: KeyRetryFailed, Default: true},
	{Key: KeyRetryInterval, Default: 30},
	{Key: KeyLastFMAPIKey, Env: []string{"LAST_FM_API_KEY"}},
	{Key: KeyLastFMAPISecret, Env: []string{"LAST_FM_SHARED_SECRET"}},
	{Key: KeyLastFMSessionKey, Env: []string{"LAST_FM_SESSION_KEY"}},
	{Key: KeySubsonicBaseURL, Env: []string{"SUBSONIC_BASE_URL"}},
	{Key: KeySubsonicPort, Env: []string{"SUBSONIC_PORT"}, Default: 0},
	{Key: KeySubsonicUsername, Env: []string{"SUBSONIC_USERNAME"}},
	{Key: KeySubsonicPassword, Env: []string{"SUBSONIC_PASSWORD"}},
	{Key: KeySubsonicServerPath, Env: []string{"SUBSONIC_SERVER_PATH"}},
	{Key: KeySubsonicLegacyAuth, Env: []string{"SUBSONIC_LEGACY_AUTH"}, Default: false},
	{Key: KeyDiscordAppID, Env: []string{"DISCORD_APP_ID"}},
	{Key: KeyDiscordActivityName, Default: "Music"},
	{Key: KeyDumpUPnPData, Env: []string{"DUMP_UPNP_DATA"}, Default: false},
	{Key: KeyDumpEventKeys, Env: []string{"DUMP_EVENT_KEYS"}, Default: false},
	{Key: KeyDumpEventKeyValues, Env: []string{"DUMP_EVENT_KEY_VALUES"}, Default: false},
	{Key: KeyOutputFormat, Default: "{{.Artist}} - {{.Title}}"},
	{Key: KeyOutputWidth, Default: 0},
	{Key: KeyMarqueeEnabled, Default: false},
	{Key: KeyMarqueeSpeed, Default: 2},
	{Key: KeyMarqueeSeparator, Default: " • "},
}

// envName is the prefixed variable AutomaticEnv would look up for key.
func envName(key string) string {
	return "UPNP_SCRIBBLES_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

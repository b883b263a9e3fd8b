package music

// PlayState represents the transport state reported by the renderer
type PlayState int

const (
	StateUnknown       PlayState = iota // Unrecognized or not yet reported
	StatePlaying                        // Track is currently playing
	StatePaused                         // Track is paused
	StateStopped                        // Playback stopped
	StateTransitioning                  // Renderer is buffering or changing tracks
)

// Raw AVTransport TransportState values
const (
	rawUnknown       = ""
	rawPlaying       = "PLAYING"
	rawPaused        = "PAUSED_PLAYBACK"
	rawStopped       = "STOPPED"
	rawTransitioning = "TRANSITIONING"
)

// ParsePlayState maps a raw TransportState token to a PlayState.
// Anything it does not recognize is StateUnknown.
func ParsePlayState(raw string) PlayState {
	switch raw {
	case rawPlaying:
		return StatePlaying
	case rawPaused:
		return StatePaused
	case rawStopped:
		return StateStopped
	case rawTransitioning:
		return StateTransitioning
	case rawUnknown:
		return StateUnknown
	default:
		return StateUnknown
	}
}

// String returns a human-readable representation of the PlayState
func (s PlayState) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	case StateTransitioning:
		return "transitioning"
	default:
		return "unknown"
	}
}

// MarshalText lets PlayState appear by name in the state file
func (s PlayState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText is the inverse of MarshalText
func (s *PlayState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "playing":
		*s = StatePlaying
	case "paused":
		*s = StatePaused
	case "stopped":
		*s = StateStopped
	case "transitioning":
		*s = StateTransitioning
	default:
		*s = StateUnknown
	}
	return nil
}

package music

import "testing"

func TestParsePlayState(t *testing.T) {
	tests := []struct {
		raw      string
		expected PlayState
	}{
		{raw: "PLAYING", expected: StatePlaying},
		{raw: "PAUSED_PLAYBACK", expected: StatePaused},
		{raw: "STOPPED", expected: StateStopped},
		{raw: "TRANSITIONING", expected: StateTransitioning},
		{raw: "", expected: StateUnknown},
		{raw: "NO_MEDIA_PRESENT", expected: StateUnknown},
		{raw: "playing", expected: StateUnknown},
		{raw: " PLAYING", expected: StateUnknown},
	}

	for _, tt := range tests {
		if got := ParsePlayState(tt.raw); got != tt.expected {
			t.Errorf("ParsePlayState(%q) = %v, expected %v", tt.raw, got, tt.expected)
		}
	}
}

func TestPlayStateTextRoundTrip(t *testing.T) {
	for _, s := range []PlayState{StateUnknown, StatePlaying, StatePaused, StateStopped, StateTransitioning} {
		text, err := s.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText: %v", err)
		}
		var got PlayState
		if err := got.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText: %v", err)
		}
		if got != s {
			t.Errorf("round trip of %v gave %v", s, got)
		}
	}
}

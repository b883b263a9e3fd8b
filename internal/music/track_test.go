package music

import (
	"testing"
	"time"
)

func sampleTrack() *Track {
	return &Track{
		Title:        "On The Run (Part 1)",
		Subtitle:     "Live",
		Artist:       "Seamus Blake, Ari Hoenig",
		Album:        "The Jazz Side of the Moon",
		Duration:     200 * time.Second,
		TrackURI:     "http://192.168.1.173:49139/subsonic/track/version/1/trackId/tr-105133",
		TransportURI: "http://192.168.1.173:49139/queue",
		ObservedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestSameTrack(t *testing.T) {
	base := sampleTrack()

	tests := []struct {
		name     string
		mutate   func(*Track)
		expected bool
	}{
		{name: "identical copy", mutate: func(*Track) {}, expected: true},
		{name: "different track uri", mutate: func(tr *Track) { tr.TrackURI = "http://other/1" }, expected: true},
		{name: "different transport uri", mutate: func(tr *Track) { tr.TransportURI = "" }, expected: true},
		{name: "different observation time", mutate: func(tr *Track) { tr.ObservedAt = tr.ObservedAt.Add(time.Hour) }, expected: true},
		{name: "different title", mutate: func(tr *Track) { tr.Title = "Breathe" }, expected: false},
		{name: "different subtitle", mutate: func(tr *Track) { tr.Subtitle = "" }, expected: false},
		{name: "different artist", mutate: func(tr *Track) { tr.Artist = "Seamus Blake" }, expected: false},
		{name: "different album", mutate: func(tr *Track) { tr.Album = "" }, expected: false},
		{name: "duration now known", mutate: func(tr *Track) { tr.Duration = 0 }, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := base.Copy()
			tt.mutate(other)
			if got := SameTrack(base, other); got != tt.expected {
				t.Errorf("SameTrack() = %v, expected %v", got, tt.expected)
			}
			if got := SameTrack(other, base); got != tt.expected {
				t.Errorf("SameTrack() is not symmetric: got %v", got)
			}
		})
	}
}

func TestSameTrackNil(t *testing.T) {
	if !SameTrack(nil, nil) {
		t.Error("two absent tracks should compare equal")
	}
	if SameTrack(sampleTrack(), nil) || SameTrack(nil, sampleTrack()) {
		t.Error("absent track should not equal a present one")
	}
}

func TestCopyIsIndependent(t *testing.T) {
	original := sampleTrack()
	copied := original.Copy()

	if !SameTrack(copied, original) {
		t.Fatal("copy should be the same track")
	}
	if !copied.ObservedAt.Equal(original.ObservedAt) {
		t.Error("copy should keep the observation time")
	}

	copied.Title = "changed"
	if original.Title == "changed" {
		t.Error("mutating the copy changed the original")
	}

	var none *Track
	if none.Copy() != nil {
		t.Error("copy of nil should be nil")
	}
}

func TestIsEmpty(t *testing.T) {
	tests := []struct {
		name     string
		track    *Track
		expected bool
	}{
		{name: "nil", track: nil, expected: true},
		{name: "zero value", track: &Track{}, expected: true},
		{name: "artist only", track: &Track{Artist: "A, B"}, expected: true},
		{name: "artist and duration", track: &Track{Artist: "A", Duration: time.Minute}, expected: true},
		{name: "title only", track: &Track{Title: "Song"}, expected: false},
		{name: "album only", track: &Track{Album: "Album"}, expected: false},
		{name: "full", track: sampleTrack(), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.track.IsEmpty(); got != tt.expected {
				t.Errorf("IsEmpty() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestFirstArtist(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "Seamus Blake, Ari Hoenig", expected: "Seamus Blake"},
		{input: "Seamus Blake, Ari Hoenig, Mike Moreno, Sam Yahel", expected: "Seamus Blake"},
		{input: "The Cranberries", expected: "The Cranberries"},
		{input: "taylor swift/bon iver", expected: "taylor swift/bon iver"},
		{input: " Leading Space ,x", expected: "Leading Space"},
		{input: "", expected: ""},
	}

	for _, tt := range tests {
		if got := FirstArtist(tt.input); got != tt.expected {
			t.Errorf("FirstArtist(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestKey(t *testing.T) {
	a := sampleTrack()
	b := a.Copy()
	b.TrackURI = "elsewhere"
	b.ObservedAt = time.Now()

	if a.Key() != b.Key() {
		t.Error("same logical track should produce the same key")
	}

	b.Title = "Other"
	if a.Key() == b.Key() {
		t.Error("different tracks should produce different keys")
	}
}

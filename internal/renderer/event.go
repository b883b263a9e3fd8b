// Package renderer talks to a UPnP AV MediaRenderer: it subscribes to the
// AVTransport service, turns NOTIFY bodies into batches of state variables and
// decodes those batches into player state and track metadata.
package renderer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jfmyers9/upnp-scribbles/internal/music"
)

// AVTransport state variable names
const (
	VarTransportState         = "TransportState"
	VarCurrentPlayMode        = "CurrentPlayMode"
	VarCurrentTrackMetaData   = "CurrentTrackMetaData"
	VarAVTransportURIMetaData = "AVTransportURIMetaData"
	VarCurrentTrackURI        = "CurrentTrackURI"
	VarAVTransportURI         = "AVTransportURI"
)

// notImplemented is what renderers send for variables they do not support.
const notImplemented = "NOT_IMPLEMENTED"

// ErrMalformedMetadata is wrapped by decode errors for unparseable DIDL-Lite.
var ErrMalformedMetadata = errors.New("malformed track metadata")

// Variable is one named state variable update.
type Variable struct {
	Name  string
	Value string
}

// Batch is the set of variables delivered together by one notification.
type Batch []Variable

// Lookup returns the value of the named variable and whether it was present.
// When a name repeats, the last value wins.
func (b Batch) Lookup(name string) (string, bool) {
	var (
		value string
		found bool
	)
	for _, v := range b {
		if v.Name == name {
			value, found = v.Value, true
		}
	}
	return value, found
}

// Names returns the variable names in delivery order.
func (b Batch) Names() []string {
	names := make([]string, len(b))
	for i, v := range b {
		names[i] = v.Name
	}
	return names
}

// Event is the decoded form of a Batch. HasState is false when the batch did
// not mention TransportState; Track is nil when no usable metadata arrived.
type Event struct {
	State    music.PlayState
	HasState bool
	Track    *music.Track
	Errors   []error
}

// Decode extracts player state and track metadata from a batch. It never
// fails as a whole: a broken field is reported in Event.Errors and treated as
// absent. Decoded tracks are stamped with now.
func Decode(batch Batch, now time.Time) Event {
	var ev Event

	if raw, ok := batch.Lookup(VarTransportState); ok {
		ev.State = music.ParsePlayState(raw)
		ev.HasState = true
	}

	for _, name := range []string{VarCurrentTrackMetaData, VarAVTransportURIMetaData} {
		raw, ok := batch.Lookup(name)
		if !ok || isBlank(raw) {
			continue
		}

		track, err := decodeDIDL(raw)
		if err != nil {
			ev.Errors = append(ev.Errors, fmt.Errorf("%s: %w", name, err))
			continue
		}
		if track == nil {
			continue
		}

		track.ObservedAt = now
		ev.Track = track
		break
	}

	if ev.Track != nil {
		if uri, ok := batch.Lookup(VarCurrentTrackURI); ok && !isBlank(uri) {
			ev.Track.TrackURI = uri
		}
		if uri, ok := batch.Lookup(VarAVTransportURI); ok && !isBlank(uri) {
			ev.Track.TransportURI = uri
		}
	}

	return ev
}

func isBlank(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || s == notImplemented
}

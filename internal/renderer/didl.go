package renderer

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/jfmyers9/upnp-scribbles/internal/music"
)

// didlLite is the subset of a DIDL-Lite document we read. Tags carry local
// names only so that renderers which forget namespace declarations still decode.
type didlLite struct {
	XMLName xml.Name   `xml:"DIDL-Lite"`
	Items   []didlItem `xml:"item"`
}

type didlItem struct {
	Title    string    `xml:"title"`
	Subtitle string    `xml:"subtitle"`
	Artists  []string  `xml:"artist"`
	Creator  string    `xml:"creator"`
	Album    string    `xml:"album"`
	Res      []didlRes `xml:"res"`
}

type didlRes struct {
	Duration string `xml:"duration,attr"`
	URI      string `xml:",chardata"`
}

// decodeDIDL parses a DIDL-Lite payload. A document without an item is not an
// error; it yields a nil track.
func decodeDIDL(raw string) (*music.Track, error) {
	var doc didlLite
	if err := xml.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMetadata, err)
	}
	if len(doc.Items) == 0 {
		return nil, nil
	}

	item := doc.Items[0]
	track := &music.Track{
		Title:    strings.TrimSpace(item.Title),
		Subtitle: strings.TrimSpace(item.Subtitle),
		Album:    strings.TrimSpace(item.Album),
	}

	for _, a := range item.Artists {
		if a = strings.TrimSpace(a); a != "" {
			track.Artist = a
			break
		}
	}
	if track.Artist == "" {
		track.Artist = strings.TrimSpace(item.Creator)
	}

	for _, res := range item.Res {
		if res.Duration != "" {
			track.Duration = music.ParseDuration(res.Duration)
			break
		}
	}

	return track, nil
}

package library

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/jfmyers9/upnp-scribbles/internal/music"
	"github.com/jfmyers9/upnp-scribbles/pkg/subsonic"
)

// searchPasses are the result sizes tried in turn when matching by title.
var searchPasses = []int{10, 50}

// Searcher is the subset of the Subsonic client the matcher needs.
type Searcher interface {
	Search3(ctx context.Context, query string, opts subsonic.SearchOptions) ([]subsonic.Song, error)
}

// Matcher finds a library song for renderer metadata that carries no id.
type Matcher struct {
	search Searcher
}

func NewMatcher(search Searcher) *Matcher {
	return &Matcher{search: search}
}

// FindTrack searches by title and returns the first song whose title, artist
// and (when given) album agree with the metadata. It returns
// subsonic.ErrNotFound when nothing fits.
func (m *Matcher) FindTrack(ctx context.Context, title, artist, album string) (*subsonic.Song, error) {
	if title == "" {
		return nil, fmt.Errorf("empty title: %w", subsonic.ErrNotFound)
	}

	wantTitle := normalize(title)
	wantArtist := normalize(music.FirstArtist(artist))
	wantAlbum := normalize(album)

	for _, count := range searchPasses {
		songs, err := m.search.Search3(ctx, title, subsonic.SearchOptions{SongCount: count})
		if err != nil {
			return nil, fmt.Errorf("search %q: %w", title, err)
		}

		for i := range songs {
			if matches(&songs[i], wantTitle, wantArtist, wantAlbum) {
				return &songs[i], nil
			}
		}

		if len(songs) < count {
			break
		}
	}

	return nil, subsonic.ErrNotFound
}

func matches(song *subsonic.Song, title, artist, album string) bool {
	if normalize(song.Title) != title {
		return false
	}
	if artist != "" {
		got := normalize(song.Artist)
		if !strings.Contains(got, artist) && !strings.Contains(artist, got) {
			return false
		}
	}
	if album != "" && normalize(song.Album) != album {
		return false
	}
	return true
}

var versionSuffixes = []string{
	" (remastered)",
	" (remaster)",
	" - remastered",
	" - remaster",
	" [remastered]",
}

// normalize lowercases s, drops remaster tags and punctuation, and collapses
// whitespace, hyphens and underscores into single spaces.
func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, suffix := range versionSuffixes {
		s = strings.TrimSuffix(s, suffix)
	}

	var b strings.Builder
	lastWasSpace := true
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastWasSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_':
			if !lastWasSpace {
				b.WriteRune(' ')
				lastWasSpace = true
			}
		}
	}

	return strings.TrimRight(b.String(), " ")
}

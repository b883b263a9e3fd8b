package discord

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// negativeCacheTTL is how long a failed lookup is remembered before the
// album is searched again.
const negativeCacheTTL = 30 * time.Minute

// artworkLookup finds cover art through the iTunes Search API. Hits are
// cached for the life of the process, misses for negativeCacheTTL.
type artworkLookup struct {
	mu       sync.Mutex
	cache    map[string]artworkEntry
	client   *http.Client
	endpoint string
	clock    clockwork.Clock
}

type artworkEntry struct {
	url      string
	cachedAt time.Time
}

func newArtworkLookup() *artworkLookup {
	return &artworkLookup{
		cache: make(map[string]artworkEntry),
		client: &http.Client{
			Timeout: 3 * time.Second,
		},
		endpoint: "https://itunes.apple.com/search",
		clock:    clockwork.NewRealClock(),
	}
}

type itunesResponse struct {
	Results []itunesResult `json:"results"`
}

type itunesResult struct {
	ArtworkURL100 string `json:"artworkUrl100"`
}

// Lookup returns a cover URL for the album, falling back to a song search
// by title. Any failure yields "": artwork is optional.
func (a *artworkLookup) Lookup(ctx context.Context, artist, album, title string) string {
	key := artist + "|" + album
	now := a.clock.Now()

	a.mu.Lock()
	if e, ok := a.cache[key]; ok && (e.url != "" || now.Sub(e.cachedAt) < negativeCacheTTL) {
		a.mu.Unlock()
		return e.url
	}
	a.mu.Unlock()

	var artURL string
	if album != "" {
		artURL = a.fetch(ctx, artist+" "+album, "album")
	}
	if artURL == "" {
		term := title
		if term == "" {
			term = album
		}
		if term != "" {
			artURL = a.fetch(ctx, artist+" "+term, "song")
		}
	}

	// A miss caused by the caller giving up says nothing about the album.
	if artURL == "" && ctx.Err() != nil {
		return ""
	}

	a.mu.Lock()
	a.cache[key] = artworkEntry{url: artURL, cachedAt: now}
	a.mu.Unlock()

	return artURL
}

func (a *artworkLookup) fetch(ctx context.Context, term, entity string) string {
	query := url.Values{
		"term":   {term},
		"entity": {entity},
		"limit":  {"1"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return ""
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	var result itunesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return ""
	}
	if len(result.Results) == 0 || result.Results[0].ArtworkURL100 == "" {
		return ""
	}

	// 100x100 is the only size the API names; the CDN serves any size.
	return strings.Replace(result.Results[0].ArtworkURL100, "100x100bb", "600x600bb", 1)
}

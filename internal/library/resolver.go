package library

import (
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/jfmyers9/upnp-scribbles/pkg/subsonic"
)

// upmpdcliTrackDir is the path prefix upmpdcli uses when proxying a Subsonic
// track: /subsonic/track/version/1/trackId/<id>.
const upmpdcliTrackDir = "/subsonic/track/version/1/trackId"

// Resolver extracts library ids from the stream URIs a renderer reports.
type Resolver struct {
	origin string // scheme://host:port of the library
}

// NewResolver builds a resolver for the library at baseURL. A zero port is
// derived from the scheme.
func NewResolver(baseURL string, port int) *Resolver {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Hostname() == "" {
		return &Resolver{}
	}
	if port == 0 {
		if p := u.Port(); p != "" {
			port, _ = strconv.Atoi(p)
		} else {
			port = subsonic.DefaultPort(baseURL)
		}
	}
	return &Resolver{origin: origin(u.Scheme, u.Hostname(), port)}
}

// ResolveTrackID returns the library id encoded in uri, if any.
func (r *Resolver) ResolveTrackID(uri string) (string, bool) {
	if uri == "" {
		return "", false
	}
	u, err := url.Parse(uri)
	if err != nil || u.Hostname() == "" {
		return "", false
	}

	port := 0
	if p := u.Port(); p != "" {
		port, _ = strconv.Atoi(p)
	} else {
		port = subsonic.DefaultPort(u.Scheme)
	}

	if r.origin != "" && origin(u.Scheme, u.Hostname(), port) == r.origin {
		ids := u.Query()["id"]
		if len(ids) != 1 || ids[0] == "" {
			return "", false
		}
		return ids[0], true
	}

	dir, id := path.Split(u.Path)
	if strings.TrimSuffix(dir, "/") != upmpdcliTrackDir || id == "" {
		return "", false
	}
	return id, true
}

func origin(scheme, host string, port int) string {
	return strings.ToLower(scheme) + "://" + strings.ToLower(host) + ":" + strconv.Itoa(port)
}

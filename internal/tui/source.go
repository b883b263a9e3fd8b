package tui

import (
	"context"

	"github.com/jfmyers9/upnp-scribbles/internal/daemon"
	"github.com/jfmyers9/upnp-scribbles/internal/scrobbler"
)

// FileSource reads the daemon's state file and, when open, its journal.
type FileSource struct {
	StatePath string
	Journal   *scrobbler.Queue // optional
}

func (s *FileSource) Status() (*daemon.Status, error) {
	return daemon.ReadStatus(s.StatePath)
}

func (s *FileSource) Recent(ctx context.Context, limit int) ([]scrobbler.QueuedScrobble, error) {
	if s.Journal == nil {
		return nil, nil
	}
	return s.Journal.GetRecent(ctx, limit)
}

func (s *FileSource) Pending(ctx context.Context) (int, error) {
	if s.Journal == nil {
		return 0, nil
	}
	return s.Journal.Count(ctx, false)
}

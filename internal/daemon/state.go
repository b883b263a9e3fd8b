package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jfmyers9/upnp-scribbles/internal/music"
)

// DefaultPersistInterval bounds how often unchanged-track updates hit disk.
const DefaultPersistInterval = 5 * time.Second

// Status is what the daemon publishes for the now command.
type Status struct {
	Connection    ConnState       `json:"connection"`
	Device        string          `json:"device,omitempty"`
	State         music.PlayState `json:"state"`
	Track         *music.Track    `json:"track,omitempty"`
	LastScrobbled *music.Track    `json:"last_scrobbled,omitempty"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Playing reports whether a track is loaded and the renderer is playing it.
func (s *Status) Playing() bool {
	return s.Track != nil && s.State == music.StatePlaying
}

// StateFile persists Status to disk. Track and connection changes are
// written immediately; other updates at most once per persist interval.
type StateFile struct {
	mu              sync.Mutex
	current         Status
	filePath        string
	persistInterval time.Duration
	lastPersist     time.Time
	dirty           bool
}

// NewStateFile creates a StateFile. An existing file is restored so the
// last scrobble survives restarts; a restore error is returned alongside a
// usable empty state.
func NewStateFile(filePath string) (*StateFile, error) {
	s := &StateFile{
		filePath:        filePath,
		persistInterval: DefaultPersistInterval,
	}

	if filePath != "" {
		st, err := ReadStatus(filePath)
		if err != nil && !os.IsNotExist(err) {
			return s, err
		}
		if st != nil {
			// Connection state is never carried over.
			s.current = Status{LastScrobbled: st.LastScrobbled}
		}
	}

	return s, nil
}

// Update records the engine's view of playback.
func (s *StateFile) Update(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := s.current.State != snap.State ||
		!music.SameTrack(s.current.Track, snap.Current) ||
		!music.SameTrack(s.current.LastScrobbled, snap.LastScrobbled)

	s.current.State = snap.State
	s.current.Track = snap.Current
	if snap.LastScrobbled != nil {
		s.current.LastScrobbled = snap.LastScrobbled
	}
	s.current.UpdatedAt = time.Now()

	if changed {
		return s.persist()
	}
	return s.throttledPersist()
}

// SetConnection records the renderer connection state.
func (s *StateFile) SetConnection(state ConnState, device string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.Connection = state
	if device != "" {
		s.current.Device = device
	}
	if state != ConnSubscribed {
		s.current.State = music.StateUnknown
		s.current.Track = nil
	}
	s.current.UpdatedAt = time.Now()
	return s.persist()
}

// Get returns a copy of the current status.
func (s *StateFile) Get() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.current
	st.Track = s.current.Track.Copy()
	st.LastScrobbled = s.current.LastScrobbled.Copy()
	return st
}

// Flush writes pending changes skipped by throttling.
func (s *StateFile) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}
	return s.persist()
}

// throttledPersist writes only if the persist interval has elapsed.
// Must be called with lock held.
func (s *StateFile) throttledPersist() error {
	if time.Since(s.lastPersist) < s.persistInterval {
		s.dirty = true
		return nil
	}
	return s.persist()
}

// persist writes the status atomically via temp file + rename.
// Must be called with lock held.
func (s *StateFile) persist() error {
	if s.filePath == "" {
		return nil
	}

	data, err := json.MarshalIndent(s.current, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmpPath := s.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := os.Rename(tmpPath, s.filePath); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	s.lastPersist = time.Now()
	s.dirty = false
	return nil
}

// ReadStatus loads a status file written by a running daemon.
func ReadStatus(filePath string) (*Status, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var st Status
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	return &st, nil
}

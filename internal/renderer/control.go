package renderer

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/huin/goupnp/dcps/av1"

	"github.com/jfmyers9/upnp-scribbles/internal/music"
)

// ErrNoRenderingControl is returned for volume actions on devices without a
// RenderingControl service.
var ErrNoRenderingControl = errors.New("renderer has no RenderingControl service")

// avTransport is the subset of the generated AVTransport client in use.
type avTransport interface {
	PlayCtx(ctx context.Context, InstanceID uint32, Speed string) error
	PauseCtx(ctx context.Context, InstanceID uint32) error
	StopCtx(ctx context.Context, InstanceID uint32) error
	NextCtx(ctx context.Context, InstanceID uint32) error
	PreviousCtx(ctx context.Context, InstanceID uint32) error
	GetTransportInfoCtx(ctx context.Context, InstanceID uint32) (CurrentTransportState string, CurrentTransportStatus string, CurrentSpeed string, err error)
	GetTransportSettingsCtx(ctx context.Context, InstanceID uint32) (PlayMode string, RecQualityMode string, err error)
	SetPlayModeCtx(ctx context.Context, InstanceID uint32, NewPlayMode string) error
}

// renderingControl is the subset of the generated RenderingControl client
// in use.
type renderingControl interface {
	GetVolumeCtx(ctx context.Context, InstanceID uint32, Channel string) (CurrentVolume uint16, err error)
	SetVolumeCtx(ctx context.Context, InstanceID uint32, Channel string, DesiredVolume uint16) error
}

const (
	playModeNormal  = "NORMAL"
	playModeShuffle = "SHUFFLE"
	masterChannel   = "Master"
)

// Controller sends transport actions to a renderer's first AVTransport
// instance.
type Controller struct {
	transport avTransport
	rendering renderingControl // nil when the device has no RenderingControl
}

// NewController connects to the AVTransport service of the device described
// at location.
func NewController(ctx context.Context, location string) (*Controller, error) {
	loc, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("invalid device location %q: %w", location, err)
	}

	clients, err := av1.NewAVTransport1ClientsByURLCtx(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("failed to reach AVTransport: %w", err)
	}
	if len(clients) == 0 {
		return nil, ErrServiceNotFound
	}
	c := &Controller{transport: clients[0]}

	if rc, err := av1.NewRenderingControl1ClientsByURLCtx(ctx, loc); err == nil && len(rc) > 0 {
		c.rendering = rc[0]
	}
	return c, nil
}

func (c *Controller) Play(ctx context.Context) error {
	return c.wrap("Play", c.transport.PlayCtx(ctx, 0, "1"))
}

func (c *Controller) Pause(ctx context.Context) error {
	return c.wrap("Pause", c.transport.PauseCtx(ctx, 0))
}

func (c *Controller) Stop(ctx context.Context) error {
	return c.wrap("Stop", c.transport.StopCtx(ctx, 0))
}

func (c *Controller) Next(ctx context.Context) error {
	return c.wrap("Next", c.transport.NextCtx(ctx, 0))
}

func (c *Controller) Previous(ctx context.Context) error {
	return c.wrap("Previous", c.transport.PreviousCtx(ctx, 0))
}

// State asks the renderer for its transport state.
func (c *Controller) State(ctx context.Context) (music.PlayState, error) {
	state, _, _, err := c.transport.GetTransportInfoCtx(ctx, 0)
	if err != nil {
		return music.StateUnknown, c.wrap("GetTransportInfo", err)
	}
	return music.ParsePlayState(state), nil
}

// TogglePause pauses a playing renderer and resumes anything else.
func (c *Controller) TogglePause(ctx context.Context) (music.PlayState, error) {
	state, err := c.State(ctx)
	if err != nil {
		return state, err
	}
	if state == music.StatePlaying {
		return music.StatePaused, c.Pause(ctx)
	}
	return music.StatePlaying, c.Play(ctx)
}

// Shuffle reports whether the renderer's play mode is SHUFFLE.
func (c *Controller) Shuffle(ctx context.Context) (bool, error) {
	mode, _, err := c.transport.GetTransportSettingsCtx(ctx, 0)
	if err != nil {
		return false, c.wrap("GetTransportSettings", err)
	}
	return mode == playModeShuffle, nil
}

func (c *Controller) SetShuffle(ctx context.Context, enabled bool) error {
	mode := playModeNormal
	if enabled {
		mode = playModeShuffle
	}
	return c.wrap("SetPlayMode", c.transport.SetPlayModeCtx(ctx, 0, mode))
}

// Volume returns the master volume, 0-100.
func (c *Controller) Volume(ctx context.Context) (int, error) {
	if c.rendering == nil {
		return 0, ErrNoRenderingControl
	}
	v, err := c.rendering.GetVolumeCtx(ctx, 0, masterChannel)
	if err != nil {
		return 0, c.wrap("GetVolume", err)
	}
	return int(v), nil
}

// SetVolume sets the master volume. level must be within 0-100.
func (c *Controller) SetVolume(ctx context.Context, level int) error {
	if level < 0 || level > 100 {
		return fmt.Errorf("volume %d out of range 0-100", level)
	}
	if c.rendering == nil {
		return ErrNoRenderingControl
	}
	return c.wrap("SetVolume", c.rendering.SetVolumeCtx(ctx, 0, masterChannel, uint16(level)))
}

func (c *Controller) wrap(action string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s failed: %w", action, err)
}

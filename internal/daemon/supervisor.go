package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/jfmyers9/upnp-scribbles/internal/renderer"
)

// Supervisor defaults
const (
	DefaultRetryDelay     = 5 * time.Second
	DefaultTickInterval   = 10 * time.Second
	DefaultKeepAliveTicks = 12

	renewTimeout = 10 * time.Second
	closeTimeout = 5 * time.Second
)

var errSessionEnded = errors.New("renderer session ended")

// ConnState is the supervisor's view of the renderer connection.
type ConnState int

const (
	ConnDisconnected ConnState = iota
	ConnConnecting
	ConnSubscribed
)

func (s ConnState) String() string {
	switch s {
	case ConnConnecting:
		return "connecting"
	case ConnSubscribed:
		return "subscribed"
	default:
		return "disconnected"
	}
}

// MarshalText lets ConnState appear by name in the state file
func (s ConnState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText is the inverse of MarshalText
func (s *ConnState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "connecting":
		*s = ConnConnecting
	case "subscribed":
		*s = ConnSubscribed
	default:
		*s = ConnDisconnected
	}
	return nil
}

// Session is one live event subscription.
type Session interface {
	Events() <-chan renderer.Batch
	Done() <-chan struct{}
	Err() error
	Renew(ctx context.Context) error
	Close(ctx context.Context) error
}

// Connector opens sessions to the renderer.
type Connector interface {
	Connect(ctx context.Context) (Session, error)
}

// EventHandler consumes event batches. Reset is called whenever a session
// is lost.
type EventHandler interface {
	Ingest(ctx context.Context, batch renderer.Batch)
	Reset()
}

// SupervisorConfig holds reconnect and keep-alive timing.
type SupervisorConfig struct {
	RetryDelay     time.Duration // Wait between failed connection attempts
	TickInterval   time.Duration // Keep-alive tick period
	KeepAliveTicks int           // Ticks between subscription renewals
}

// DefaultSupervisorConfig renews every two minutes and retries every 5s.
func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		RetryDelay:     DefaultRetryDelay,
		TickInterval:   DefaultTickInterval,
		KeepAliveTicks: DefaultKeepAliveTicks,
	}
}

// Supervisor keeps a renderer subscription alive and feeds its events to a
// handler. Events are handled on the goroutine that calls Run.
type Supervisor struct {
	cfg       SupervisorConfig
	connector Connector
	handler   EventHandler
	clock     clockwork.Clock
	logger    zerolog.Logger
	onState   func(ConnState)
}

// NewSupervisor creates a supervisor. A nil clock means the real clock.
func NewSupervisor(cfg SupervisorConfig, connector Connector, handler EventHandler, clock clockwork.Clock, logger zerolog.Logger) *Supervisor {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.KeepAliveTicks <= 0 {
		cfg.KeepAliveTicks = DefaultKeepAliveTicks
	}
	return &Supervisor{
		cfg:       cfg,
		connector: connector,
		handler:   handler,
		clock:     clock,
		logger:    logger.With().Str("component", "supervisor").Logger(),
	}
}

// OnStateChange registers fn to be called on every connection state change.
func (s *Supervisor) OnStateChange(fn func(ConnState)) {
	s.onState = fn
}

// Run connects, serves and reconnects until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	s.logger.Info().
		Dur("retry_delay", s.cfg.RetryDelay).
		Dur("keep_alive", s.cfg.TickInterval*time.Duration(s.cfg.KeepAliveTicks)).
		Msg("Starting supervisor")

	for {
		sess, err := s.connect(ctx)
		if err != nil {
			s.setState(ConnDisconnected)
			return err
		}

		s.setState(ConnSubscribed)
		err = s.serve(ctx, sess)

		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		if cerr := sess.Close(cctx); cerr != nil {
			s.logger.Debug().Err(cerr).Msg("Failed to close session")
		}
		cancel()

		s.handler.Reset()
		s.setState(ConnDisconnected)

		if ctx.Err() != nil {
			s.logger.Info().Msg("Supervisor stopped")
			return ctx.Err()
		}
		s.logger.Warn().Err(err).Msg("Renderer connection lost, reconnecting")
	}
}

// connect retries the connector every RetryDelay until it succeeds or ctx
// ends.
func (s *Supervisor) connect(ctx context.Context) (Session, error) {
	s.setState(ConnConnecting)

	var sess Session
	op := func() error {
		var err error
		sess, err = s.connector.Connect(ctx)
		return err
	}
	notify := func(err error, wait time.Duration) {
		s.logger.Warn().Err(err).Dur("retry_in", wait).Msg("Failed to connect to renderer")
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(s.cfg.RetryDelay), ctx)
	if err := backoff.RetryNotifyWithTimer(op, b, notify, &clockTimer{clock: s.clock}); err != nil {
		return nil, err
	}

	s.logger.Info().Msg("Subscribed to renderer")
	return sess, nil
}

// serve handles events until the session fails or ctx ends. The keep-alive
// ticker belongs to this phase and is stopped before any reconnect.
func (s *Supervisor) serve(ctx context.Context, sess Session) error {
	ticker := s.clock.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	ticks := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-sess.Done():
			if err := sess.Err(); err != nil {
				return err
			}
			return errSessionEnded

		case batch, ok := <-sess.Events():
			if !ok {
				return errSessionEnded
			}
			s.handler.Ingest(ctx, batch)

		case <-ticker.Chan():
			ticks++
			if ticks < s.cfg.KeepAliveTicks {
				continue
			}
			ticks = 0

			rctx, cancel := context.WithTimeout(ctx, renewTimeout)
			err := sess.Renew(rctx)
			cancel()
			if err != nil {
				return fmt.Errorf("failed to renew subscription: %w", err)
			}
			s.logger.Debug().Msg("Renewed subscription")
		}
	}
}

func (s *Supervisor) setState(state ConnState) {
	if s.onState != nil {
		s.onState(state)
	}
}

// clockTimer adapts a clockwork clock to backoff.Timer.
type clockTimer struct {
	clock clockwork.Clock
	timer clockwork.Timer
}

func (t *clockTimer) Start(d time.Duration) {
	if t.timer == nil {
		t.timer = t.clock.NewTimer(d)
		return
	}
	t.timer.Reset(d)
}

func (t *clockTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *clockTimer) C() <-chan time.Time {
	return t.timer.Chan()
}

package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/upnp-scribbles/internal/renderer"
	"github.com/jfmyers9/upnp-scribbles/internal/scrobbler"
)

const (
	// DefaultRetryInterval is how often failed scrobbles are resubmitted.
	DefaultRetryInterval = 30 * time.Second

	// DefaultCleanupAge is how long scrobbled journal rows are kept.
	DefaultCleanupAge = 7 * 24 * time.Hour

	// journalStaleAfter is how long an unfinished journal row may sit before
	// the retry loop assumes its submission died with a previous process.
	journalStaleAfter = time.Minute
)

// Config holds daemon configuration
type Config struct {
	StateFile     string        // Path to state persistence file
	QueueDB       string        // Path to scrobble journal database
	RetryInterval time.Duration // How often to resubmit failed scrobbles (0 disables)
	CleanupAge    time.Duration // Scrobbled journal rows older than this are dropped on shutdown

	Engine     EngineConfig
	Supervisor SupervisorConfig
}

// DeviceNamer is implemented by sessions that know the renderer's name.
type DeviceNamer interface {
	DeviceName() string
}

// Daemon wires the supervisor, engine, state file and scrobble journal
// together for one renderer.
type Daemon struct {
	config     Config
	connector  Connector
	engine     *Engine
	supervisor *Supervisor
	scrobble   *scrobbler.Client
	queue      *scrobbler.Queue
	state      *StateFile
	logger     zerolog.Logger

	device string // set on the supervisor goroutine
}

// New creates a new Daemon instance. reporter receives the engine's
// decisions; scrobbleClient, when set, gets the journal attached and is used
// by the retry loop.
func New(cfg Config, connector Connector, reporter scrobbler.Reporter, scrobbleClient *scrobbler.Client, logger zerolog.Logger) (*Daemon, error) {
	state, err := NewStateFile(cfg.StateFile)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.StateFile).Msg("Ignoring unreadable state file")
	}

	queue, err := scrobbler.NewQueue(cfg.QueueDB)
	if err != nil {
		return nil, fmt.Errorf("failed to create queue: %w", err)
	}

	if scrobbleClient != nil {
		scrobbleClient.WithJournal(queue).WithLogger(logger)
	}
	if cfg.CleanupAge <= 0 {
		cfg.CleanupAge = DefaultCleanupAge
	}

	d := &Daemon{
		config:    cfg,
		connector: connector,
		scrobble:  scrobbleClient,
		queue:     queue,
		state:     state,
		logger:    logger.With().Str("component", "daemon").Logger(),
	}
	d.engine = NewEngine(cfg.Engine, reporter, nil, logger)
	d.supervisor = NewSupervisor(cfg.Supervisor, connectorFunc(d.connect), d, nil, logger)
	d.supervisor.OnStateChange(d.connectionChanged)

	return d, nil
}

// Engine exposes the tracking engine, mainly to register diagnostic observers.
func (d *Daemon) Engine() *Engine {
	return d.engine
}

// Run starts the daemon and blocks until shutdown signal received
func (d *Daemon) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// First signal shuts down gracefully, a second forces exit
	go func() {
		select {
		case <-sigChan:
		case <-ctx.Done():
			return
		}
		d.logger.Info().Msg("Shutdown signal received, initiating graceful shutdown")
		cancel()

		<-sigChan
		d.logger.Warn().Msg("Second shutdown signal received, forcing exit")
		os.Exit(1)
	}()

	if err := d.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// run is the main daemon loop
func (d *Daemon) run(ctx context.Context) error {
	d.logger.Info().Msg("Starting daemon")

	var (
		wg     sync.WaitGroup
		runErr error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.retryScrobbles(ctx)
	}()

	// The supervisor owns the engine; everything it calls runs here.
	runErr = d.supervisor.Run(ctx)

	wg.Wait()
	d.logger.Info().Msg("Daemon stopped")
	return runErr
}

// Ingest implements EventHandler.
func (d *Daemon) Ingest(ctx context.Context, batch renderer.Batch) {
	d.engine.Ingest(ctx, batch)
	if err := d.state.Update(d.engine.Snapshot()); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to persist state")
	}
}

// Reset implements EventHandler.
func (d *Daemon) Reset() {
	d.engine.Reset()
	if err := d.state.Update(d.engine.Snapshot()); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to persist state")
	}
}

func (d *Daemon) connect(ctx context.Context) (Session, error) {
	sess, err := d.connector.Connect(ctx)
	if err != nil {
		return nil, err
	}
	if n, ok := sess.(DeviceNamer); ok {
		d.device = n.DeviceName()
	}
	return sess, nil
}

func (d *Daemon) connectionChanged(state ConnState) {
	d.logger.Debug().Stringer("state", state).Msg("Connection state changed")
	if err := d.state.SetConnection(state, d.device); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to persist state")
	}
}

// retryScrobbles periodically resubmits journal rows that failed.
func (d *Daemon) retryScrobbles(ctx context.Context) {
	if d.scrobble == nil || d.config.RetryInterval <= 0 {
		return
	}

	ticker := time.NewTicker(d.config.RetryInterval)
	defer ticker.Stop()

	// Rows left behind by a previous run go out immediately
	d.retryPending(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.retryPending(ctx)
		}
	}
}

func (d *Daemon) retryPending(ctx context.Context) {
	n, err := d.scrobble.RetryPending(ctx, time.Now().Add(-journalStaleAfter))
	if err != nil {
		if ctx.Err() == nil {
			d.logger.Warn().Err(err).Msg("Failed to resubmit pending scrobbles")
		}
		return
	}
	if n > 0 {
		d.logger.Info().Int("count", n).Msg("Resubmitted pending scrobbles")
	}
}

// Shutdown flushes state and closes the journal.
func (d *Daemon) Shutdown() error {
	d.logger.Info().Msg("Shutting down daemon")

	if err := d.state.Flush(); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to flush state")
	}

	ctx := context.Background()
	if n, err := d.queue.Cleanup(ctx, d.config.CleanupAge); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to cleanup queue")
	} else if n > 0 {
		d.logger.Debug().Int64("count", n).Msg("Removed old journal rows")
	}

	if err := d.queue.Close(); err != nil {
		return fmt.Errorf("failed to close queue: %w", err)
	}
	return nil
}

// connectorFunc adapts a function to Connector.
type connectorFunc func(ctx context.Context) (Session, error)

func (f connectorFunc) Connect(ctx context.Context) (Session, error) {
	return f(ctx)
}

package renderer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultSubscriptionTimeout is the lease requested from the renderer.
	DefaultSubscriptionTimeout = 300 * time.Second

	maxNotifyBody = 1 << 20
	eventBuffer   = 32
)

// ErrSubscriptionLost is returned by Renew when the renderer no longer knows
// the subscription.
var ErrSubscriptionLost = errors.New("subscription lost")

// Connector subscribes to a renderer's AVTransport events over GENA.
type Connector struct {
	Location     string        // Device description URL
	CallbackHost string        // Optional: local address the renderer can reach (default: auto-detected)
	Timeout      time.Duration // Requested subscription lease (default: 300s)
	HTTPClient   *http.Client  // Optional: HTTP client for SUBSCRIBE requests
	Logger       zerolog.Logger
}

// Subscription is a live GENA subscription with its own NOTIFY listener.
type Subscription struct {
	device  *Device
	client  *http.Client
	timeout time.Duration
	logger  zerolog.Logger

	server   *http.Server
	callback string
	events   chan Batch

	mu  sync.Mutex
	sid string

	doneOnce sync.Once
	done     chan struct{}
	err      error
}

// Subscribe describes the device, starts a callback listener and subscribes
// to AVTransport events.
func (c *Connector) Subscribe(ctx context.Context) (*Subscription, error) {
	dev, err := Describe(ctx, c.Location)
	if err != nil {
		return nil, err
	}

	host := c.CallbackHost
	if host == "" {
		host, err = localAddrFor(dev.EventSubURL.Host)
		if err != nil {
			return nil, err
		}
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return nil, fmt.Errorf("failed to start callback listener: %w", err)
	}

	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultSubscriptionTimeout
	}

	s := &Subscription{
		device:   dev,
		client:   client,
		timeout:  timeout,
		logger:   c.Logger.With().Str("component", "gena").Str("device", dev.FriendlyName).Logger(),
		callback: fmt.Sprintf("http://%s/notify", ln.Addr().String()),
		events:   make(chan Batch, eventBuffer),
		done:     make(chan struct{}),
	}
	s.server = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.fail(fmt.Errorf("callback listener stopped: %w", err))
		}
	}()

	if err := s.subscribe(ctx); err != nil {
		_ = s.server.Close()
		return nil, err
	}

	s.logger.Info().
		Str("callback", s.callback).
		Str("event_url", dev.EventSubURL.String()).
		Msg("Subscribed to AVTransport events")

	return s, nil
}

// Device returns the subscribed renderer.
func (s *Subscription) Device() *Device {
	return s.device
}

// Events delivers one Batch per NOTIFY.
func (s *Subscription) Events() <-chan Batch {
	return s.events
}

// Done is closed when the subscription has failed or been closed.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err returns the failure that closed Done, if any.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Renew extends the subscription lease.
func (s *Subscription) Renew(ctx context.Context) error {
	s.mu.Lock()
	sid := s.sid
	s.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, "SUBSCRIBE", s.device.EventSubURL.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("SID", sid)
	req.Header.Set("TIMEOUT", timeoutHeader(s.timeout))

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("resubscribe failed: %w", err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode == http.StatusPreconditionFailed {
		return ErrSubscriptionLost
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("resubscribe failed: unexpected status code: %d", resp.StatusCode)
	}

	s.logger.Debug().Str("sid", sid).Msg("Renewed subscription")
	return nil
}

// Close unsubscribes (best effort) and stops the callback listener.
func (s *Subscription) Close(ctx context.Context) error {
	s.mu.Lock()
	sid := s.sid
	s.mu.Unlock()

	if sid != "" {
		req, err := http.NewRequestWithContext(ctx, "UNSUBSCRIBE", s.device.EventSubURL.String(), nil)
		if err == nil {
			req.Header.Set("SID", sid)
			if resp, err := s.client.Do(req); err == nil {
				_ = resp.Body.Close()
			} else {
				s.logger.Debug().Err(err).Msg("Unsubscribe failed")
			}
		}
	}

	s.doneOnce.Do(func() { close(s.done) })
	return s.server.Shutdown(ctx)
}

// ServeHTTP accepts NOTIFY requests from the renderer.
func (s *Subscription) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != "NOTIFY" {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	sid := s.sid
	s.mu.Unlock()

	// The initial event may race the SUBSCRIBE response.
	if sid != "" && r.Header.Get("SID") != sid {
		http.Error(w, "unknown subscription", http.StatusPreconditionFailed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxNotifyBody))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	batch, err := ParseNotify(body)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Discarding unparseable NOTIFY")
		http.Error(w, "bad propertyset", http.StatusBadRequest)
		return
	}

	select {
	case s.events <- batch:
	case <-s.done:
	case <-r.Context().Done():
	}

	w.WriteHeader(http.StatusOK)
}

func (s *Subscription) subscribe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "SUBSCRIBE", s.device.EventSubURL.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("CALLBACK", "<"+s.callback+">")
	req.Header.Set("NT", "upnp:event")
	req.Header.Set("TIMEOUT", timeoutHeader(s.timeout))

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("subscribe failed: %w", err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("subscribe failed: unexpected status code: %d", resp.StatusCode)
	}

	sid := strings.TrimSpace(resp.Header.Get("SID"))
	if sid == "" {
		return errors.New("subscribe failed: renderer returned no SID")
	}

	s.mu.Lock()
	s.sid = sid
	s.mu.Unlock()
	return nil
}

func (s *Subscription) fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
	s.doneOnce.Do(func() { close(s.done) })
}

func timeoutHeader(d time.Duration) string {
	return fmt.Sprintf("Second-%d", int(d.Seconds()))
}

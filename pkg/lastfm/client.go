package lastfm

import (
	"fmt"
	"net/http"
	"sync"
	"time"
)

const (
	// DefaultBaseURL is the Last.fm API 2.0 endpoint.
	DefaultBaseURL = "https://ws.audioscrobbler.com/2.0/"

	// DefaultAuthURL is where users approve a request token.
	DefaultAuthURL = "https://www.last.fm/api/auth/"

	// DefaultMaxRetries is how many times a temporary failure is retried.
	DefaultMaxRetries = 2

	// DefaultRetryWait is the first backoff interval; it doubles up to 30s.
	DefaultRetryWait = time.Second
)

// Config holds client configuration.
type Config struct {
	APIKey     string        // Required: Last.fm API key
	APISecret  string        // Required: Last.fm shared secret
	SessionKey string        // Optional: session key for scrobbling
	HTTPClient *http.Client  // Optional: defaults to a client with a 30s timeout
	BaseURL    string        // Optional: API endpoint override (tests)
	UserAgent  string        // Optional: User-Agent header
	MaxRetries int           // Optional: retries for temporary failures (default 2, negative disables)
	RetryWait  time.Duration // Optional: initial backoff (default 1s)
	Logger     Logger        // Optional: debug logging
}

// Logger receives debug messages from the client.
type Logger interface {
	Debugf(format string, args ...any)
}

// Client is the entry point for Last.fm API operations. It is safe for
// concurrent use.
type Client struct {
	apiKey     string
	apiSecret  string
	httpClient *http.Client
	baseURL    string
	userAgent  string
	maxRetries int
	retryWait  time.Duration
	logger     Logger

	mu         sync.RWMutex
	sessionKey string

	auth     *AuthService
	scrobble *ScrobbleService
}

// NewClient creates a client. APIKey and APISecret are required.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: APIKey is required", ErrInvalidConfig)
	}
	if cfg.APISecret == "" {
		return nil, fmt.Errorf("%w: APISecret is required", ErrInvalidConfig)
	}

	c := &Client{
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		sessionKey: cfg.SessionKey,
		httpClient: cfg.HTTPClient,
		baseURL:    cfg.BaseURL,
		userAgent:  cfg.UserAgent,
		maxRetries: cfg.MaxRetries,
		retryWait:  cfg.RetryWait,
		logger:     cfg.Logger,
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.userAgent == "" {
		c.userAgent = "upnp-scribbles/1.0"
	}
	switch {
	case c.maxRetries == 0:
		c.maxRetries = DefaultMaxRetries
	case c.maxRetries < 0:
		c.maxRetries = 0
	}
	if c.retryWait <= 0 {
		c.retryWait = DefaultRetryWait
	}

	c.auth = &AuthService{client: c}
	c.scrobble = &ScrobbleService{client: c}

	return c, nil
}

// Auth returns the authentication service.
func (c *Client) Auth() *AuthService {
	return c.auth
}

// Scrobble returns the scrobbling service.
func (c *Client) Scrobble() *ScrobbleService {
	return c.scrobble
}

// SetSessionKey sets the session key for authenticated requests.
func (c *Client) SetSessionKey(key string) {
	c.mu.Lock()
	c.sessionKey = key
	c.mu.Unlock()
}

// GetSessionKey returns the current session key.
func (c *Client) GetSessionKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionKey
}

func (c *Client) debugf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Debugf(format, args...)
	}
}

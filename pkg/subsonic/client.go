package subsonic

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// APIVersion is the protocol version announced to the server.
	APIVersion = "1.16.1"

	// DefaultClientName identifies this client to the server.
	DefaultClientName = "upnp-scribbles"

	// DefaultMaxRetries is how many times a temporary failure is retried.
	DefaultMaxRetries = 2

	// DefaultRetryWait is the first backoff interval.
	DefaultRetryWait = 500 * time.Millisecond
)

// Config holds client configuration.
type Config struct {
	BaseURL    string        // Required: scheme://host of the server
	Port       int           // Optional: defaults to 443 for https, 80 otherwise
	ServerPath string        // Optional: path prefix in front of /rest
	Username   string        // Required
	Password   string        // Required
	LegacyAuth bool          // Send the hex-encoded password instead of a salted token
	ClientName string        // Optional: "c" parameter
	HTTPClient *http.Client  // Optional: defaults to a client with a 15s timeout
	UserAgent  string        // Optional: User-Agent header
	MaxRetries int           // Optional: retries for temporary failures (default 2, negative disables)
	RetryWait  time.Duration // Optional: initial backoff (default 500ms)
	Logger     Logger        // Optional: debug logging
}

// Logger receives debug messages from the client.
type Logger interface {
	Debugf(format string, args ...any)
}

// Client talks to a Subsonic-compatible server (Navidrome, gonic, ...). It
// is safe for concurrent use.
type Client struct {
	endpoint   *url.URL
	username   string
	password   string
	legacyAuth bool
	clientName string
	httpClient *http.Client
	userAgent  string
	maxRetries int
	retryWait  time.Duration
	logger     Logger

	salt func() string
}

// NewClient creates a client. BaseURL, Username and Password are required.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: BaseURL is required", ErrInvalidConfig)
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("%w: Username and Password are required", ErrInvalidConfig)
	}

	endpoint, err := buildEndpoint(cfg.BaseURL, cfg.Port, cfg.ServerPath)
	if err != nil {
		return nil, err
	}

	c := &Client{
		endpoint:   endpoint,
		username:   cfg.Username,
		password:   cfg.Password,
		legacyAuth: cfg.LegacyAuth,
		clientName: cfg.ClientName,
		httpClient: cfg.HTTPClient,
		userAgent:  cfg.UserAgent,
		maxRetries: cfg.MaxRetries,
		retryWait:  cfg.RetryWait,
		logger:     cfg.Logger,
		salt:       newSalt,
	}

	if c.clientName == "" {
		c.clientName = DefaultClientName
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 15 * time.Second}
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

	return c, nil
}

// DefaultPort returns the port implied by a base URL's scheme.
func DefaultPort(baseURL string) int {
	if strings.HasPrefix(strings.ToLower(baseURL), "https") {
		return 443
	}
	return 80
}

func buildEndpoint(baseURL string, port int, serverPath string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid BaseURL: %v", ErrInvalidConfig, err)
	}
	if u.Scheme == "" || u.Hostname() == "" {
		return nil, fmt.Errorf("%w: BaseURL must look like http://host", ErrInvalidConfig)
	}

	if port == 0 {
		if p := u.Port(); p != "" {
			port, _ = strconv.Atoi(p)
		} else {
			port = DefaultPort(baseURL)
		}
	}
	u.Host = u.Hostname() + ":" + strconv.Itoa(port)

	path := strings.Trim(serverPath, "/")
	if path != "" {
		path = "/" + path
	}
	u.Path = u.Path + path + "/rest/"
	return u, nil
}

// authParams returns the credential and protocol parameters for one request.
func (c *Client) authParams() url.Values {
	q := url.Values{}
	q.Set("u", c.username)
	q.Set("v", APIVersion)
	q.Set("c", c.clientName)
	q.Set("f", "json")

	if c.legacyAuth {
		q.Set("p", "enc:"+hexEncode(c.password))
		return q
	}

	salt := c.salt()
	q.Set("t", token(c.password, salt))
	q.Set("s", salt)
	return q
}

func newSalt() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

func (c *Client) debugf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Debugf(format, args...)
	}
}

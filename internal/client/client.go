package client

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	tfe "github.com/hashicorp/go-tfe"

	"tfcview/internal/config"
)

var ErrNoToken = errors.New("api token not found; run `tfcview auth login`")

// Client adapts go-tfe to the domain types. The underlying tfe.Client is
// built on first use, because building it pings the service.
type Client struct {
	address   string
	tokenPath string
	http      *http.Client

	mu    sync.Mutex
	token string
	api   *tfe.Client
}

// New builds a client for the configured service and loads the token file.
func New(cfg config.Config) (*Client, error) {
	tokenPath, err := config.TokenPath()
	if err != nil {
		return nil, err
	}
	c := &Client{
		address:   cfg.APIURL(),
		tokenPath: tokenPath,
		http:      newHTTPClient(cfg.APITimeout()),
	}
	if err := c.loadToken(); err != nil {
		return nil, err
	}
	return c, nil
}

// NewWithBaseURL targets the service at baseURL with a fixed token.
func NewWithBaseURL(baseURL, token string) *Client {
	return &Client{
		address: strings.TrimRight(baseURL, "/"),
		token:   strings.TrimSpace(token),
		http:    newHTTPClient(10 * time.Second),
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: &statusTransport{base: http.DefaultTransport},
	}
}

func (c *Client) HasToken() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ensureToken() == nil
}

// SaveToken persists token to the token file and uses it for later calls.
func (c *Client) SaveToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token is required")
	}
	if c.tokenPath != "" {
		if err := os.MkdirAll(filepath.Dir(c.tokenPath), 0o700); err != nil {
			return err
		}
		if err := os.WriteFile(c.tokenPath, []byte(token+"\n"), 0o600); err != nil {
			return err
		}
	}
	c.mu.Lock()
	c.token = token
	c.api = nil
	c.mu.Unlock()
	return nil
}

// remote returns the go-tfe client, building it for the current token.
func (c *Client) remote() (*tfe.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.api != nil {
		return c.api, nil
	}
	if err := c.ensureToken(); err != nil {
		return nil, err
	}
	api, err := tfe.NewClient(&tfe.Config{
		Address:    c.address,
		Token:      c.token,
		HTTPClient: c.http,
	})
	if err != nil {
		return nil, err
	}
	c.api = api
	return api, nil
}

// call runs fn against the remote service and maps its failure onto an
// APIError when the service answered with an error status.
func call[T any](ctx context.Context, c *Client, fn func(context.Context, *tfe.Client) (T, error)) (T, error) {
	var zero T
	api, err := c.remote()
	if err != nil {
		return zero, err
	}
	rec := &statusRecorder{}
	out, err := fn(context.WithValue(ctx, statusKey{}, rec), api)
	if err != nil {
		return zero, classify(err, rec.get())
	}
	return out, nil
}

func exec(ctx context.Context, c *Client, fn func(context.Context, *tfe.Client) error) error {
	_, err := call(ctx, c, func(ctx context.Context, api *tfe.Client) (struct{}, error) {
		return struct{}{}, fn(ctx, api)
	})
	return err
}

// ensureToken must be called with c.mu held.
func (c *Client) ensureToken() error {
	if c.token == "" {
		if err := c.loadToken(); err != nil {
			return err
		}
	}
	if c.token == "" {
		return ErrNoToken
	}
	return nil
}

func (c *Client) loadToken() error {
	if c.tokenPath == "" {
		return nil
	}
	data, err := os.ReadFile(c.tokenPath)
	if err != nil {
		if os.IsNotExist(err) {
			c.token = ""
			return nil
		}
		return err
	}
	c.token = strings.TrimSpace(string(data))
	return nil
}

type statusKey struct{}

// statusRecorder keeps the last HTTP status seen for one call. go-tfe only
// keeps 401 and 404 distinguishable in the errors it returns.
type statusRecorder struct {
	mu   sync.Mutex
	code int
}

func (r *statusRecorder) set(code int) {
	r.mu.Lock()
	r.code = code
	r.mu.Unlock()
}

func (r *statusRecorder) get() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.code
}

type statusTransport struct {
	base http.RoundTripper
}

func (t *statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if resp != nil {
		if rec, ok := req.Context().Value(statusKey{}).(*statusRecorder); ok {
			rec.set(resp.StatusCode)
		}
	}
	return resp, err
}

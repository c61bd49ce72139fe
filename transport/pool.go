// Package transport executes rendered page requests over a shared HTTP
// connection pool.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Config configures the shared client. Zero values select defaults.
type Config struct {
	ConnectTimeout      time.Duration
	ResponseTimeout     time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	// MaxBodyBytes caps how much of a response body is read.
	MaxBodyBytes int64
	UserAgent    string
	Logger       *slog.Logger
}

const (
	DefaultConnectTimeout  = 10 * time.Second
	DefaultResponseTimeout = 60 * time.Second
	DefaultMaxBodyBytes    = 64 << 20
	DefaultUserAgent       = "restport"
)

func (c Config) withDefaults() Config {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.ResponseTimeout <= 0 {
		c.ResponseTimeout = DefaultResponseTimeout
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 100
	}
	if c.MaxIdleConnsPerHost <= 0 {
		c.MaxIdleConnsPerHost = 10
	}
	if c.IdleConnTimeout <= 0 {
		c.IdleConnTimeout = 90 * time.Second
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Pool is a process-scoped HTTP client shared by every table. It is safe
// for concurrent use.
type Pool struct {
	client *http.Client
	cfg    Config
}

// NewPool creates a pool. Close releases its idle connections.
func NewPool(cfg Config) *Pool {
	cfg = cfg.withDefaults()
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout, KeepAlive: 30 * time.Second}
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ResponseTimeout,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		// Content-Encoding is handled in Do so zstd works as well as gzip.
		DisableCompression: true,
		ForceAttemptHTTP2:  true,
	}
	return &Pool{client: &http.Client{Transport: tr}, cfg: cfg}
}

// Close closes idle connections. In-flight requests are not interrupted.
func (p *Pool) Close() {
	p.client.CloseIdleConnections()
}

// Request is a rendered page request relative to an address.
type Request struct {
	Method string
	// Path is appended to the address and may carry a query string.
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// Response is a fully read, decoded response.
type Response struct {
	StatusCode  int
	ContentType string
	Header      http.Header
	Body        []byte
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.URL, e.StatusCode, e.Body)
}

// ErrBodyTooLarge is returned when a response exceeds Config.MaxBodyBytes.
var ErrBodyTooLarge = errors.New("response body too large")

// Do sends req to address and reads the whole response. The response
// timeout bounds the exchange including the body.
func (p *Pool) Do(ctx context.Context, address string, req *Request) (*Response, error) {
	u, err := Join(address, req.Path, req.Query)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.ResponseTimeout)
	defer cancel()

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	hr, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			hr.Header.Add(k, v)
		}
	}
	if hr.Header.Get("User-Agent") == "" {
		hr.Header.Set("User-Agent", p.cfg.UserAgent)
	}
	hr.Header.Set("Accept-Encoding", "gzip, zstd")

	start := time.Now()
	resp, err := p.client.Do(hr)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := p.read(resp)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", u, err)
	}
	p.cfg.Logger.Debug("http exchange",
		"method", method,
		"url", u,
		"status", resp.StatusCode,
		"bytes", len(data),
		"duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: u, StatusCode: resp.StatusCode, Body: snippet(data)}
	}
	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Header:      resp.Header,
		Body:        data,
	}, nil
}

func (p *Pool) read(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "", "identity":
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer zr.Close()
		r = zr
	case "zstd":
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		defer zr.Close()
		r = zr
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", resp.Header.Get("Content-Encoding"))
	}

	data, err := io.ReadAll(io.LimitReader(r, p.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > p.cfg.MaxBodyBytes {
		return nil, ErrBodyTooLarge
	}
	return data, nil
}

// Join appends path to a base address and merges query into the result.
func Join(address, path string, query url.Values) (string, error) {
	base := strings.TrimRight(address, "/")
	if path != "" {
		base += "/" + strings.TrimLeft(path, "/")
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", base, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid url %q: missing scheme or host", base)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func snippet(b []byte) string {
	const limit = 256
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		s = s[:limit] + "..."
	}
	return s
}

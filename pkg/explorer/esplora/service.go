package esplora

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rustaceanrob/coinline/pkg/circuitbreaker"
	"github.com/rustaceanrob/coinline/pkg/explorer"
	"github.com/sony/gobreaker"
	"go.uber.org/ratelimit"
)

const (
	// DefaultRequestTimeout ...
	DefaultRequestTimeout = 30 * time.Second
)

var (
	// ErrNullNetwork ...
	ErrNullNetwork = errors.New("network params are null")
	// ErrInvalidURL ...
	ErrInvalidURL = errors.New("esplora url must be a valid http(s) url")
)

// statusError is returned for any non 200 response.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("esplora returned status %d: %s", e.code, e.body)
}

// isRejection returns whether the error is the server refusing the request
// rather than being unavailable.
func isRejection(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 400 && se.code < 500 && se.code != http.StatusTooManyRequests
	}
	return false
}

// ServiceOpts is the struct given to the NewService method
type ServiceOpts struct {
	URL            string
	Network        *chaincfg.Params
	RequestTimeout time.Duration
	// RateLimit is the max number of requests per second, 0 means unlimited.
	RateLimit int
	// Registerer, if not nil, is where request metrics are registered.
	Registerer prometheus.Registerer
	HTTPClient *http.Client
}

func (o ServiceOpts) validate() error {
	if o.Network == nil {
		return ErrNullNetwork
	}
	u, err := url.Parse(o.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidURL
	}
	if o.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	return nil
}

var _ explorer.FeeEstimator = (*esplora)(nil)

type esplora struct {
	baseURL string
	network *chaincfg.Params
	client  *http.Client
	limiter ratelimit.Limiter
	breaker *gobreaker.CircuitBreaker
	metrics *metrics
}

// NewService returns a new esplora service as an explorer.Service interface
func NewService(opts ServiceOpts) (explorer.Service, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	client := opts.HTTPClient
	if client == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = DefaultRequestTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	limiter := ratelimit.NewUnlimited()
	if opts.RateLimit > 0 {
		limiter = ratelimit.New(opts.RateLimit)
	}
	m, err := newMetrics(opts.Registerer)
	if err != nil {
		return nil, err
	}

	return &esplora{
		baseURL: strings.TrimSuffix(opts.URL, "/"),
		network: opts.Network,
		client:  client,
		limiter: limiter,
		breaker: circuitbreaker.NewCircuitBreaker("esplora", func(err error) bool {
			return err == nil || isRejection(err)
		}),
		metrics: m,
	}, nil
}

func (e *esplora) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

func (e *esplora) doRequest(
	ctx context.Context, route, method, path string, body []byte,
) ([]byte, error) {
	e.limiter.Take()

	start := time.Now()
	resp, err := e.breaker.Execute(func() (interface{}, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, e.baseURL+path, reader)
		if err != nil {
			return nil, err
		}
		if body != nil {
			req.Header.Set("Content-Type", "text/plain")
		}

		res, err := e.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer res.Body.Close()

		buf, err := io.ReadAll(res.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		if res.StatusCode != http.StatusOK {
			return nil, &statusError{res.StatusCode, strings.TrimSpace(string(buf))}
		}
		return buf, nil
	})
	e.metrics.observe(route, start, err)
	if err != nil {
		return nil, err
	}
	return resp.([]byte), nil
}

func (e *esplora) doGet(ctx context.Context, route, path string) ([]byte, error) {
	return e.doRequest(ctx, route, http.MethodGet, path, nil)
}

// Package httputil is the HTTP transport of the SDK: it encodes a parameter
// set into a request, guards the remote with a circuit breaker and a client
// side rate limit, and returns the raw status code and body.
package httputil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"go.uber.org/ratelimit"

	"github.com/0xfullStack/Cryptoless/pkg/apierror"
	"github.com/0xfullStack/Cryptoless/pkg/circuitbreaker"
)

const (
	// DefaultTimeout is the timeout of a request, resource included.
	DefaultTimeout = 20 * time.Second
)

var errServerFailure = errors.New("server failure")

// Request is a single API call.
type Request struct {
	// Name labels the request in logs and metrics, ie. "networks".
	Name     string
	Method   string
	Path     string
	Params   map[string]interface{}
	Encoding Encoding
	Header   map[string]string
}

// Opts defines the parameters needed for creating a Client with NewClient.
type Opts struct {
	BaseURL string
	// Timeout defaults to DefaultTimeout.
	Timeout time.Duration
	// RequestsPerSecond disables the client side rate limit if <= 0.
	RequestsPerSecond int
	// Breaker defaults to circuitbreaker.NewCircuitBreaker("cryptoless-http").
	Breaker *gobreaker.CircuitBreaker
	// Metrics defaults to unregistered collectors.
	Metrics *Metrics
	// HTTPClient overrides the underlying client, Timeout is ignored if set.
	HTTPClient *http.Client
}

// Client sends Requests to the API.
type Client struct {
	baseURL string
	client  *http.Client
	cb      *gobreaker.CircuitBreaker
	limiter ratelimit.Limiter
	metrics *Metrics
}

type response struct {
	status int
	body   []byte
}

// NewClient returns a new Client.
func NewClient(opts Opts) (*Client, error) {
	if len(opts.BaseURL) <= 0 {
		return nil, apierror.Configuration("missing base url")
	}
	if !strings.HasPrefix(opts.BaseURL, "http://") &&
		!strings.HasPrefix(opts.BaseURL, "https://") {
		return nil, apierror.Configuration("invalid base url %s", opts.BaseURL)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	cb := opts.Breaker
	if cb == nil {
		cb = circuitbreaker.NewCircuitBreaker("cryptoless-http")
	}
	limiter := ratelimit.NewUnlimited()
	if opts.RequestsPerSecond > 0 {
		limiter = ratelimit.New(opts.RequestsPerSecond)
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		client:  client,
		cb:      cb,
		limiter: limiter,
		metrics: metrics,
	}, nil
}

// Do sends req and returns the response status code and body.
// Only failures to obtain a response are returned as error, wrapped as
// apierror.ErrTransport; any status code is left to the caller to interpret.
func (c *Client) Do(ctx context.Context, req Request) (int, []byte, error) {
	httpReq, err := c.newHTTPRequest(ctx, req)
	if err != nil {
		return 0, nil, err
	}

	c.limiter.Take()
	start := time.Now()

	res, err := c.cb.Execute(func() (interface{}, error) {
		return c.doRequest(httpReq)
	})
	rs, _ := res.(*response)
	elapsed := time.Since(start)

	if err != nil && !errors.Is(err, errServerFailure) {
		c.metrics.observe(req, 0, elapsed)
		log.WithError(err).WithFields(log.Fields{
			"method": req.Method,
			"path":   req.Path,
		}).Debug("http request failed")
		return 0, nil, apierror.Transport(err)
	}

	c.metrics.observe(req, rs.status, elapsed)
	log.WithFields(log.Fields{
		"method":   req.Method,
		"path":     req.Path,
		"status":   rs.status,
		"duration": elapsed.String(),
	}).Debug("http request")

	return rs.status, rs.body, nil
}

func (c *Client) newHTTPRequest(ctx context.Context, req Request) (*http.Request, error) {
	method := strings.ToUpper(req.Method)
	if len(method) <= 0 {
		method = http.MethodGet
	}
	url := c.baseURL + "/" + strings.TrimLeft(req.Path, "/")

	var body io.Reader
	contentType := ""
	switch req.Encoding {
	case JSONEncoding:
		buf, err := encodeJSON(req.Params)
		if err != nil {
			return nil, apierror.Configuration("cannot encode params: %s", err)
		}
		body = bytes.NewReader(buf)
		contentType = "application/json"
	case FormEncoding:
		query, err := encodeForm(req.Params)
		if err != nil {
			return nil, apierror.Configuration("cannot encode params: %s", err)
		}
		if inQuery(method) {
			if len(query) > 0 {
				url = url + "?" + query
			}
		} else {
			body = strings.NewReader(query)
			contentType = "application/x-www-form-urlencoded; charset=utf-8"
		}
	default:
		return nil, apierror.Configuration("unknown encoding %d", req.Encoding)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, apierror.Configuration("cannot create request: %s", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if len(contentType) > 0 {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for key, value := range req.Header {
		httpReq.Header.Set(key, value)
	}
	return httpReq, nil
}

func (c *Client) doRequest(req *http.Request) (*response, error) {
	rs, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer rs.Body.Close()

	bodyBytes, err := io.ReadAll(rs.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	res := &response{rs.StatusCode, bodyBytes}
	// 5xx responses count as failures for the breaker but are still handed
	// back to the caller for decoding.
	if rs.StatusCode >= http.StatusInternalServerError {
		return res, fmt.Errorf("%w: %s", errServerFailure, strconv.Itoa(rs.StatusCode))
	}
	return res, nil
}

func inQuery(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodDelete:
		return true
	default:
		return false
	}
}

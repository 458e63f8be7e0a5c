package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/nypl/cancel-request-consumer/internal/processing/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultTimeout is applied to every downstream call.
const DefaultTimeout = 10 * time.Second

// Client performs JSON REST calls against the platform and Sierra APIs.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a REST client with a fixed per-call timeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Request describes one downstream call.
type Request struct {
	// Service names the downstream service for error kinds and metrics.
	Service string
	Method  string
	URL     string
	// Token is sent as a bearer token when set.
	Token string
	// Body is JSON encoded. Ignored when Form is set.
	Body any
	Form url.Values

	BasicUser     string
	BasicPassword string
}

// Response is a successful (2xx) downstream response.
type Response struct {
	StatusCode int
	Body       []byte
}

// Do executes the request. Any failure is returned as a *TransportError.
func (c *Client) Do(ctx context.Context, r Request) (*Response, error) {
	start := time.Now()

	req, err := c.newRequest(ctx, r)
	if err != nil {
		return nil, &TransportError{
			Kind:    KindMalformed,
			Service: r.Service,
			Method:  r.Method,
			URL:     r.URL,
			Payload: r.Body,
			Err:     err,
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		observe(r, 0, start)
		return nil, &TransportError{
			Kind:    KindNoResponse,
			Service: r.Service,
			Method:  r.Method,
			URL:     r.URL,
			Payload: r.Body,
			Err:     err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	observe(r, resp.StatusCode, start)
	if err != nil {
		return nil, &TransportError{
			Kind:    KindNoResponse,
			Service: r.Service,
			Method:  r.Method,
			URL:     r.URL,
			Payload: r.Body,
			Err:     fmt.Errorf("read response: %w", err),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, responded(r, resp.StatusCode, body)
	}

	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

func (c *Client) newRequest(ctx context.Context, r Request) (*http.Request, error) {
	if r.URL == "" {
		return nil, fmt.Errorf("empty url")
	}
	if _, err := url.ParseRequestURI(r.URL); err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	contentType := ""
	switch {
	case r.Form != nil:
		body = strings.NewReader(r.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case r.Body != nil:
		data, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, r.URL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	} else {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.Token)
	}
	if r.BasicUser != "" {
		req.SetBasicAuth(r.BasicUser, r.BasicPassword)
	}

	return req, nil
}

func responded(r Request, status int, body []byte) *TransportError {
	te := &TransportError{
		Kind:       KindResponded,
		Service:    r.Service,
		Method:     r.Method,
		URL:        r.URL,
		Payload:    r.Body,
		StatusCode: status,
		StatusText: http.StatusText(status),
	}

	var apiErr struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	if len(body) > 0 && json.Unmarshal(body, &apiErr) == nil {
		te.APIType = apiErr.Type
		te.APIMessage = apiErr.Message
	}
	return te
}

func observe(r Request, status int, start time.Time) {
	service := r.Service
	if service == "" {
		service = "unknown"
	}
	metrics.HTTPLatency.
		WithLabelValues(service, r.Method, strconv.Itoa(status)).
		Observe(time.Since(start).Seconds())
}

// Empty reports whether the response carried no body.
func (r *Response) Empty() bool {
	return len(bytes.TrimSpace(r.Body)) == 0
}

// Decode unmarshals the response body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Data returns the "data" object of a platform API envelope, or nil.
func (r *Response) Data() map[string]any {
	if r.Empty() {
		return nil
	}
	var envelope struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(r.Body, &envelope); err != nil {
		return nil
	}
	return envelope.Data
}

// Succeeded reports whether the envelope's data object has success set to true.
func (r *Response) Succeeded() bool {
	ok, _ := r.Data()["success"].(bool)
	return ok
}

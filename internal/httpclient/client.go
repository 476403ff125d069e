package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rkried/loadpulse/internal/config"
	"github.com/rkried/loadpulse/internal/template"
)

// RequestBuilder constructs one http.Request per request id from a validated
// config: resolved target URL, canonical headers with a JSON content type
// default, and a per-request body.
type RequestBuilder struct {
	method  string
	target  string
	headers http.Header
	body    BodySource
}

// NewRequestBuilder prepares a builder from the config. The template engine
// is only consulted when the config marks the body as dynamic; pass nil to
// let the builder create its own.
func NewRequestBuilder(cfg *config.Config, engine *template.Engine) (*RequestBuilder, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	target := cfg.ResolvedURL()
	if target == "" {
		return nil, errors.New("target URL is required")
	}

	method := strings.TrimSpace(cfg.Method)
	if method == "" {
		method = http.MethodGet
	}
	method = strings.ToUpper(method)

	body, err := NewBodySource(cfg, engine)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	for key, value := range cfg.Headers {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" || strings.ContainsAny(trimmedKey, "\r\n") {
			return nil, fmt.Errorf("invalid header key %q", key)
		}
		canonicalKey := http.CanonicalHeaderKey(trimmedKey)
		if strings.ContainsAny(value, "\r\n") {
			return nil, fmt.Errorf("invalid header value for %s", canonicalKey)
		}
		headers.Set(canonicalKey, value)
	}

	// A body without an explicit content type defaults to JSON; this is the
	// dominant payload shape for the tool and matches what templated bodies
	// produce.
	if HasBody(body) && headers.Get("Content-Type") == "" {
		headers.Set("Content-Type", "application/json")
	}

	return &RequestBuilder{
		method:  method,
		target:  target,
		headers: headers,
		body:    body,
	}, nil
}

// WithBodySource replaces the configured body source, used for
// generator-function bodies supplied programmatically.
func (b *RequestBuilder) WithBodySource(src BodySource) *RequestBuilder {
	if src != nil {
		b.body = src
		if HasBody(src) && b.headers.Get("Content-Type") == "" {
			b.headers.Set("Content-Type", "application/json")
		}
	}
	return b
}

// Build assembles the request for the given request id.
func (b *RequestBuilder) Build(ctx context.Context, requestID int64) (*http.Request, error) {
	if b == nil {
		return nil, errors.New("builder cannot be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	payload, err := b.body.Bytes(requestID)
	if err != nil {
		return nil, fmt.Errorf("resolve body: %w", err)
	}

	var reader *bytes.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	var req *http.Request
	if reader != nil {
		req, err = http.NewRequestWithContext(ctx, b.method, b.target, reader)
	} else {
		req, err = http.NewRequestWithContext(ctx, b.method, b.target, nil)
	}
	if err != nil {
		return nil, err
	}

	for key, values := range b.headers {
		for _, val := range values {
			req.Header.Add(key, val)
		}
	}
	if payload != nil {
		req.ContentLength = int64(len(payload))
	}

	return req, nil
}

// NewClient builds an HTTP client tuned for sustained load.
func NewClient(timeout time.Duration) *http.Client {
	if timeout < 0 {
		timeout = 0
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

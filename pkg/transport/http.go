package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/klauspost/compress/gzip"
	"github.com/sony/gobreaker"
)

const (
	// IngestPath is appended to the server URL
	IngestPath = "/rs/v1/ingest"

	DefaultMaxTries        = 3
	DefaultInitialInterval = 200 * time.Millisecond
)

// HTTPSinkConfig configures an HTTPSink
type HTTPSinkConfig struct {
	ServerURL string
	APIKey    string
	APIID     string
	VersionID string

	Client *http.Client
	// MaxTries is the number of attempts per message, retries included
	MaxTries        uint
	InitialInterval time.Duration
	// BreakerFailures consecutive failed messages open the circuit for
	// BreakerTimeout
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// ingestRequest is the body of one ingest call
type ingestRequest struct {
	APIID      string `json:"api_id"`
	VersionID  string `json:"version_id"`
	HAR        string `json:"har"`
	PathHint   string `json:"path_hint"`
	CustomerID string `json:"customer_id"`
}

// HTTPSink posts messages to the ingest endpoint
type HTTPSink struct {
	config  HTTPSinkConfig
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewHTTPSink creates an ingest client for cfg
func NewHTTPSink(cfg HTTPSinkConfig) *HTTPSink {
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 5 * time.Second}
	}
	if cfg.MaxTries == 0 {
		cfg.MaxTries = DefaultMaxTries
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = DefaultInitialInterval
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	return &HTTPSink{
		config: cfg,
		url:    strings.TrimSuffix(cfg.ServerURL, "/") + IngestPath,
		client: cfg.Client,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "ingest",
			Timeout: cfg.BreakerTimeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= cfg.BreakerFailures
			},
			IsSuccessful: func(err error) bool {
				var se *StatusError
				return err == nil || (errors.As(err, &se) && se.Code < 500)
			},
		}),
	}
}

// StatusError is returned when the ingest endpoint answers with a non 2xx status
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ingest failed with status %d: %s", e.Code, e.Body)
}

// Deliver sends msg, retrying server errors and network failures with
// exponential backoff. Client errors are not retried.
func (s *HTTPSink) Deliver(ctx context.Context, msg Message) error {
	body, err := s.encode(msg)
	if err != nil {
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.config.InitialInterval

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		_, err := s.breaker.Execute(func() (interface{}, error) {
			return nil, s.post(ctx, msg.ID, body)
		})
		var se *StatusError
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return struct{}{}, backoff.Permanent(err)
		case errors.As(err, &se) && se.Code < 500:
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(s.config.MaxTries))
	return err
}

func (s *HTTPSink) encode(msg Message) ([]byte, error) {
	payload, err := json.Marshal(ingestRequest{
		APIID:      s.config.APIID,
		VersionID:  s.config.VersionID,
		HAR:        msg.HAR,
		PathHint:   msg.PathHint,
		CustomerID: msg.CustomerID,
	})
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(payload); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *HTTPSink) post(ctx context.Context, id string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")
	req.Header.Set("x-api-key", s.config.APIKey)
	req.Header.Set("x-request-id", id)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Close is a no-op, the client is owned by the caller
func (s *HTTPSink) Close() error {
	return nil
}

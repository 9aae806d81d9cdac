// Package sdk wires capture, masking, record building and delivery into a
// net/http middleware.
package sdk

import (
	"context"
	"net/http"
	"time"

	"github.com/hmgle/harcapture/pkg/capture"
	"github.com/hmgle/harcapture/pkg/har"
	"github.com/hmgle/harcapture/pkg/masking"
	"github.com/hmgle/harcapture/pkg/pathhint"
)

// SDK is a configured capture handle. It is safe for concurrent use.
type SDK struct {
	config   Config
	builder  *har.Builder
	defaults *masking.Masking
}

// New validates cfg and creates a handle
func New(cfg Config) (*SDK, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	defaults := masking.New()
	defaults.Apply(cfg.DefaultMasks...)

	return &SDK{
		config: cfg,
		builder: &har.Builder{
			Clock:                 cfg.Clock,
			Logger:                cfg.Logger,
			DecodeContentEncoding: cfg.DecodeContentEncoding,
		},
		defaults: defaults,
	}, nil
}

// Config returns the validated configuration
func (s *SDK) Config() Config {
	return s.config
}

// Middleware records every exchange handled by next
func (s *SDK) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.config.Clock.Now()
		info := har.NewRequestInfo(r, s.config.Port)
		ctrl := newController(s.defaults)

		ic := capture.New(r, w, s.config.MaxCaptureSize)
		req := ic.Request().WithContext(context.WithValue(r.Context(), controllerKey{}, ctrl))

		next.ServeHTTP(ic.ResponseWriter(), req)

		ic.Drain()
		result := ic.Finish()
		if result.Hijacked {
			s.config.Logger.Debug("Not recording hijacked connection %s %s", r.Method, info.RequestURI)
			return
		}
		if result.Request.Err != nil {
			s.config.Logger.Debug("Request body of %s %s is incomplete: %v", r.Method, info.RequestURI, result.Request.Err)
		}

		hint := ctrl.PathHint()
		if hint == "" {
			if s.config.SkipUnmatched && req.Pattern == "" {
				s.config.Logger.Debug("Not recording unmatched route %s %s", r.Method, info.RequestURI)
				return
			}
			hint = pathhint.FromRequest(req)
		}

		s.record(info, result, ctrl, hint, start)
	})
}

// HandlerFunc is Middleware for a handler function
func (s *SDK) HandlerFunc(next http.HandlerFunc) http.Handler {
	return s.Middleware(next)
}

func (s *SDK) record(info har.RequestInfo, result capture.Result, ctrl *Controller, hint string, start time.Time) {
	entry := s.builder.Build(info, result, ctrl.Masking(), start)
	data, err := har.Wrap(entry, Name, Version, "request capture for "+entry.Request.URL).Serialize()
	if err != nil {
		s.config.Logger.Error("Failed to serialize capture of %s: %v", entry.Request.URL, err)
		return
	}
	s.config.Sender.Send(data, hint, ctrl.CustomerID())
}

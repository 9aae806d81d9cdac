package capture

import (
	"io"
	"mime"
	"net/http"
	"strings"
)

const (
	// DefaultMaxCaptureSize is the combined request and response byte ceiling
	DefaultMaxCaptureSize = 1 * 1024 * 1024

	// DefaultEncoding is used when no charset is declared or it cannot be parsed
	DefaultEncoding = "utf-8"
)

// Body is the frozen capture of one direction of an exchange
type Body struct {
	// Bytes holds what was captured, possibly a prefix of the stream
	Bytes []byte
	// Dropped is set once a chunk did not fit in the shared ceiling
	Dropped bool
	// Observed counts every byte that passed through, captured or not
	Observed int64
	// Encoding is the charset declared by the Content-Type of this direction
	Encoding string
	// Err is the first read error other than io.EOF. A body with an error
	// is incomplete and always Dropped.
	Err error
}

// Result is everything the interceptor learned about a finished exchange
type Result struct {
	Request  Body
	Response Body
	Status   int
	Header   http.Header
	Hijacked bool
}

type buffer struct {
	data     []byte
	dropped  bool
	observed int64
	err      error
}

// Interceptor observes the body bytes of one exchange. Both directions share
// a single byte budget; a direction that overflows it is marked dropped and
// keeps what it had, while the other direction may continue.
//
// An Interceptor belongs to a single request and is not safe for concurrent use.
type Interceptor struct {
	maxSize  int64
	request  buffer
	response buffer
	req      *http.Request
	body     *bodyReader
	writer   *responseWriter
	encoding string
}

// New attaches an interceptor to the exchange. The returned Request and
// ResponseWriter must be handed to the wrapped handler in place of the originals.
func New(r *http.Request, w http.ResponseWriter, maxSize int64) *Interceptor {
	i := &Interceptor{
		maxSize:  maxSize,
		encoding: charset(r.Header.Get("Content-Type")),
	}

	i.req = r
	if r.Body != nil && r.Body != http.NoBody {
		req := *r
		i.body = &bodyReader{ReadCloser: r.Body, capture: i.captureRequest, fail: i.failRequest, drain: i.drain}
		req.Body = i.body
		i.req = &req
	}

	i.writer = &responseWriter{writer: w, capture: i.captureResponse}
	return i
}

// Request returns the request whose body is observed
func (i *Interceptor) Request() *http.Request {
	return i.req
}

// ResponseWriter returns the decorated response writer
func (i *Interceptor) ResponseWriter() http.ResponseWriter {
	return i.writer
}

// Drain reads the part of the request body the handler left unread, at most
// one byte past the remaining budget so an oversized body is still flagged.
// Closing the body drains it the same way.
func (i *Interceptor) Drain() {
	if i.body == nil || i.body.closed {
		return
	}
	i.drain()
}

func (i *Interceptor) drain() {
	if i.request.dropped || i.body.eof {
		return
	}

	remaining := i.maxSize - int64(len(i.request.data)+len(i.response.data))
	if remaining < 0 {
		remaining = 0
	}
	// read errors reach failRequest through the body reader
	_, _ = io.CopyN(io.Discard, i.body, remaining+1)
}

// Finish freezes both buffers and returns the result. It must be called once,
// after the wrapped handler returned.
func (i *Interceptor) Finish() Result {
	header := i.writer.header
	if header == nil {
		header = i.writer.Header().Clone()
	}

	status := i.writer.code
	if status == 0 {
		status = http.StatusOK
	}

	return Result{
		Request: Body{
			Bytes:    i.request.data,
			Dropped:  i.request.dropped,
			Observed: i.request.observed,
			Encoding: i.encoding,
			Err:      i.request.err,
		},
		Response: Body{
			Bytes:    i.response.data,
			Dropped:  i.response.dropped,
			Observed: i.response.observed,
			Encoding: charset(header.Get("Content-Type")),
		},
		Status:   status,
		Header:   header,
		Hijacked: i.writer.hijacked,
	}
}

func (i *Interceptor) captureRequest(chunk []byte) {
	i.capture(&i.request, &i.response, chunk)
}

// failRequest marks the request body incomplete
func (i *Interceptor) failRequest(err error) {
	if i.request.err == nil {
		i.request.err = err
	}
	i.request.dropped = true
}

func (i *Interceptor) captureResponse(chunk []byte) {
	i.capture(&i.response, &i.request, chunk)
}

func (i *Interceptor) capture(dst, other *buffer, chunk []byte) {
	dst.observed += int64(len(chunk))
	if dst.dropped {
		return
	}

	if int64(len(dst.data)+len(other.data)+len(chunk)) <= i.maxSize {
		dst.data = append(dst.data, chunk...)
	} else {
		dst.dropped = true
	}
}

// charset extracts the charset parameter of a Content-Type value
func charset(contentType string) string {
	if contentType == "" {
		return DefaultEncoding
	}

	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return DefaultEncoding
	}

	if cs := strings.TrimSpace(params["charset"]); cs != "" {
		return strings.ToLower(cs)
	}
	return DefaultEncoding
}

type bodyReader struct {
	io.ReadCloser
	capture func([]byte)
	fail    func(error)
	drain   func()
	eof     bool
	closed  bool
}

func (b *bodyReader) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if n > 0 {
		b.capture(p[:n])
	}
	switch {
	case err == io.EOF:
		b.eof = true
	case err != nil && !b.closed:
		b.fail(err)
	}
	return n, err
}

func (b *bodyReader) Close() error {
	if !b.closed {
		b.drain()
		b.closed = true
	}
	return b.ReadCloser.Close()
}

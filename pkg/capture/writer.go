package capture

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
)

// responseWriter forwards every call to the wrapped writer and records the
// bytes the wrapped writer accepted, in call order.
type responseWriter struct {
	writer   http.ResponseWriter
	capture  func([]byte)
	code     int
	header   http.Header
	hijacked bool
}

func (rw *responseWriter) Write(data []byte) (count int, err error) {
	if rw.code == 0 {
		rw.recordHeader(http.StatusOK)
	}

	count, err = rw.writer.Write(data)
	if count > 0 {
		rw.capture(data[:count])
	}
	return
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.writer.WriteHeader(code)

	// informational responses may precede the final one
	if code >= 100 && code < 200 && code != http.StatusSwitchingProtocols {
		return
	}
	if rw.code == 0 {
		rw.recordHeader(code)
	}
}

// recordHeader keeps the status and the headers as they were sent
func (rw *responseWriter) recordHeader(code int) {
	rw.code = code
	rw.header = rw.writer.Header().Clone()
}

func (rw *responseWriter) Header() http.Header {
	return rw.writer.Header()
}

func (rw *responseWriter) Flush() {
	if rw.code == 0 {
		rw.recordHeader(http.StatusOK)
	}
	if f, ok := rw.writer.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hij, ok := rw.writer.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("could not hijack connection")
	}

	conn, brw, err := hij.Hijack()
	if err == nil {
		rw.hijacked = true
	}
	return conn, brw, err
}

// Unwrap lets http.ResponseController reach the wrapped writer
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.writer
}

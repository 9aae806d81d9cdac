package capture

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInterceptor(t *testing.T, body string, maxSize int64) (*Interceptor, *httptest.ResponseRecorder) {
	t.Helper()

	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(http.MethodGet, "/", nil)
	} else {
		r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	return New(r, rr, maxSize), rr
}

func TestPassesWritesThrough(t *testing.T) {
	i, rr := newInterceptor(t, "", DefaultMaxCaptureSize)
	w := i.ResponseWriter()

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusCreated)
	n, err := w.Write([]byte("Hello, "))
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	_, _ = io.WriteString(w, "world!")

	res := i.Finish()

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "Hello, world!", rr.Body.String())
	assert.Equal(t, http.StatusCreated, res.Status)
	assert.Equal(t, "Hello, world!", string(res.Response.Bytes))
	assert.False(t, res.Response.Dropped)
	assert.EqualValues(t, 13, res.Response.Observed)
	assert.Equal(t, "text/plain", res.Header.Get("Content-Type"))
}

func TestSets200OnMissingStatus(t *testing.T) {
	i, _ := newInterceptor(t, "", DefaultMaxCaptureSize)
	_, _ = i.ResponseWriter().Write([]byte("ok"))
	assert.Equal(t, http.StatusOK, i.Finish().Status)

	i, _ = newInterceptor(t, "", DefaultMaxCaptureSize)
	assert.Equal(t, http.StatusOK, i.Finish().Status)
}

func TestKeepsHeadersAsSent(t *testing.T) {
	i, _ := newInterceptor(t, "", DefaultMaxCaptureSize)
	w := i.ResponseWriter()

	w.Header().Set("X-Before", "1")
	w.WriteHeader(http.StatusAccepted)
	w.Header().Set("X-After", "2")
	w.WriteHeader(http.StatusTeapot)

	res := i.Finish()
	assert.Equal(t, http.StatusAccepted, res.Status)
	assert.Equal(t, "1", res.Header.Get("X-Before"))
	assert.Empty(t, res.Header.Get("X-After"))
}

func TestIgnoresInformationalStatus(t *testing.T) {
	i, _ := newInterceptor(t, "", DefaultMaxCaptureSize)
	w := i.ResponseWriter()

	w.WriteHeader(http.StatusEarlyHints)
	w.WriteHeader(http.StatusNoContent)

	assert.Equal(t, http.StatusNoContent, i.Finish().Status)
}

func TestCapturesWithinCeiling(t *testing.T) {
	for _, tt := range []struct {
		name        string
		chunks      []string
		maxSize     int64
		wantBytes   string
		wantDropped bool
	}{{
		name:      "stream smaller than ceiling",
		chunks:    []string{"abc", "def"},
		maxSize:   10,
		wantBytes: "abcdef",
	}, {
		name:      "stream equal to ceiling",
		chunks:    []string{"abcde", "fghij"},
		maxSize:   10,
		wantBytes: "abcdefghij",
	}, {
		name:        "stream above ceiling",
		chunks:      []string{"abcd", "efgh", "ijk", "l"},
		maxSize:     10,
		wantBytes:   "abcdefgh",
		wantDropped: true,
	}, {
		name:        "first chunk above ceiling",
		chunks:      []string{"abcdefghijk"},
		maxSize:     10,
		wantDropped: true,
	}, {
		name:        "zero ceiling",
		chunks:      []string{"a"},
		maxSize:     0,
		wantDropped: true,
	}} {
		t.Run(tt.name, func(t *testing.T) {
			i, rr := newInterceptor(t, "", tt.maxSize)
			for _, c := range tt.chunks {
				_, _ = io.WriteString(i.ResponseWriter(), c)
			}

			res := i.Finish()
			assert.Equal(t, strings.Join(tt.chunks, ""), rr.Body.String())
			assert.Equal(t, tt.wantBytes, string(res.Response.Bytes))
			assert.Equal(t, tt.wantDropped, res.Response.Dropped)
			assert.LessOrEqual(t, int64(len(res.Response.Bytes)), tt.maxSize)
			assert.EqualValues(t, len(strings.Join(tt.chunks, "")), res.Response.Observed)
		})
	}
}

func TestSharesBudgetAcrossDirections(t *testing.T) {
	i, _ := newInterceptor(t, "123456", 10)

	b, err := io.ReadAll(i.Request().Body)
	require.NoError(t, err)
	assert.Equal(t, "123456", string(b))

	w := i.ResponseWriter()
	_, _ = io.WriteString(w, "abc")
	_, _ = io.WriteString(w, "def")

	res := i.Finish()
	assert.Equal(t, "123456", string(res.Request.Bytes))
	assert.False(t, res.Request.Dropped)
	assert.Equal(t, "abc", string(res.Response.Bytes))
	assert.True(t, res.Response.Dropped)
}

func TestDroppedSideDoesNotStopTheOther(t *testing.T) {
	i, _ := newInterceptor(t, strings.Repeat("x", 20), 10)

	_, err := io.ReadAll(i.Request().Body)
	require.NoError(t, err)
	_, _ = io.WriteString(i.ResponseWriter(), "hello")

	res := i.Finish()
	assert.True(t, res.Request.Dropped)
	assert.EqualValues(t, 20, res.Request.Observed)
	assert.Equal(t, "hello", string(res.Response.Bytes))
	assert.False(t, res.Response.Dropped)
}

func TestDrainReadsUnreadBody(t *testing.T) {
	i, _ := newInterceptor(t, `{"a": 1}`, DefaultMaxCaptureSize)

	buf := make([]byte, 3)
	_, err := io.ReadFull(i.Request().Body, buf)
	require.NoError(t, err)

	i.Drain()
	res := i.Finish()
	assert.Equal(t, `{"a": 1}`, string(res.Request.Bytes))
	assert.False(t, res.Request.Dropped)
}

func TestDrainFlagsOversizedBody(t *testing.T) {
	i, _ := newInterceptor(t, strings.Repeat("x", 100), 10)

	i.Drain()
	res := i.Finish()
	assert.True(t, res.Request.Dropped)
	assert.Empty(t, res.Request.Bytes)
}

func TestNoBody(t *testing.T) {
	i, _ := newInterceptor(t, "", DefaultMaxCaptureSize)
	i.Drain()

	res := i.Finish()
	assert.Empty(t, res.Request.Bytes)
	assert.False(t, res.Request.Dropped)
	assert.Zero(t, res.Request.Observed)
}

func TestRequestEncoding(t *testing.T) {
	for _, tt := range []struct {
		contentType string
		want        string
	}{
		{"", "utf-8"},
		{"application/json", "utf-8"},
		{"application/json; charset=ISO-8859-1", "iso-8859-1"},
		{"text/plain; charset=\"utf-16\"", "utf-16"},
		{"not a content type;;", "utf-8"},
	} {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("x"))
		r.Header.Set("Content-Type", tt.contentType)
		i := New(r, httptest.NewRecorder(), DefaultMaxCaptureSize)
		assert.Equal(t, tt.want, i.Finish().Request.Encoding, tt.contentType)
	}
}

func TestFlushesUnderlyingWriter(t *testing.T) {
	i, rr := newInterceptor(t, "", DefaultMaxCaptureSize)
	_, _ = io.WriteString(i.ResponseWriter(), "partial")
	i.ResponseWriter().(http.Flusher).Flush()

	assert.True(t, rr.Flushed)
}

func TestHijackUnsupported(t *testing.T) {
	i, _ := newInterceptor(t, "", DefaultMaxCaptureSize)

	_, _, err := i.ResponseWriter().(http.Hijacker).Hijack()
	assert.Error(t, err)
	assert.False(t, i.Finish().Hijacked)
}

func TestResponseControllerReachesWrappedWriter(t *testing.T) {
	i, rr := newInterceptor(t, "", DefaultMaxCaptureSize)

	require.NoError(t, http.NewResponseController(i.ResponseWriter()).Flush())
	assert.True(t, rr.Flushed)
}

func truncatedRequest(prefix string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Body = io.NopCloser(io.MultiReader(strings.NewReader(prefix), iotest.ErrReader(io.ErrUnexpectedEOF)))
	r.ContentLength = 100
	return r
}

func TestReadErrorMarksBodyIncomplete(t *testing.T) {
	i := New(truncatedRequest(`{"secret": "abc`), httptest.NewRecorder(), DefaultMaxCaptureSize)

	_, err := io.ReadAll(i.Request().Body)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	i.Drain()
	res := i.Finish()
	assert.True(t, res.Request.Dropped)
	assert.ErrorIs(t, res.Request.Err, io.ErrUnexpectedEOF)
	assert.EqualValues(t, 15, res.Request.Observed)
}

func TestDrainRecordsReadError(t *testing.T) {
	i := New(truncatedRequest(`{"secret": "abc`), httptest.NewRecorder(), DefaultMaxCaptureSize)

	i.Drain()
	res := i.Finish()
	assert.True(t, res.Request.Dropped)
	assert.ErrorIs(t, res.Request.Err, io.ErrUnexpectedEOF)
}

func TestCloseDrainsUnreadBody(t *testing.T) {
	i, _ := newInterceptor(t, `{"a": 1, "b": 2}`, DefaultMaxCaptureSize)

	buf := make([]byte, 4)
	_, err := io.ReadFull(i.Request().Body, buf)
	require.NoError(t, err)
	require.NoError(t, i.Request().Body.Close())

	i.Drain()
	res := i.Finish()
	assert.Equal(t, `{"a": 1, "b": 2}`, string(res.Request.Bytes))
	assert.False(t, res.Request.Dropped)
	assert.NoError(t, res.Request.Err)
}

func TestCompleteBodyHasNoError(t *testing.T) {
	i, _ := newInterceptor(t, "complete", DefaultMaxCaptureSize)

	_, err := io.ReadAll(i.Request().Body)
	require.NoError(t, err)
	require.NoError(t, i.Request().Body.Close())

	i.Drain()
	res := i.Finish()
	assert.Equal(t, "complete", string(res.Request.Bytes))
	assert.NoError(t, res.Request.Err)
}

package transport

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/hmgle/harcapture/pkg/har"
)

func testMessage(t *testing.T, method, url string, status int) Message {
	t.Helper()
	entry := har.Entry{
		StartedDateTime: "2024-03-01T12:30:45.123Z",
		Time:            12.5,
		Request:         har.Request{Method: method, URL: url, HTTPVersion: "HTTP/1.1", BodySize: -1},
		Response: har.Response{
			Status:      status,
			StatusText:  "OK",
			HTTPVersion: "HTTP/1.1",
			Content:     har.Content{Size: 5, MimeType: "text/plain"},
			BodySize:    5,
		},
		Timings: har.Timings{Send: -1, Wait: -1, Receive: -1},
	}
	s, err := har.Wrap(entry, "harcapture", "test", "").Serialize()
	require.NoError(t, err)
	return NewMessage(s, "/users/{id}", "cust")
}

func TestSummarize(t *testing.T) {
	sum := Summarize(testMessage(t, "GET", "http://h/users/1", 200))

	assert.Equal(t, time.Date(2024, 3, 1, 12, 30, 45, 123_000_000, time.UTC), sum.Timestamp.UTC())
	assert.Equal(t, "GET", sum.Method)
	assert.Equal(t, "http://h/users/1", sum.URL)
	assert.Equal(t, 200, sum.StatusCode)
	assert.Equal(t, "text/plain", sum.ContentType)
	assert.EqualValues(t, -1, sum.RequestSize)
	assert.EqualValues(t, 5, sum.ResponseSize)
	assert.Equal(t, 12.5, sum.Duration)
	assert.Equal(t, "/users/{id}", sum.PathHint)
}

func TestFileSinkHAR(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.har")
	sink, err := NewFileSink(path, FormatHAR, "harcapture", "test")
	require.NoError(t, err)

	require.NoError(t, sink.Deliver(context.Background(), testMessage(t, "GET", "http://h/a", 200)))
	require.NoError(t, sink.Deliver(context.Background(), testMessage(t, "POST", "http://h/b", 201)))
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	doc := gjson.ParseBytes(data)
	assert.Equal(t, "1.2", doc.Get("log.version").String())
	assert.EqualValues(t, 2, doc.Get("log.entries.#").Int())
	assert.Equal(t, "http://h/b", doc.Get("log.entries.1.request.url").String())
}

func TestFileSinkHARStreamsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.har")
	sink, err := NewFileSink(path, FormatHAR, "harcapture", "test")
	require.NoError(t, err)

	var sizes []int64
	for _, url := range []string{"http://h/a", "http://h/b", "http://h/c"} {
		require.NoError(t, sink.Deliver(context.Background(), testMessage(t, "GET", url, 200)))
		info, err := os.Stat(path)
		require.NoError(t, err)
		sizes = append(sizes, info.Size())
	}
	assert.Less(t, sizes[0], sizes[1])
	assert.Equal(t, sizes[1]-sizes[0], sizes[2]-sizes[1], "each delivery appends one entry")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), `"http://h/a"`))
	require.NoError(t, sink.Close())

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, gjson.ValidBytes(data))
	doc := gjson.ParseBytes(data)
	assert.Equal(t, "harcapture", doc.Get("log.creator.name").String())
	assert.EqualValues(t, 3, doc.Get("log.entries.#").Int())
	assert.Equal(t, "http://h/c", doc.Get("log.entries.2.request.url").String())
}

func TestFileSinkHAREmptyArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.har")
	sink, err := NewFileSink(path, FormatHAR, "harcapture", "test")
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc har.HAR
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, har.Version, doc.Log.Version)
	assert.Empty(t, doc.Log.Entries)
}

func TestFileSinkHARRejectsInvalidArchive(t *testing.T) {
	sink, err := NewFileSink(filepath.Join(t.TempDir(), "out.har"), FormatHAR, "harcapture", "test")
	require.NoError(t, err)
	defer sink.Close()

	assert.Error(t, sink.Deliver(context.Background(), NewMessage("not json", "/", "")))
}

func TestFileSinkJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	sink, err := NewFileSink(path, FormatJSON, "harcapture", "test")
	require.NoError(t, err)

	msg := testMessage(t, "GET", "http://h/a", 200)
	require.NoError(t, sink.Deliver(context.Background(), msg))
	require.NoError(t, sink.Deliver(context.Background(), msg))
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, msg.ID, gjson.Get(lines[0], "id").String())
	assert.Equal(t, "GET", gjson.Get(gjson.Get(lines[0], "har").String(), "log.entries.0.request.method").String())
}

func TestFileSinkCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	sink, err := NewFileSink(path, FormatCSV, "harcapture", "test")
	require.NoError(t, err)
	require.NoError(t, sink.Deliver(context.Background(), testMessage(t, "GET", "http://h/a", 200)))
	require.NoError(t, sink.Close())

	// reopening appends without a second header row
	sink, err = NewFileSink(path, FormatCSV, "harcapture", "test")
	require.NoError(t, err)
	require.NoError(t, sink.Deliver(context.Background(), testMessage(t, "DELETE", "http://h/b", 204)))
	require.NoError(t, sink.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "GET", rows[1][4])
	assert.Equal(t, "200", rows[1][6])
	assert.Equal(t, "12.5", rows[1][11])
	assert.Equal(t, "DELETE", rows[2][4])
}

func TestFileSinkText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	sink, err := NewFileSink(path, FormatText, "harcapture", "test")
	require.NoError(t, err)
	require.NoError(t, sink.Deliver(context.Background(), testMessage(t, "GET", "http://h/a", 200)))
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "/users/{id} -> GET http://h/a -> 200 OK (text/plain, 5 bytes, 12.5ms)")
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("csv")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

type failingSink struct{ err error }

func (f failingSink) Deliver(context.Context, Message) error { return f.err }
func (f failingSink) Close() error                           { return nil }

func TestFanOutSink(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	boom := errors.New("boom")
	fan := NewFanOutSink(a, b, failingSink{err: boom})

	err := fan.Deliver(context.Background(), NewMessage("{}", "/", ""))
	assert.ErrorIs(t, err, boom)
	assert.Len(t, a.delivered(), 1)
	assert.Len(t, b.delivered(), 1)

	require.NoError(t, fan.Close())
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

package transport

import (
	"time"

	"github.com/tidwall/gjson"

	"github.com/hmgle/harcapture/pkg/har"
)

// Summary is the one-line view of a captured exchange used by the csv and
// text file formats
type Summary struct {
	Timestamp    time.Time `json:"timestamp"`
	MessageID    string    `json:"message_id"`
	PathHint     string    `json:"path_hint"`
	CustomerID   string    `json:"customer_id,omitempty"`
	Method       string    `json:"method"`
	URL          string    `json:"url"`
	HTTPVersion  string    `json:"http_version"`
	StatusCode   int       `json:"status_code"`
	Status       string    `json:"status"`
	ContentType  string    `json:"content_type"`
	RequestSize  int64     `json:"request_size"`
	ResponseSize int64     `json:"response_size"`
	Duration     float64   `json:"duration_ms"`
}

// Summarize reads the first entry of the archive carried by msg
func Summarize(msg Message) Summary {
	entry := gjson.Get(msg.HAR, "log.entries.0")

	ts := msg.CreatedAt
	if t, err := time.Parse(har.TimeFormat, entry.Get("startedDateTime").String()); err == nil {
		ts = t
	}

	return Summary{
		Timestamp:    ts,
		MessageID:    msg.ID,
		PathHint:     msg.PathHint,
		CustomerID:   msg.CustomerID,
		Method:       entry.Get("request.method").String(),
		URL:          entry.Get("request.url").String(),
		HTTPVersion:  entry.Get("response.httpVersion").String(),
		StatusCode:   int(entry.Get("response.status").Int()),
		Status:       entry.Get("response.statusText").String(),
		ContentType:  entry.Get("response.content.mimeType").String(),
		RequestSize:  entry.Get("request.bodySize").Int(),
		ResponseSize: entry.Get("response.bodySize").Int(),
		Duration:     entry.Get("time").Float(),
	}
}

package transport

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/hmgle/harcapture/pkg/har"
)

// Format is the layout of a FileSink
type Format string

const (
	// FormatHAR keeps a single HAR document holding every entry
	FormatHAR Format = "har"
	// FormatJSON writes one message per line
	FormatJSON Format = "json"
	// FormatCSV writes one summary row per message
	FormatCSV Format = "csv"
	// FormatText writes one human readable summary line per message
	FormatText Format = "text"
)

// ParseFormat validates a format name
func ParseFormat(name string) (Format, error) {
	switch f := Format(name); f {
	case FormatHAR, FormatJSON, FormatCSV, FormatText:
		return f, nil
	default:
		return "", fmt.Errorf("invalid output format: %s (must be har, json, csv, or text)", name)
	}
}

var csvHeader = []string{"timestamp", "message_id", "path_hint", "customer_id", "method", "url", "status_code", "status", "content_type", "request_size", "response_size", "duration_ms"}

// FileSink writes messages to a local file
type FileSink struct {
	mu        sync.Mutex
	format    Format
	file      *os.File
	csvWriter *csv.Writer
	// entries written to a har file so far
	entries int
}

// NewFileSink opens path for writing in the given format. The har format
// truncates the file and streams entries into one document that is
// completed by Close; the others append.
func NewFileSink(path string, format Format, creatorName, creatorVersion string) (*FileSink, error) {
	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if format == FormatHAR {
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}

	s := &FileSink{format: format, file: f}
	switch format {
	case FormatHAR:
		err = s.writeArchiveHead(har.Creator{Name: creatorName, Version: creatorVersion})
	case FormatCSV:
		s.csvWriter = csv.NewWriter(f)
		if info, statErr := f.Stat(); statErr == nil && info.Size() == 0 {
			err = s.csvWriter.Write(csvHeader)
			s.csvWriter.Flush()
		}
	case FormatJSON, FormatText:
	default:
		err = fmt.Errorf("invalid output format: %s", format)
	}
	if err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

// Deliver writes msg in the sink's format
func (s *FileSink) Deliver(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.format {
	case FormatHAR:
		return s.appendEntry(msg)
	case FormatJSON:
		return s.writeJSON(msg)
	case FormatCSV:
		return s.writeCSV(Summarize(msg))
	default:
		return s.writeText(Summarize(msg))
	}
}

// writeArchiveHead writes everything of the document up to the first entry
func (s *FileSink) writeArchiveHead(creator har.Creator) error {
	data, err := json.Marshal(creator)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(s.file, "{\"log\":{\"version\":%q,\"creator\":%s,\"pages\":[],\"entries\":[", har.Version, data)
	return err
}

func (s *FileSink) appendEntry(msg Message) error {
	var doc har.HAR
	if err := json.Unmarshal([]byte(msg.HAR), &doc); err != nil {
		return fmt.Errorf("failed to parse archive of message %s: %w", msg.ID, err)
	}

	var buf bytes.Buffer
	for _, entry := range doc.Log.Entries {
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		if s.entries > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
		buf.Write(data)
		s.entries++
	}
	_, err := s.file.Write(buf.Bytes())
	return err
}

func (s *FileSink) writeJSON(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = s.file.Write(append(data, '\n'))
	return err
}

func (s *FileSink) writeCSV(sum Summary) error {
	row := []string{
		sum.Timestamp.Format(time.RFC3339),
		sum.MessageID,
		sum.PathHint,
		sum.CustomerID,
		sum.Method,
		sum.URL,
		strconv.Itoa(sum.StatusCode),
		sum.Status,
		sum.ContentType,
		strconv.FormatInt(sum.RequestSize, 10),
		strconv.FormatInt(sum.ResponseSize, 10),
		strconv.FormatFloat(sum.Duration, 'f', -1, 64),
	}
	if err := s.csvWriter.Write(row); err != nil {
		return err
	}
	s.csvWriter.Flush()
	return s.csvWriter.Error()
}

func (s *FileSink) writeText(sum Summary) error {
	text := fmt.Sprintf("[%s] %s -> %s %s -> %d %s (%s, %d bytes, %vms)\n",
		sum.Timestamp.Format("15:04:05"),
		sum.PathHint,
		sum.Method,
		sum.URL,
		sum.StatusCode,
		sum.Status,
		sum.ContentType,
		sum.ResponseSize,
		sum.Duration,
	)
	_, err := s.file.WriteString(text)
	return err
}

// Close flushes buffered data, completes a har document and closes the file
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.csvWriter != nil {
		s.csvWriter.Flush()
	}
	if s.format == FormatHAR {
		if _, err := s.file.WriteString("\n]}}\n"); err != nil {
			s.file.Close()
			return err
		}
	}
	return s.file.Close()
}

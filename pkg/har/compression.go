package har

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
)

// CompressionType represents the type of compression used
type CompressionType int

const (
	CompressionNone CompressionType = iota
	CompressionGzip
	CompressionDeflate
	CompressionBrotli
	CompressionUnknown
)

// String returns the string representation of compression type
func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionGzip:
		return "gzip"
	case CompressionDeflate:
		return "deflate"
	case CompressionBrotli:
		return "br"
	default:
		return "unknown"
	}
}

// DetectCompressionType detects the compression type of a single
// Content-Encoding token
func DetectCompressionType(token string) CompressionType {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "", "identity":
		return CompressionNone
	case "gzip", "x-gzip":
		return CompressionGzip
	case "deflate":
		return CompressionDeflate
	case "br", "brotli":
		return CompressionBrotli
	default:
		return CompressionUnknown
	}
}

// IsEncoded reports whether a Content-Encoding header value names any coding
// other than identity
func IsEncoded(contentEncoding string) bool {
	for _, token := range strings.Split(contentEncoding, ",") {
		if DetectCompressionType(token) != CompressionNone {
			return true
		}
	}
	return false
}

// Decompress undoes every coding listed in a Content-Encoding header value.
// Codings are listed in the order they were applied, so they are removed
// from last to first.
func Decompress(body []byte, contentEncoding string) ([]byte, error) {
	codings := strings.Split(contentEncoding, ",")
	for i := len(codings) - 1; i >= 0; i-- {
		var err error
		switch t := DetectCompressionType(codings[i]); t {
		case CompressionNone:
			continue
		case CompressionGzip:
			body, err = readAll(t, func(r io.Reader) (io.Reader, error) { return gzip.NewReader(r) }, body)
		case CompressionDeflate:
			body, err = readAll(t, func(r io.Reader) (io.Reader, error) { return flate.NewReader(r), nil }, body)
		case CompressionBrotli:
			body, err = readAll(t, func(r io.Reader) (io.Reader, error) { return brotli.NewReader(r), nil }, body)
		default:
			return nil, fmt.Errorf("unknown compression type: %s", strings.TrimSpace(codings[i]))
		}
		if err != nil {
			return nil, err
		}
	}
	return body, nil
}

func readAll(t CompressionType, open func(io.Reader) (io.Reader, error), data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	reader, err := open(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s reader: %w", t, err)
	}
	if c, ok := reader.(io.Closer); ok {
		defer c.Close()
	}

	result, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress %s data: %w", t, err)
	}
	return result, nil
}

// IsTextLikeContent checks if the content appears to be text
func IsTextLikeContent(data []byte, contentType string) bool {
	if len(data) == 0 {
		return true
	}

	contentType = strings.ToLower(contentType)
	if strings.Contains(contentType, "text/") ||
		strings.Contains(contentType, "json") ||
		strings.Contains(contentType, "xml") ||
		strings.Contains(contentType, "application/javascript") ||
		strings.Contains(contentType, "application/x-www-form-urlencoded") {
		return true
	}

	// Simple heuristic: check if most runes are printable
	printableCount, total := 0, 0
	for _, r := range string(data) {
		total++
		if r == utf8.RuneError {
			continue
		}
		if unicode.IsPrint(r) || r == '\t' || r == '\n' || r == '\r' {
			printableCount++
		}
	}

	return float64(printableCount)/float64(total) > 0.8
}

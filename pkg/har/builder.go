package har

import (
	"encoding/base64"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/hmgle/harcapture/pkg/capture"
	"github.com/hmgle/harcapture/pkg/logger"
	"github.com/hmgle/harcapture/pkg/masking"
)

const (
	// DroppedText replaces a body that did not fit in the capture ceiling
	DroppedText = "--dropped--"

	defaultMimeType = "application/octet-stream"
)

var forwardedProto = regexp.MustCompile(`(?i)proto=("?)(https?)("?)`)

// RequestInfo is the request metadata the builder needs. It is read before
// the handler runs because handlers may mutate the request.
type RequestInfo struct {
	Method     string
	Scheme     string
	Host       string
	RequestURI string
	Proto      string
	Header     http.Header
	// Port is the port the host application listens on, 0 when unknown
	Port int
}

// NewRequestInfo snapshots r. port is the configured listening port.
func NewRequestInfo(r *http.Request, port int) RequestInfo {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	uri := r.RequestURI
	if r.URL != nil {
		uri = r.URL.RequestURI()
	}
	return RequestInfo{
		Method:     r.Method,
		Scheme:     scheme,
		Host:       r.Host,
		RequestURI: uri,
		Proto:      r.Proto,
		Header:     r.Header.Clone(),
		Port:       port,
	}
}

// Builder turns a finished exchange into a HAR entry
type Builder struct {
	Clock  Clock
	Logger logger.Logger
	// DecodeContentEncoding removes Content-Encoding from captured response
	// bodies before they are masked and recorded
	DecodeContentEncoding bool
}

// NewBuilder creates a builder using the wall clock and a discarding logger
func NewBuilder() *Builder {
	return &Builder{Clock: SystemClock{}, Logger: logger.Nop()}
}

// Build assembles the entry for one exchange. It never fails: problems with
// individual parts are logged and the part degrades.
func (b *Builder) Build(req RequestInfo, result capture.Result, m *masking.Masking, start time.Time) Entry {
	if m == nil {
		m = masking.New()
	}

	scheme, host := resolveOrigin(req)
	path, rawQuery, _ := strings.Cut(req.RequestURI, "?")
	if path == "" {
		path = "/"
	}
	origin := scheme + "://" + host
	if req.Port > 0 && !hasPort(host) && !isDefaultPort(scheme, req.Port) {
		origin += ":" + strconv.Itoa(req.Port)
	}

	query, masked := maskQuery(rawQuery, m.QueryStringMasks)
	fullURL := origin + path
	switch {
	case masked:
		fullURL += "?" + encodeQuery(query)
	case rawQuery != "":
		fullURL += "?" + rawQuery
	}

	entry := Entry{
		StartedDateTime: FormatTime(start),
		Time:            float64(b.clock().Since(start).Microseconds()) / 1000,
		Request:         b.buildRequest(req, host, fullURL, query, result.Request, m),
		Response:        b.buildResponse(req, result, m),
		Cache:           Cache{},
		Timings:         Timings{Send: -1, Wait: -1, Receive: -1},
		ServerIPAddress: hostname(host),
	}
	if req.Port > 0 {
		entry.Connection = strconv.Itoa(req.Port)
	}
	return entry
}

func (b *Builder) buildRequest(req RequestInfo, host, fullURL string, query []NameValue, body capture.Body, m *masking.Masking) Request {
	headers := flattenHeaders(req.Header)
	headers = append(headers, NameValue{Name: "Host", Value: host})
	sortNameValues(headers)

	out := Request{
		Method:      req.Method,
		URL:         fullURL,
		HTTPVersion: req.Proto,
		Cookies:     requestCookies(req.Header, m.RequestCookieMasks),
		Headers:     maskHeaders(headers, m.RequestHeaderMasks),
		QueryString: query,
		HeadersSize: headersSize(headers),
		BodySize:    -1,
	}

	contentType := req.Header.Get("Content-Type")
	declared, hasDeclared := contentLength(req.Header)
	switch {
	case body.Err != nil:
		// the declared length was never received
		out.BodySize = body.Observed
	case hasDeclared:
		out.BodySize = declared
	case body.Observed > 0:
		out.BodySize = body.Observed
	}

	switch {
	case body.Dropped:
		out.PostData = &PostData{MimeType: orDefault(contentType), Text: DroppedText}
	case len(body.Bytes) > 0:
		text := b.mask(b.decode(body.Bytes, body.Encoding), contentType,
			m.RequestFieldMasksString, m.RequestFieldMasksNumber)
		out.PostData = &PostData{MimeType: orDefault(contentType), Text: text}
	}
	return out
}

func (b *Builder) buildResponse(req RequestInfo, result capture.Result, m *masking.Masking) Response {
	header := result.Header
	if header == nil {
		header = http.Header{}
	}
	headers := flattenHeaders(header)
	sortNameValues(headers)

	contentType := header.Get("Content-Type")
	content := Content{Size: -1, MimeType: orDefault(contentType)}
	if declared, ok := contentLength(header); ok {
		content.Size = declared
	} else if result.Response.Observed > 0 {
		content.Size = result.Response.Observed
	}
	if result.Status == http.StatusNotModified {
		content.Size = 0
	}

	body := result.Response
	switch {
	case body.Dropped:
		content.Text = DroppedText
	case len(body.Bytes) > 0:
		raw := body.Bytes
		ce := header.Get("Content-Encoding")
		encoded := IsEncoded(ce)
		if encoded && b.DecodeContentEncoding {
			decoded, err := Decompress(raw, ce)
			if err != nil {
				b.logger().Warn("Failed to decode %s response body: %v", ce, err)
			} else {
				content.Compression = int64(len(decoded) - len(raw))
				raw = decoded
				encoded = false
			}
		}
		// bytes still carrying a content coding are not text whatever the
		// content type says
		if !encoded && IsTextLikeContent(raw, contentType) {
			content.Text = b.mask(b.decode(raw, body.Encoding), contentType,
				m.ResponseFieldMasksString, m.ResponseFieldMasksNumber)
		} else {
			content.Text = base64.StdEncoding.EncodeToString(raw)
			content.Encoding = "base64"
		}
	}

	return Response{
		Status:      result.Status,
		StatusText:  http.StatusText(result.Status),
		HTTPVersion: req.Proto,
		Cookies:     b.responseCookies(header, m.ResponseCookieMasks),
		Headers:     maskHeaders(headers, m.ResponseHeaderMasks),
		Content:     content,
		RedirectURL: header.Get("Location"),
		HeadersSize: headersSize(headers),
		BodySize:    content.Size,
	}
}

// decode converts captured bytes to text using the declared charset
func (b *Builder) decode(data []byte, charset string) string {
	switch strings.ToLower(charset) {
	case "", "utf-8", "utf8":
		return string(data)
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		b.logger().Debug("Unknown charset %q, keeping raw bytes", charset)
		return string(data)
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		b.logger().Warn("Failed to decode body as %s: %v", charset, err)
		return string(data)
	}
	return string(out)
}

func (b *Builder) mask(text, mimeType string, stringMasks, numberMasks map[string]string) string {
	masked, err := masking.MaskBody(text, mimeType, stringMasks, numberMasks)
	if err != nil {
		b.logger().Warn("Failed to mask body with mime type %q: %v", mimeType, err)
		return text
	}
	return masked
}

func (b *Builder) clock() Clock {
	if b.Clock == nil {
		return SystemClock{}
	}
	return b.Clock
}

func (b *Builder) logger() logger.Logger {
	if b.Logger == nil {
		return logger.Nop()
	}
	return b.Logger
}

// resolveOrigin returns the scheme and host the client used, honouring the
// headers set by reverse proxies
func resolveOrigin(req RequestInfo) (string, string) {
	scheme := req.Scheme
	if v := firstValue(req.Header.Get("X-Forwarded-Proto")); v != "" {
		scheme = strings.ToLower(v)
	} else if v := firstValue(req.Header.Get("X-Forwarded-Scheme")); v != "" {
		scheme = strings.ToLower(v)
	} else if m := forwardedProto.FindStringSubmatch(req.Header.Get("Forwarded")); m != nil {
		scheme = strings.ToLower(m[2])
	}
	if scheme == "" {
		scheme = "http"
	}

	host := req.Host
	if v := firstValue(req.Header.Get("X-Forwarded-Host")); v != "" {
		host = v
	}
	return scheme, host
}

func firstValue(v string) string {
	first, _, _ := strings.Cut(v, ",")
	return strings.TrimSpace(first)
}

func hasPort(host string) bool {
	return strings.LastIndex(host, ":") > strings.LastIndex(host, "]")
}

func isDefaultPort(scheme string, port int) bool {
	return (scheme == "http" && port == 80) || (scheme == "https" && port == 443)
}

func hostname(host string) string {
	if !hasPort(host) {
		return strings.Trim(host, "[]")
	}
	return strings.Trim(host[:strings.LastIndex(host, ":")], "[]")
}

// maskQuery decodes the raw query in order of appearance and applies masks.
// The second result reports whether any value was replaced.
func maskQuery(rawQuery string, masks map[string]string) ([]NameValue, bool) {
	params := []NameValue{}
	masked := false
	for _, part := range strings.Split(rawQuery, "&") {
		if part == "" {
			continue
		}
		name, value, _ := strings.Cut(part, "=")
		name, value = unescape(name), unescape(value)
		value, ok := masking.Value(masks, name, value)
		masked = masked || ok
		params = append(params, NameValue{Name: name, Value: value})
	}
	return params, masked
}

func unescape(s string) string {
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}
	return s
}

func encodeQuery(params []NameValue) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, url.QueryEscape(p.Name)+"="+url.QueryEscape(p.Value))
	}
	return strings.Join(parts, "&")
}

// flattenHeaders produces one entry per header value with names in sorted
// order and values in the order they were set
func flattenHeaders(h http.Header) []NameValue {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	out := []NameValue{}
	for _, name := range names {
		for _, value := range h[name] {
			out = append(out, NameValue{Name: name, Value: value})
		}
	}
	return out
}

func sortNameValues(nv []NameValue) {
	sort.SliceStable(nv, func(i, j int) bool { return nv[i].Name < nv[j].Name })
}

func maskHeaders(headers []NameValue, masks map[string]string) []NameValue {
	out := make([]NameValue, len(headers))
	for i, h := range headers {
		value, _ := masking.Value(masks, h.Name, h.Value)
		out[i] = NameValue{Name: h.Name, Value: value}
	}
	return out
}

// headersSize measures the header block as it would appear on the wire
func headersSize(headers []NameValue) int64 {
	var sb strings.Builder
	for _, h := range headers {
		sb.WriteString(h.Name)
		sb.WriteString(": ")
		sb.WriteString(h.Value)
		sb.WriteString("\r\n")
	}
	sb.WriteString("\r\n")
	return int64(sb.Len())
}

func contentLength(h http.Header) (int64, bool) {
	v := h.Get("Content-Length")
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func orDefault(mimeType string) string {
	if mimeType == "" {
		return defaultMimeType
	}
	return mimeType
}

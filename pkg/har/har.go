package har

import (
	"encoding/json"
	"time"
)

const (
	// Version is the HAR format version produced by this package
	Version = "1.2"

	// TimeFormat is ISO 8601 with millisecond precision
	TimeFormat = "2006-01-02T15:04:05.000Z07:00"
)

// HAR represents the root object of an HTTP Archive
type HAR struct {
	Log Log `json:"log"`
}

// Log represents the log object containing all HTTP transaction data
type Log struct {
	Version string  `json:"version"`
	Creator Creator `json:"creator"`
	Pages   []Page  `json:"pages"` // HAR 1.2 requires the field even when empty
	Entries []Entry `json:"entries"`
	Comment string  `json:"comment,omitempty"`
}

// Creator represents the application that created the HAR file
type Creator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Comment string `json:"comment,omitempty"`
}

// Page represents a page (optional in HAR, never populated by the middleware)
type Page struct {
	StartedDateTime string      `json:"startedDateTime"`
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	PageTimings     PageTimings `json:"pageTimings"`
	Comment         string      `json:"comment,omitempty"`
}

// PageTimings describes page load timings
type PageTimings struct {
	OnContentLoad int `json:"onContentLoad,omitempty"`
	OnLoad        int `json:"onLoad,omitempty"`
}

// Entry represents a single HTTP transaction
type Entry struct {
	Pageref         string   `json:"pageref,omitempty"`
	StartedDateTime string   `json:"startedDateTime"`
	Time            float64  `json:"time"`
	Request         Request  `json:"request"`
	Response        Response `json:"response"`
	Cache           Cache    `json:"cache"`
	Timings         Timings  `json:"timings"`
	ServerIPAddress string   `json:"serverIPAddress,omitempty"`
	Connection      string   `json:"connection,omitempty"`
	Comment         string   `json:"comment,omitempty"`
}

// Request represents the HTTP request details
type Request struct {
	Method      string      `json:"method"`
	URL         string      `json:"url"`
	HTTPVersion string      `json:"httpVersion"`
	Cookies     []Cookie    `json:"cookies"`
	Headers     []NameValue `json:"headers"`
	QueryString []NameValue `json:"queryString"`
	PostData    *PostData   `json:"postData,omitempty"`
	HeadersSize int64       `json:"headersSize"`
	BodySize    int64       `json:"bodySize"`
	Comment     string      `json:"comment,omitempty"`
}

// Response represents the HTTP response details
type Response struct {
	Status      int         `json:"status"`
	StatusText  string      `json:"statusText"`
	HTTPVersion string      `json:"httpVersion"`
	Cookies     []Cookie    `json:"cookies"`
	Headers     []NameValue `json:"headers"`
	Content     Content     `json:"content"`
	RedirectURL string      `json:"redirectURL"`
	HeadersSize int64       `json:"headersSize"`
	BodySize    int64       `json:"bodySize"`
	Comment     string      `json:"comment,omitempty"`
}

// Cookie represents a cookie. Attributes other than name and value are only
// known for response cookies.
type Cookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Path     string `json:"path,omitempty"`
	Domain   string `json:"domain,omitempty"`
	Expires  string `json:"expires,omitempty"`
	HTTPOnly *bool  `json:"httpOnly,omitempty"`
	Secure   *bool  `json:"secure,omitempty"`
	Comment  string `json:"comment,omitempty"`
}

// NameValue represents a name-value pair for headers, query parameters, etc.
type NameValue struct {
	Name    string `json:"name"`
	Value   string `json:"value"`
	Comment string `json:"comment,omitempty"`
}

// PostData represents the request body
type PostData struct {
	MimeType string      `json:"mimeType"`
	Params   []PostParam `json:"params,omitempty"`
	Text     string      `json:"text"`
	Comment  string      `json:"comment,omitempty"`
}

// PostParam represents a POST parameter
type PostParam struct {
	Name        string `json:"name"`
	Value       string `json:"value,omitempty"`
	FileName    string `json:"fileName,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Comment     string `json:"comment,omitempty"`
}

// Content represents response content
type Content struct {
	Size        int64  `json:"size"`
	Compression int64  `json:"compression,omitempty"`
	MimeType    string `json:"mimeType"`
	Text        string `json:"text,omitempty"`
	Encoding    string `json:"encoding,omitempty"`
	Comment     string `json:"comment,omitempty"`
}

// Cache represents cache information
type Cache struct {
	BeforeRequest *CacheState `json:"beforeRequest,omitempty"`
	AfterRequest  *CacheState `json:"afterRequest,omitempty"`
	Comment       string      `json:"comment,omitempty"`
}

// CacheState represents cache state
type CacheState struct {
	Expires    string `json:"expires,omitempty"`
	LastAccess string `json:"lastAccess"`
	ETag       string `json:"eTag"`
	HitCount   int    `json:"hitCount"`
	Comment    string `json:"comment,omitempty"`
}

// Timings represents timing information. The middleware does not observe the
// phases of an exchange, so send, wait and receive are reported as -1.
type Timings struct {
	Blocked int    `json:"blocked,omitempty"`
	DNS     int    `json:"dns,omitempty"`
	Connect int    `json:"connect,omitempty"`
	Send    int    `json:"send"`
	Wait    int    `json:"wait"`
	Receive int    `json:"receive"`
	SSL     int    `json:"ssl,omitempty"`
	Comment string `json:"comment,omitempty"`
}

// New creates a new HAR structure with proper initialization
func New(creatorName, creatorVersion string) *HAR {
	return &HAR{
		Log: Log{
			Version: Version,
			Creator: Creator{
				Name:    creatorName,
				Version: creatorVersion,
			},
			Pages:   []Page{},
			Entries: []Entry{},
		},
	}
}

// Wrap puts a single transaction record into an archive document
func Wrap(entry Entry, creatorName, creatorVersion, comment string) *HAR {
	h := New(creatorName, creatorVersion)
	h.Log.Comment = comment
	h.Log.Entries = append(h.Log.Entries, entry)
	return h
}

// Serialize renders the document as compact JSON text
func (h *HAR) Serialize() (string, error) {
	data, err := json.Marshal(h)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ToJSON converts HAR to indented JSON bytes
func (h *HAR) ToJSON() ([]byte, error) {
	return json.MarshalIndent(h, "", "  ")
}

// FormatTime renders t the way HAR timestamps are written
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

package masking

import (
	"fmt"
	"strings"
)

const (
	// DefaultStringMask replaces string values when no explicit mask is configured
	DefaultStringMask = "__masked__"
	// DefaultNumberMask replaces numeric body fields when no explicit mask is configured
	DefaultNumberMask = "-12321"
)

// Category identifies one of the nine independent mask tables
type Category int

const (
	QueryString Category = iota
	RequestHeader
	ResponseHeader
	RequestCookie
	ResponseCookie
	RequestFieldString
	RequestFieldNumber
	ResponseFieldString
	ResponseFieldNumber
)

var categoryNames = map[Category]string{
	QueryString:         "query_string",
	RequestHeader:       "request_header",
	ResponseHeader:      "response_header",
	RequestCookie:       "request_cookie",
	ResponseCookie:      "response_cookie",
	RequestFieldString:  "request_field_string",
	RequestFieldNumber:  "request_field_number",
	ResponseFieldString: "response_field_string",
	ResponseFieldNumber: "response_field_number",
}

// String returns the configuration name of the category
func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// ParseCategory resolves a configuration name such as "request_header"
func ParseCategory(name string) (Category, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for c, n := range categoryNames {
		if n == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown mask category %q", name)
}

// DefaultMask returns the sentinel used for fields without a positional mask
func (c Category) DefaultMask() string {
	if c == RequestFieldNumber || c == ResponseFieldNumber {
		return DefaultNumberMask
	}
	return DefaultStringMask
}

// Directive is one "apply mask" instruction. Directives are applied in order,
// later directives overwrite earlier entries for the same field.
type Directive struct {
	Category Category
	Fields   []string
	Masks    []string
}

// WithQueryStringMask masks query parameters by name
func WithQueryStringMask(fields []string, masks ...string) Directive {
	return Directive{Category: QueryString, Fields: fields, Masks: masks}
}

// WithRequestHeaderMask masks request headers by name
func WithRequestHeaderMask(fields []string, masks ...string) Directive {
	return Directive{Category: RequestHeader, Fields: fields, Masks: masks}
}

// WithResponseHeaderMask masks response headers by name
func WithResponseHeaderMask(fields []string, masks ...string) Directive {
	return Directive{Category: ResponseHeader, Fields: fields, Masks: masks}
}

// WithRequestCookieMask masks request cookies by name
func WithRequestCookieMask(fields []string, masks ...string) Directive {
	return Directive{Category: RequestCookie, Fields: fields, Masks: masks}
}

// WithResponseCookieMask masks the value of response cookies by name
func WithResponseCookieMask(fields []string, masks ...string) Directive {
	return Directive{Category: ResponseCookie, Fields: fields, Masks: masks}
}

// WithRequestFieldMaskString masks string fields of JSON request bodies
func WithRequestFieldMaskString(fields []string, masks ...string) Directive {
	return Directive{Category: RequestFieldString, Fields: fields, Masks: masks}
}

// WithRequestFieldMaskNumber masks numeric fields of JSON request bodies
func WithRequestFieldMaskNumber(fields []string, masks ...string) Directive {
	return Directive{Category: RequestFieldNumber, Fields: fields, Masks: masks}
}

// WithResponseFieldMaskString masks string fields of JSON response bodies
func WithResponseFieldMaskString(fields []string, masks ...string) Directive {
	return Directive{Category: ResponseFieldString, Fields: fields, Masks: masks}
}

// WithResponseFieldMaskNumber masks numeric fields of JSON response bodies
func WithResponseFieldMaskNumber(fields []string, masks ...string) Directive {
	return Directive{Category: ResponseFieldNumber, Fields: fields, Masks: masks}
}

// Masking holds the nine field-name to replacement tables of one exchange.
// Names are case-sensitive and each table is independent of the others.
type Masking struct {
	QueryStringMasks         map[string]string
	RequestHeaderMasks       map[string]string
	ResponseHeaderMasks      map[string]string
	RequestCookieMasks       map[string]string
	ResponseCookieMasks      map[string]string
	RequestFieldMasksString  map[string]string
	RequestFieldMasksNumber  map[string]string
	ResponseFieldMasksString map[string]string
	ResponseFieldMasksNumber map[string]string
}

// New creates an empty masking configuration
func New() *Masking {
	return &Masking{
		QueryStringMasks:         map[string]string{},
		RequestHeaderMasks:       map[string]string{},
		ResponseHeaderMasks:      map[string]string{},
		RequestCookieMasks:       map[string]string{},
		ResponseCookieMasks:      map[string]string{},
		RequestFieldMasksString:  map[string]string{},
		RequestFieldMasksNumber:  map[string]string{},
		ResponseFieldMasksString: map[string]string{},
		ResponseFieldMasksNumber: map[string]string{},
	}
}

// Table returns the table backing the given category
func (m *Masking) Table(c Category) map[string]string {
	switch c {
	case QueryString:
		return m.QueryStringMasks
	case RequestHeader:
		return m.RequestHeaderMasks
	case ResponseHeader:
		return m.ResponseHeaderMasks
	case RequestCookie:
		return m.RequestCookieMasks
	case ResponseCookie:
		return m.ResponseCookieMasks
	case RequestFieldString:
		return m.RequestFieldMasksString
	case RequestFieldNumber:
		return m.RequestFieldMasksNumber
	case ResponseFieldString:
		return m.ResponseFieldMasksString
	case ResponseFieldNumber:
		return m.ResponseFieldMasksNumber
	default:
		return nil
	}
}

// Apply adds the directives to the configuration in order.
//
// For N fields and M masks: a single mask applies to every field, otherwise
// the mask at the field's position is used, and fields beyond the last mask
// fall back to the category default.
func (m *Masking) Apply(directives ...Directive) {
	for _, d := range directives {
		table := m.Table(d.Category)
		if table == nil {
			continue
		}
		for i, field := range d.Fields {
			table[field] = d.maskFor(i)
		}
	}
}

func (d Directive) maskFor(i int) string {
	switch {
	case len(d.Masks) == 1:
		return d.Masks[0]
	case i < len(d.Masks):
		return d.Masks[i]
	default:
		return d.Category.DefaultMask()
	}
}

// Clone returns a deep copy, used as the immutable snapshot for record building
func (m *Masking) Clone() *Masking {
	c := New()
	for cat := QueryString; cat <= ResponseFieldNumber; cat++ {
		dst := c.Table(cat)
		for k, v := range m.Table(cat) {
			dst[k] = v
		}
	}
	return c
}

// Value returns the replacement for name when the table has one, and
// whether a replacement happened
func Value(table map[string]string, name, value string) (string, bool) {
	if mask, ok := table[name]; ok {
		return mask, true
	}
	return value, false
}

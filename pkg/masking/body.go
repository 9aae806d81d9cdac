package masking

import (
	"fmt"
	"mime"
	"regexp"
	"sort"
	"strings"
	"sync"
)

const jsonMimeType = "application/json"

// Body masking rewrites the text with patterns instead of parsing it, so the
// original formatting survives outside the masked spans. Matching is by field
// name only: the same name at any depth is masked identically, and text inside
// a string value that looks like `"field": ...` is rewritten as well.
const (
	keyPattern       = `("%s"\s*:\s*)`
	stringPattern    = `("(?:[^"\\]|\\.)*")`
	numberPattern    = `(-?[0-9]+(?:\.[0-9]*)?)`
	delimiterPattern = `(\s*[,}\]]|\s|$)`
)

var patterns sync.Map

// IsJSON reports whether the base type of mimeType is application/json
func IsJSON(mimeType string) (bool, error) {
	if strings.TrimSpace(mimeType) == "" {
		return false, nil
	}
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return false, fmt.Errorf("failed to parse mime type %q: %w", mimeType, err)
	}
	return mediaType == jsonMimeType, nil
}

// MaskBody replaces the values of the configured string and number fields in
// a JSON body. Bodies of any other mime type are returned unchanged. When the
// mime type cannot be parsed the body is returned unchanged together with the
// error, so callers can log it and carry on.
func MaskBody(body, mimeType string, stringMasks, numberMasks map[string]string) (string, error) {
	if body == "" || (len(stringMasks) == 0 && len(numberMasks) == 0) {
		return body, nil
	}

	isJSON, err := IsJSON(mimeType)
	if err != nil || !isJSON {
		return body, err
	}

	for _, field := range sortedFields(stringMasks) {
		mask := stringMasks[field]
		re, err := fieldPattern(field, stringPattern)
		if err != nil {
			return body, err
		}
		body = re.ReplaceAllString(body, "${1}\""+escapeReplacement(mask)+"\"${3}")
	}

	for _, field := range sortedFields(numberMasks) {
		mask := numberMasks[field]
		re, err := fieldPattern(field, numberPattern)
		if err != nil {
			return body, err
		}
		body = re.ReplaceAllString(body, "${1}"+escapeReplacement(mask)+"${3}")
	}

	return body, nil
}

// sortedFields fixes the order masks are applied in, since one replacement
// may create text another field's pattern matches
func sortedFields(masks map[string]string) []string {
	fields := make([]string, 0, len(masks))
	for field := range masks {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// fieldPattern compiles the pattern for one field, caching it across requests
func fieldPattern(field, valuePattern string) (*regexp.Regexp, error) {
	expr := fmt.Sprintf(keyPattern, regexp.QuoteMeta(field)) + valuePattern + delimiterPattern
	if re, ok := patterns.Load(expr); ok {
		return re.(*regexp.Regexp), nil
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to compile mask pattern for field %q: %w", field, err)
	}
	patterns.Store(expr, re)
	return re, nil
}

// escapeReplacement keeps '$' in mask values literal for ReplaceAllString
func escapeReplacement(s string) string {
	return strings.ReplaceAll(s, "$", "$$")
}

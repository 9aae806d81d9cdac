package har

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/hmgle/harcapture/pkg/masking"
)

// requestCookies parses every Cookie header value
func requestCookies(h http.Header, masks map[string]string) []Cookie {
	r := &http.Request{Header: http.Header{"Cookie": h.Values("Cookie")}}

	out := []Cookie{}
	for _, c := range r.Cookies() {
		value, _ := masking.Value(masks, c.Name, c.Value)
		out = append(out, Cookie{Name: c.Name, Value: value})
	}
	sortCookies(out)
	return out
}

// responseCookies parses every Set-Cookie header value. Some frameworks fold
// several cookies into one value separated by commas, so each value is split
// again before parsing.
func (b *Builder) responseCookies(h http.Header, masks map[string]string) []Cookie {
	out := []Cookie{}
	for _, line := range h.Values("Set-Cookie") {
		for _, raw := range splitSetCookie(line) {
			c, err := http.ParseSetCookie(raw)
			if err != nil {
				b.logger().Debug("Skipping unparsable Set-Cookie %q: %v", raw, err)
				continue
			}
			value, _ := masking.Value(masks, c.Name, c.Value)
			cookie := Cookie{
				Name:     c.Name,
				Value:    value,
				Path:     c.Path,
				Domain:   c.Domain,
				HTTPOnly: boolPtr(c.HttpOnly),
				Secure:   boolPtr(c.Secure),
			}
			switch {
			case !c.Expires.IsZero():
				cookie.Expires = FormatTime(c.Expires)
			case c.MaxAge > 0:
				cookie.Expires = FormatTime(b.clock().Now().Add(time.Duration(c.MaxAge) * time.Second))
			}
			out = append(out, cookie)
		}
	}
	sortCookies(out)
	return out
}

// splitSetCookie splits a Set-Cookie value on the commas that separate
// cookies, leaving the commas inside Expires dates alone. A comma starts a
// new cookie when it is followed by a token and an equals sign.
func splitSetCookie(s string) []string {
	var out []string
	start := 0
	for pos := 0; pos < len(s); pos++ {
		if s[pos] != ',' {
			continue
		}
		next := pos + 1
		for next < len(s) && (s[next] == ' ' || s[next] == '\t') {
			next++
		}
		end := next
		for end < len(s) && !strings.ContainsRune("=;, ", rune(s[end])) {
			end++
		}
		if end > next && end < len(s) && s[end] == '=' {
			if part := strings.TrimSpace(s[start:pos]); part != "" {
				out = append(out, part)
			}
			start = next
			pos = next - 1
		}
	}
	if part := strings.TrimSpace(s[start:]); part != "" {
		out = append(out, part)
	}
	return out
}

func sortCookies(c []Cookie) {
	sort.SliceStable(c, func(i, j int) bool { return c[i].Name < c[j].Name })
}

func boolPtr(b bool) *bool {
	return &b
}

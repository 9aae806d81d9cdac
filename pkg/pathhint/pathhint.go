// Package pathhint turns route templates into the path hints sent along with
// every captured request, so that requests to the same route are grouped.
package pathhint

import (
	"net/http"
	"strings"
)

// Normalize rewrites a route template into the canonical path hint form in
// which every parameter is written as {name}.
//
// It accepts colon style templates ("/users/:id") as well as net/http
// ServeMux patterns ("GET example.com/users/{id}/{rest...}").
func Normalize(template string) string {
	if template == "" {
		return ""
	}

	// ServeMux patterns are "[METHOD ][HOST]/[PATH]"
	if _, rest, ok := strings.Cut(template, " "); ok {
		template = strings.TrimLeft(rest, " \t")
	}
	if !strings.HasPrefix(template, "/") {
		if i := strings.Index(template, "/"); i >= 0 {
			template = template[i:]
		}
	}

	segments := strings.Split(template, "/")
	for i, seg := range segments {
		segments[i] = normalizeSegment(seg)
	}
	return strings.Join(segments, "/")
}

func normalizeSegment(seg string) string {
	if seg == "{$}" {
		return ""
	}
	if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "...}") {
		return "{" + strings.TrimSuffix(seg[1:], "...}") + "}"
	}
	if prefix, name, ok := strings.Cut(seg, ":"); ok && name != "" {
		return prefix + "{" + name + "}"
	}
	return seg
}

// FromRequest picks the path hint for r: the matched ServeMux pattern when
// there is one, the request path otherwise
func FromRequest(r *http.Request) string {
	if r.Pattern != "" {
		return Normalize(r.Pattern)
	}
	if r.URL == nil {
		return ""
	}
	return r.URL.Path
}

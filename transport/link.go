package transport

import (
	"strings"
)

// NextCursor extracts the "next" relation URL from a response's Link
// header. An empty result means the current page is terminal. Only the
// next relation is consulted; prev/first/last are ignored.
func NextCursor(headers map[string]string) string {
	raw := headerValue(headers, "link")
	if raw == "" {
		return ""
	}
	for _, segment := range strings.Split(raw, ",") {
		target, rel := parseLinkSegment(segment)
		if target == "" {
			continue
		}
		if strings.EqualFold(rel, "next") {
			return target
		}
	}
	return ""
}

// parseLinkSegment decodes one RFC 5988 link-value: <url>; rel="next".
func parseLinkSegment(segment string) (target string, rel string) {
	parts := strings.Split(segment, ";")
	if len(parts) < 2 {
		return "", ""
	}
	target = strings.TrimSpace(parts[0])
	if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
		return "", ""
	}
	target = strings.TrimSuffix(strings.TrimPrefix(target, "<"), ">")
	for _, param := range parts[1:] {
		key, value, found := strings.Cut(strings.TrimSpace(param), "=")
		if !found {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(key), "rel") {
			rel = strings.Trim(strings.TrimSpace(value), `"`)
			return target, rel
		}
	}
	return target, ""
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

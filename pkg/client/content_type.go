package client

import (
	"regexp"
	"strings"
)

const (
	ContentTypeApplicationJSON       = "application/json"
	ContentTypeApplicationJSONRegexp = `^application/([a-zA-Z0-9\.\-]+\+)json$`
)

var jsonSuffixContentTypeRegexp = regexp.MustCompile(ContentTypeApplicationJSONRegexp)

// isJSONContentType matches "application/json" with any suffix or parameters,
// and structured syntax media types such as "application/problem+json".
func isJSONContentType(contentType string) bool {
	contentType = normalizeContentType(contentType)
	return strings.HasPrefix(contentType, ContentTypeApplicationJSON) || jsonSuffixContentTypeRegexp.MatchString(mediaType(contentType))
}

func isTextContentType(contentType string) bool {
	return strings.HasPrefix(normalizeContentType(contentType), "text/")
}

func normalizeContentType(contentType string) string {
	return strings.ToLower(strings.TrimSpace(contentType))
}

// mediaType strips parameters, for example "; charset=utf-8".
func mediaType(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.TrimSpace(contentType)
}

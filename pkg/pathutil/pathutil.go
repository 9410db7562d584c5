// Package pathutil turns remote supplied names and URLs into safe local
// path segments.
package pathutil

import (
	"mime"
	"net/url"
	"path"
	"strings"
	"unicode"
)

// SanitizeForPath replaces characters that are illegal on common
// filesystems with a space, drops C0 control characters and strips trailing
// whitespace and dots.
func SanitizeForPath(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		switch {
		case strings.ContainsRune(`<>"?\/*:|`, r):
			b.WriteRune(' ')
		case r < 0x20:
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimRightFunc(b.String(), func(r rune) bool {
		return r == '.' || unicode.IsSpace(r)
	})
}

// fixed MIME types whose extension must not depend on the host's mime tables
var knownExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"video/mp4":  ".mp4",
	"video/webm": ".webm",
}

// GuessExtension picks a file extension for a Content-Type value, falling
// back to the extension of the URL path and finally ".unknown".
func GuessExtension(contentType, rawURL string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.ToLower(contentType))
	}

	if ext, ok := knownExtensions[mediaType]; ok {
		return ext
	}
	if mediaType != "" {
		if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
			return exts[0]
		}
	}

	if u, err := url.Parse(rawURL); err == nil {
		if ext := path.Ext(u.Path); ext != "" {
			return ext
		}
	}
	return ".unknown"
}

// ServerFilename returns the query-stripped, percent-decoded URL path and its
// basename. The path is the key under which the ledger records a transfer.
// name is empty when the URL path is empty or ends in a slash.
func ServerFilename(rawURL string) (urlPath, name string) {
	stripped, _, _ := strings.Cut(rawURL, "?")
	decoded, err := url.PathUnescape(stripped)
	if err != nil {
		decoded = stripped
	}
	if u, err := url.Parse(stripped); err == nil && (u.Path == "" || strings.HasSuffix(u.Path, "/")) {
		return decoded, ""
	}
	return decoded, path.Base(decoded)
}

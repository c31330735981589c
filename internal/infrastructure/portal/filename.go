package portal

import (
	"mime"
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode/utf8"
)

// cdFilenameRx matches both filename= and filename* parameters, with or
// without quoting.
var cdFilenameRx = regexp.MustCompile(`filename\*?=(?:[^']*'')?["']?([^";]+)`)

var contentTypeExt = map[string]string{
	"application/pdf":    ".pdf",
	"application/msword": ".doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
	"application/vnd.ms-excel": ".xls",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": ".xlsx",
	"text/html":       ".html",
	"application/zip": ".zip",
}

// FilenameFromContentDisposition recovers the attachment's original name.
// Handles RFC 5987 filename* (percent-encoded UTF-8) and the common
// portal bug where a UTF-8 name was sent through a Latin-1 header.
func FilenameFromContentDisposition(cd string) string {
	if cd == "" {
		return ""
	}

	if idx := strings.Index(cd, "filename*"); idx >= 0 {
		value := cd[idx+len("filename*"):]
		if eq := strings.Index(value, "="); eq >= 0 {
			value = value[eq+1:]
			if enc, raw, ok := strings.Cut(value, "''"); ok {
				_ = enc // procurement portals send utf-8 exclusively
				if decoded, err := url.QueryUnescape(strings.TrimSpace(raw)); err == nil {
					return strings.Trim(decoded, `"' `)
				}
			}
		}
	}

	if m := cdFilenameRx.FindStringSubmatch(cd); m != nil {
		name := strings.Trim(strings.TrimSpace(m[1]), `"'`)
		return repairLatin1(name)
	}

	return ""
}

// repairLatin1 undoes UTF-8 bytes that were mis-decoded as Latin-1 by the
// sending server ('Ã¢â‚¬Â¦' shapes back into the original characters).
func repairLatin1(s string) string {
	if s == "" || utf8.RuneCountInString(s) == len(s) {
		// Pure ASCII: nothing to repair.
		return s
	}

	bytes := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xFF {
			// Contains real multi-byte characters; already valid UTF-8.
			return s
		}
		bytes = append(bytes, byte(r))
	}

	if utf8.Valid(bytes) {
		return string(bytes)
	}
	return s
}

// ExtensionFromContentType maps a Content-Type header to a filename
// extension, preferring the well-known office types the portals serve.
func ExtensionFromContentType(ct string) string {
	if ct == "" {
		return ""
	}
	ct = strings.TrimSpace(strings.SplitN(ct, ";", 2)[0])

	if ext, ok := contentTypeExt[ct]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(ct); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}

// MimeHint combines the attachment name and Content-Type into the hint
// string the extractor dispatches on.
func MimeHint(name, contentType string) string {
	if contentType != "" {
		return strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	}
	return strings.ToLower(path.Ext(name))
}

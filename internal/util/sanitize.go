package util

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"go-chat-vault/pkg/apierror"
)

const maxFilenameRunes = 255

var invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)

var reservedStems = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {}, "COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {}, "LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// SanitizeFilename cleans a client supplied attachment name so it can be shown
// back to users and used to derive an extension. Stored object keys never use it directly.
func SanitizeFilename(name string) (string, error) {
	trimmed := strings.TrimSpace(filepath.Base(strings.ReplaceAll(name, `\`, "/")))
	if trimmed == "" || trimmed == "." || trimmed == "/" {
		return "", apierror.Validation("filename cannot be empty", "")
	}

	var builder strings.Builder
	builder.Grow(len(trimmed))
	for _, char := range trimmed {
		if char == 0 || unicode.IsControl(char) || isInvisibleUnicode(char) {
			continue
		}
		builder.WriteRune(char)
	}

	cleaned := strings.TrimSpace(invalidFilenameChars.ReplaceAllString(builder.String(), "_"))
	if cleaned == "" || cleaned == "." || cleaned == ".." {
		return "", apierror.Validation("filename is invalid after sanitization", trimmed)
	}

	// truncate by runes, not bytes
	if runes := []rune(cleaned); len(runes) > maxFilenameRunes {
		cleaned = string(runes[:maxFilenameRunes])
	}

	stem := cleaned
	if idx := strings.Index(cleaned, "."); idx >= 0 {
		stem = cleaned[:idx]
	}
	if _, reserved := reservedStems[strings.ToUpper(stem)]; reserved {
		return "", apierror.Validation("reserved filename is not allowed", cleaned)
	}

	return cleaned, nil
}

// StoredNamePattern matches the names the attachment service generates: a uuid plus an optional extension.
var StoredNamePattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}(\.[A-Za-z0-9]{1,16})?$`)

// SafeExtension returns the lower-cased extension of name when it is short and alphanumeric.
func SafeExtension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > 17 {
		return ""
	}
	for _, char := range ext[1:] {
		if !(char >= 'a' && char <= 'z') && !(char >= '0' && char <= '9') {
			return ""
		}
	}
	return ext
}

func isInvisibleUnicode(r rune) bool {
	switch r {
	case '\u200B', '\u200C', '\u200D', '\u200E', '\u200F',
		'\u2060', '\u2061', '\u2062', '\u2063', '\u2064',
		'\uFEFF', '\uFFF9', '\uFFFA', '\uFFFB':
		return true
	}
	return unicode.Is(unicode.Cf, r)
}

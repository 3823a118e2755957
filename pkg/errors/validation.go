package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// ValidateRoute validates a page route taken from a request path.
// Routes are slash-separated, may be "/" and must not escape the site root.
func ValidateRoute(route string) error {
	if route == "" {
		return New(ErrCodeInvalidPath, "route cannot be empty")
	}

	const maxRouteLength = 500
	if len(route) > maxRouteLength {
		return New(ErrCodeInvalidPath, "route too long (max %d characters)", maxRouteLength)
	}

	for _, r := range route {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "route contains invalid characters")
		}
	}

	dangerousPatterns := []string{
		"..",   // Parent directory
		"//",   // Double slash
		"\x00", // Null byte
		"\\",   // Backslash (Windows path)
	}
	for _, pattern := range dangerousPatterns {
		if strings.Contains(route, pattern) {
			return New(ErrCodeInvalidPath, "route contains invalid characters: %q", pattern)
		}
	}

	return nil
}

// ValidatePath validates a file path relative to a configured root.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidPath, "path must be relative (cannot start with /)")
	}

	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}

	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}

// templateIDRegex matches template identifiers such as "basic" or "blog/post".
var templateIDRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*(/[a-z0-9][a-z0-9_-]*)*$`)

// ValidateTemplateID validates a template identifier.
func ValidateTemplateID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "template cannot be empty")
	}
	if len(id) > 128 {
		return New(ErrCodeInvalidInput, "template identifier too long (max 128 characters)")
	}
	if !templateIDRegex.MatchString(id) {
		return New(ErrCodeInvalidInput, "invalid template identifier: %q", id)
	}
	return nil
}

// fontNameRegex matches font family names usable in URLs and CSS.
var fontNameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 _-]*$`)

// ValidateFontName validates a font family name.
func ValidateFontName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidFont, "font name cannot be empty")
	}
	if len(name) > 64 {
		return New(ErrCodeInvalidFont, "font name too long (max 64 characters)")
	}
	if !fontNameRegex.MatchString(name) {
		return New(ErrCodeInvalidFont, "invalid font name: %q", name)
	}
	return nil
}

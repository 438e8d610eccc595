package account

import (
	"regexp"
	"strings"
)

var handlePattern = regexp.MustCompile(`^@\w+$`)

// ValidHandle reports whether s is "@" followed by one or more word
// characters (ASCII letters, digits, underscore).
func ValidHandle(s string) bool {
	return handlePattern.MatchString(s)
}

// HandleFromUsername turns a chat username into a handle by prefixing "@".
// An empty username yields an empty handle.
func HandleFromUsername(username string) string {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return ""
	}
	return "@" + username
}

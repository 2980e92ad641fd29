// Package videoref extracts canonical video identifiers from user supplied stream links.
package videoref

import (
	"regexp"
	"strings"
)

// IDLength is the length of a canonical video identifier.
const IDLength = 11

var patterns = []*regexp.Regexp{
	// https://www.youtube.com/watch?v=ID, optionally after other query parameters
	regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.|m\.|music\.)?youtube\.com/watch\?(?:[^#]*&)?v=([A-Za-z0-9_-]+)`),
	// https://youtu.be/ID
	regexp.MustCompile(`(?i)^(?:https?://)?youtu\.be/([A-Za-z0-9_-]+)`),
	// https://www.youtube.com/embed/ID
	regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.|m\.)?youtube(?:-nocookie)?\.com/embed/([A-Za-z0-9_-]+)`),
	// https://www.youtube.com/live/ID
	regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.|m\.)?youtube\.com/live/([A-Za-z0-9_-]+)`),
	// https://www.youtube.com/v/ID and /shorts/ID
	regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.|m\.)?youtube\.com/(?:v|shorts)/([A-Za-z0-9_-]+)`),
}

// ExtractVideoID returns the video identifier referenced by rawURL.
// Tokens longer than IDLength are truncated; shorter ones are returned unchanged.
func ExtractVideoID(rawURL string) (string, bool) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", false
	}

	for _, re := range patterns {
		m := re.FindStringSubmatch(rawURL)
		if len(m) < 2 || m[1] == "" {
			continue
		}
		id := m[1]
		if len(id) >= IDLength {
			id = id[:IDLength]
		}
		return id, true
	}
	return "", false
}

// ValidateURL reports whether rawURL references a video.
func ValidateURL(rawURL string) bool {
	_, ok := ExtractVideoID(rawURL)
	return ok
}

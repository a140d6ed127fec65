// Package url provides URL manipulation utilities for navigation requests.
package url

import (
	"net"
	"net/url"
	"path/filepath"
	"strings"
)

// DefaultScheme is prepended to scheme-less inputs.
const DefaultScheme = "https"

// knownSchemes are passed through untouched.
var knownSchemes = []string{"http://", "https://", "file://", "about:", "data:", "javascript:"}

// Normalize adds a scheme prefix when missing, the way an address bar does.
// Loopback hosts get http://, absolute paths become file:// URIs and other
// URL-like inputs get scheme://. Inputs that do not look like a URL are
// returned unchanged.
func Normalize(input, scheme string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return ""
	}
	if scheme == "" {
		scheme = DefaultScheme
	}

	if HasScheme(input) {
		return input
	}

	if filepath.IsAbs(input) {
		return (&url.URL{Scheme: "file", Path: input}).String()
	}

	if isLoopback(input) {
		return "http://" + input
	}

	if LooksLikeURL(input) {
		return scheme + "://" + input
	}

	return input
}

// HasScheme reports whether input starts with a scheme the hosts understand.
func HasScheme(input string) bool {
	lower := strings.ToLower(input)
	for _, prefix := range knownSchemes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// LooksLikeURL checks if the input appears to be a URL (not free text).
// Returns true for strings like "github.com" or "example.com/path".
func LooksLikeURL(input string) bool {
	if input == "" {
		return false
	}
	if HasScheme(input) {
		return true
	}
	if strings.ContainsAny(input, " \t\n") {
		return false
	}
	return strings.Contains(input, ".") || isLoopback(input)
}

// ExtractDomain extracts the lowercased host from a URL string.
// Returns "" for inputs without a host.
func ExtractDomain(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}

func isLoopback(input string) bool {
	host := input
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

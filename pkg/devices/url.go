package devices

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

// ErrEmptyURL is returned for a blank preview URL.
var ErrEmptyURL = errors.New("Enter a URL to preview")

var (
	schemePattern    = regexp.MustCompile(`(?i)^https?://`)
	localhostPattern = regexp.MustCompile(`(?i)^(localhost|127\.0\.0\.1|0\.0\.0\.0|\[::1\])`)
)

// Schemes that are passed through untouched when typed explicitly.
var passthroughSchemes = map[string]bool{
	"file":  true,
	"about": true,
	"data":  true,
	"ftp":   true,
}

// NormalizeTargetURL turns operator input into a loadable URL. Local hosts
// default to http, everything else to https.
func NormalizeTargetURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrEmptyURL
	}
	if schemePattern.MatchString(trimmed) {
		return trimmed, nil
	}
	if localhostPattern.MatchString(trimmed) {
		return "http://" + trimmed, nil
	}
	if strings.HasPrefix(trimmed, "//") {
		if u, err := url.Parse("https:" + trimmed); err == nil && u.Host != "" {
			if u.Path == "" {
				u.Path = "/"
			}
			return u.String(), nil
		}
	}
	if u, err := url.Parse(trimmed); err == nil && passthroughSchemes[strings.ToLower(u.Scheme)] {
		return u.String(), nil
	}
	return "https://" + trimmed, nil
}

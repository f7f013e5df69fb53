// Package mirror runs responsive preview sessions: it provisions one browser
// target per emulated device, captures frames from each on a fixed cadence and
// forwards operator input back into the targets.
package mirror

import (
	"errors"
	"strings"
	"time"
)

// Mode is how the canvas renders a session.
type Mode string

const (
	ModeMirror Mode = "mirror"
	ModeIframe Mode = "iframe"
)

// Session is one request to preview a URL across a set of devices. It is
// read-only once handed to the registry.
type Session struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Devices   []string  `json:"devices"`
	Mode      Mode      `json:"mode"`
	CreatedAt time.Time `json:"createdAt"`
}

// Validate checks the fields a start request needs.
func (s Session) Validate() error {
	switch {
	case strings.TrimSpace(s.ID) == "":
		return errors.New("session id is required")
	case strings.TrimSpace(s.URL) == "":
		return errors.New("session url is required")
	case len(s.Devices) == 0:
		return errors.New("session needs at least one device")
	}
	switch s.Mode {
	case "", ModeMirror, ModeIframe:
	default:
		return errors.New("unknown session mode " + string(s.Mode))
	}
	return nil
}

// DefaultChannelPrefix names UI channels: "<prefix><sessionId>".
const DefaultChannelPrefix = "responsive-view:"

// ChannelName returns the channel name for a session.
func ChannelName(prefix, sessionID string) string {
	return prefix + sessionID
}

// ParseChannel extracts the session id from a channel name.
func ParseChannel(prefix, name string) (string, bool) {
	if !strings.HasPrefix(name, prefix) {
		return "", false
	}
	id := strings.TrimPrefix(name, prefix)
	if id == "" {
		return "", false
	}
	return id, true
}

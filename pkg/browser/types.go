package browser

import "strings"

// SurfaceID identifies an isolated display surface (a browser context plus
// the window that hosts its targets).
type SurfaceID string

// TargetID identifies a rendering target (a page) inside a surface.
type TargetID string

// TargetInfo describes a rendering target that already exists in a surface.
type TargetInfo struct {
	ID     TargetID `json:"id"`
	URL    string   `json:"url,omitempty"`
	Active bool     `json:"active"`
}

// SurfaceOptions configures a newly created display surface.
type SurfaceOptions struct {
	// Width and Height are the outer window bounds. The window is kept small
	// but fully on-screen: a minimized or off-screen window stops painting and
	// screenshots against its targets hang.
	Width  int `json:"width"`
	Height int `json:"height"`
	Left   int `json:"left"`
	Top    int `json:"top"`
	// InitialURL is loaded by the target created together with the window.
	InitialURL string `json:"initial_url,omitempty"`
}

// DefaultSurfaceOptions returns the recommended surface bounds.
func DefaultSurfaceOptions() SurfaceOptions {
	return SurfaceOptions{
		Width:      520,
		Height:     420,
		InitialURL: "about:blank",
	}
}

// WithDefaults fills zero fields from DefaultSurfaceOptions.
func (o SurfaceOptions) WithDefaults() SurfaceOptions {
	defaults := DefaultSurfaceOptions()
	if o.Width > 0 {
		defaults.Width = o.Width
	}
	if o.Height > 0 {
		defaults.Height = o.Height
	}
	if o.Left > 0 {
		defaults.Left = o.Left
	}
	if o.Top > 0 {
		defaults.Top = o.Top
	}
	if strings.TrimSpace(o.InitialURL) != "" {
		defaults.InitialURL = strings.TrimSpace(o.InitialURL)
	}
	return defaults
}

// PickHost returns the target that should host the first device of a
// session: the active target if one is marked, otherwise the first one.
func PickHost(targets []TargetInfo) (TargetID, bool) {
	for _, t := range targets {
		if t.Active && t.ID != "" {
			return t.ID, true
		}
	}
	for _, t := range targets {
		if t.ID != "" {
			return t.ID, true
		}
	}
	return "", false
}

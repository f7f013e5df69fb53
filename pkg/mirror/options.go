package mirror

import (
	"errors"
	"time"

	"github.com/odvcencio/respview/pkg/browser"
)

// Timings bounds every step of the capture pipeline.
type Timings struct {
	CaptureInterval  time.Duration
	AttachTimeout    time.Duration
	EmulationTimeout time.Duration
	NavigateTimeout  time.Duration
	SettleDelay      time.Duration
	PaintDelay       time.Duration
	CaptureTimeout   time.Duration
}

// DefaultTimings returns the production cadence.
func DefaultTimings() Timings {
	return Timings{
		CaptureInterval:  1100 * time.Millisecond,
		AttachTimeout:    2500 * time.Millisecond,
		EmulationTimeout: 2500 * time.Millisecond,
		NavigateTimeout:  5 * time.Second,
		SettleDelay:      250 * time.Millisecond,
		PaintDelay:       60 * time.Millisecond,
		CaptureTimeout:   2500 * time.Millisecond,
	}
}

func (t Timings) validate() error {
	if t.CaptureInterval <= 0 || t.AttachTimeout <= 0 || t.EmulationTimeout <= 0 ||
		t.NavigateTimeout <= 0 || t.CaptureTimeout <= 0 {
		return errors.New("capture interval and step timeouts must be positive")
	}
	if t.SettleDelay < 0 || t.PaintDelay < 0 {
		return errors.New("settle and paint delays must not be negative")
	}
	return nil
}

// Options configures runtimes created by a Registry.
type Options struct {
	Timings        Timings
	JPEGQuality    int
	MaxTouchPoints int
	// SendTimeout bounds a single write to the UI channel.
	SendTimeout time.Duration
	// TeardownTimeout bounds the whole stop sequence of one runtime.
	TeardownTimeout time.Duration
	// ProvisionTimeout bounds surface and target creation for one start.
	ProvisionTimeout time.Duration
	Surface          browser.SurfaceOptions
}

// DefaultOptions returns production defaults.
func DefaultOptions() Options {
	return Options{
		Timings:          DefaultTimings(),
		JPEGQuality:      70,
		MaxTouchPoints:   5,
		SendTimeout:      2 * time.Second,
		TeardownTimeout:  10 * time.Second,
		ProvisionTimeout: 15 * time.Second,
		Surface:          browser.DefaultSurfaceOptions(),
	}
}

// Validate rejects options the capture loop cannot run with.
func (o Options) Validate() error {
	if err := o.Timings.validate(); err != nil {
		return err
	}
	if o.JPEGQuality < 1 || o.JPEGQuality > 100 {
		return errors.New("jpeg quality must be between 1 and 100")
	}
	if o.MaxTouchPoints < 1 {
		return errors.New("max touch points must be positive")
	}
	return nil
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Timings == (Timings{}) {
		o.Timings = d.Timings
	}
	if o.JPEGQuality == 0 {
		o.JPEGQuality = d.JPEGQuality
	}
	if o.MaxTouchPoints == 0 {
		o.MaxTouchPoints = d.MaxTouchPoints
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = d.SendTimeout
	}
	if o.TeardownTimeout <= 0 {
		o.TeardownTimeout = d.TeardownTimeout
	}
	if o.ProvisionTimeout <= 0 {
		o.ProvisionTimeout = d.ProvisionTimeout
	}
	o.Surface = o.Surface.WithDefaults()
	return o
}

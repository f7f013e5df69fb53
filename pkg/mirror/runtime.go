package mirror

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/odvcencio/respview/pkg/browser"
	"github.com/odvcencio/respview/pkg/observability"
)

// ErrStopping is returned for commands that arrive while a runtime tears down.
var ErrStopping = errors.New("session is stopping")

// Runtime is the live state of one session: its display surface, its devices
// and its capture schedule.
type Runtime struct {
	key     string
	session Session
	channel Channel
	host    browser.Host
	opts    Options
	log     *observability.Logger
	now     func() time.Time

	surface browser.SurfaceID
	order   []*Device
	devices map[string]*Device

	ctx      context.Context
	cancel   context.CancelFunc
	schedule *Schedule

	stopping atomic.Bool
	ticking  atomic.Bool
	skipped  atomic.Int64

	stopOnce sync.Once
	stopErr  error
}

// RuntimeInfo is a point-in-time view of a Runtime.
type RuntimeInfo struct {
	SessionID    string       `json:"sessionId"`
	URL          string       `json:"url"`
	Mode         Mode         `json:"mode"`
	Devices      []DeviceInfo `json:"devices"`
	Stopping     bool         `json:"stopping"`
	SkippedTicks int64        `json:"skippedTicks"`
}

func newRuntime(key string, session Session, ch Channel, host browser.Host, opts Options, log *observability.Logger, now func() time.Time) *Runtime {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runtime{
		key:     key,
		session: session,
		channel: ch,
		host:    host,
		opts:    opts,
		log:     log.WithSession(key),
		now:     now,
		devices: make(map[string]*Device),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (r *Runtime) addDevice(d *Device) {
	r.order = append(r.order, d)
	r.devices[d.ID] = d
}

// Session returns the session the runtime was started with.
func (r *Runtime) Session() Session {
	return r.session
}

// Device returns the device with id.
func (r *Runtime) Device(id string) (*Device, bool) {
	d, ok := r.devices[id]
	return d, ok
}

// Stopping reports whether teardown has begun.
func (r *Runtime) Stopping() bool {
	return r.stopping.Load()
}

// SkippedTicks counts ticks dropped because the previous one was in flight.
func (r *Runtime) SkippedTicks() int64 {
	return r.skipped.Load()
}

// Info snapshots the runtime.
func (r *Runtime) Info() RuntimeInfo {
	info := RuntimeInfo{
		SessionID:    r.key,
		URL:          r.session.URL,
		Mode:         r.session.Mode,
		Stopping:     r.stopping.Load(),
		SkippedTicks: r.skipped.Load(),
	}
	for _, d := range r.order {
		info.Devices = append(info.Devices, d.Info())
	}
	return info
}

func (r *Runtime) startCapture() {
	r.schedule = StartSchedule(r.ctx, r.opts.Timings.CaptureInterval, r.tick)
}

// bind derives a context from parent that is also cancelled when the
// runtime stops.
func (r *Runtime) bind(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(r.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (r *Runtime) send(msg Outbound) {
	sendTo(r.channel, r.opts.SendTimeout, r.log, msg)
}

func (r *Runtime) status(deviceID string, status Status, message string) {
	r.send(StatusMessage{SessionID: r.session.ID, DeviceID: deviceID, Status: status, Message: message})
}

// sendTo delivers msg without letting a slow or closed channel stall the caller.
func sendTo(ch Channel, timeout time.Duration, log *observability.Logger, msg Outbound) {
	if ch == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := ch.Send(ctx, msg); err != nil {
		_, deviceID := msg.Scope()
		log.Debug("send to ui failed",
			"message_type", string(msg.Type()),
			"device_id", deviceID,
			"error", err.Error(),
		)
	}
}

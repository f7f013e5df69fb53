package mirror

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/odvcencio/respview/pkg/observability"
)

// tick captures one frame from every device in request order. A tick that
// finds another still running returns immediately.
func (r *Runtime) tick(ctx context.Context) {
	if r.stopping.Load() {
		return
	}
	if !r.ticking.CompareAndSwap(false, true) {
		r.skipped.Add(1)
		ticksTotal.WithLabelValues("skipped").Inc()
		r.log.TickSkipped(r.key)
		return
	}
	defer r.ticking.Store(false)
	ticksTotal.WithLabelValues("ran").Inc()

	ctx, span := observability.StartSpan(ctx, "mirror.tick", observability.AttrSessionID.String(r.key))
	defer span.End()

	for _, d := range r.order {
		if r.stopping.Load() || ctx.Err() != nil {
			return
		}
		r.captureDevice(ctx, d)
	}
}

func (r *Runtime) captureDevice(ctx context.Context, d *Device) {
	started := time.Now()
	ctx, span := observability.StartSpan(ctx, "mirror.capture", observability.AttrDeviceID.String(d.ID))

	d.mu.Lock()
	data, err := r.captureLocked(ctx, d)
	d.mu.Unlock()

	observability.EndSpan(span, err)
	if err != nil {
		if r.stopping.Load() {
			return
		}
		capturesTotal.WithLabelValues("error").Inc()
		r.log.CaptureFailed(d.ID, err)
		r.status(d.ID, StatusError, err.Error())
		return
	}

	capturesTotal.WithLabelValues("ok").Inc()
	frameBytes.Observe(float64(len(data)))
	r.send(FrameMessage{
		SessionID:  r.session.ID,
		DeviceID:   d.ID,
		Mime:       FrameMimeJPEG,
		DataBase64: base64.StdEncoding.EncodeToString(data),
		CapturedAt: r.now(),
	})
	r.status(d.ID, StatusLive, "")
	captureDuration.Observe(time.Since(started).Seconds())
}

func (r *Runtime) captureLocked(ctx context.Context, d *Device) ([]byte, error) {
	if err := r.ensureInitialized(ctx, d); err != nil {
		return nil, err
	}
	r.activate(ctx, d)
	if err := sleep(ctx, r.opts.Timings.PaintDelay); err != nil {
		return nil, err
	}
	return RunWithDeadline(ctx, "captureScreenshot", r.opts.Timings.CaptureTimeout, func(ctx context.Context) ([]byte, error) {
		return d.client.CaptureJPEG(ctx, d.clip(), r.opts.JPEGQuality)
	})
}

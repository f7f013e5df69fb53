package mirror

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/odvcencio/respview/pkg/observability"
)

// RouterConfig configures a Router.
type RouterConfig struct {
	// InputRate and InputBurst limit mirror/input messages per channel.
	// A zero rate disables limiting.
	InputRate  rate.Limit
	InputBurst int
	Logger     *observability.Logger
}

// Router dispatches messages from one UI channel. The channel is bound to a
// single session id, taken from the channel name.
type Router struct {
	registry  *Registry
	sessionID string
	channel   Channel
	limiter   *rate.Limiter
	log       *observability.Logger
}

// NewRouter binds a UI channel for sessionID to the registry.
func NewRouter(registry *Registry, sessionID string, ch Channel, cfg RouterConfig) *Router {
	log := cfg.Logger
	if log == nil {
		log = registry.log
	}
	rt := &Router{
		registry:  registry,
		sessionID: sessionID,
		channel:   ch,
		log:       log.WithSession(sessionID),
	}
	if cfg.InputRate > 0 {
		burst := cfg.InputBurst
		if burst <= 0 {
			burst = 1
		}
		rt.limiter = rate.NewLimiter(cfg.InputRate, burst)
	}
	return rt
}

// SessionID returns the session the router is bound to.
func (rt *Router) SessionID() string {
	return rt.sessionID
}

// HandleRaw decodes and dispatches a message. Undecodable messages are logged
// and dropped.
func (rt *Router) HandleRaw(ctx context.Context, data []byte) error {
	msg, err := DecodeInbound(data)
	if err != nil {
		rt.log.MessageFailed("decode", err)
		return err
	}
	return rt.Handle(ctx, msg)
}

// Handle dispatches one message. Failures are logged and reported to the UI
// as error statuses: scoped to the named device when there is one, otherwise
// to every device of the session. The returned error is informational.
func (rt *Router) Handle(ctx context.Context, msg Inbound) (err error) {
	if msg == nil {
		return fmt.Errorf("%w: nil message", ErrUnknownMessage)
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic handling %s: %v", msg.Type(), p)
		}
		if err != nil && !errors.Is(err, ErrStopping) {
			rt.fail(msg, err)
		}
	}()

	switch m := msg.(type) {
	case StartMessage:
		// Registry.Start reports provisioning failures itself.
		if _, err := rt.registry.Start(ctx, rt.sessionID, m.Session, rt.channel); err != nil {
			rt.log.MessageFailed(string(m.Type()), err)
		}
		return nil
	case StopMessage:
		// A channel only ever controls its own session.
		return rt.registry.Stop(ctx, rt.sessionID)
	case ReloadMessage:
		runtime, ok := rt.registry.Get(rt.sessionID)
		if !ok {
			return nil
		}
		return runtime.Reload(ctx, m.DeviceID)
	case InputMessage:
		runtime, ok := rt.registry.Get(rt.sessionID)
		if !ok {
			return nil
		}
		// Only wheel floods are shed. Clicks always go through.
		if _, wheel := m.Event.(WheelEvent); wheel && rt.limiter != nil && !rt.limiter.Allow() {
			inputEvents.WithLabelValues(eventKind(m.Event), "dropped").Inc()
			rt.log.WithDevice(m.DeviceID).Debug("wheel event dropped by input limit")
			return nil
		}
		return runtime.Input(ctx, m.DeviceID, m.Event)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownMessage, msg)
	}
}

// Disconnect stops the channel's session.
func (rt *Router) Disconnect(ctx context.Context) error {
	err := rt.registry.Stop(ctx, rt.sessionID)
	if err != nil {
		rt.log.Error("stop on disconnect failed", "error", err.Error())
	}
	return err
}

func (rt *Router) fail(msg Inbound, err error) {
	rt.log.MessageFailed(string(msg.Type()), err)

	runtime, ok := rt.registry.Get(rt.sessionID)
	if !ok {
		return
	}
	if deviceID := messageDevice(msg); deviceID != "" {
		runtime.status(deviceID, StatusError, err.Error())
		return
	}
	for _, deviceID := range runtime.session.Devices {
		runtime.status(deviceID, StatusError, err.Error())
	}
}

func messageDevice(msg Inbound) string {
	switch m := msg.(type) {
	case ReloadMessage:
		return m.DeviceID
	case InputMessage:
		return m.DeviceID
	}
	return ""
}

func eventKind(ev InputEvent) string {
	if ev == nil {
		return "unknown"
	}
	return ev.Kind()
}

package mirror

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// MessageType tags channel messages.
type MessageType string

const (
	TypeStart  MessageType = "mirror/start"
	TypeStop   MessageType = "mirror/stop"
	TypeReload MessageType = "mirror/reload"
	TypeInput  MessageType = "mirror/input"
	TypeFrame  MessageType = "mirror/frame"
	TypeStatus MessageType = "mirror/status"
)

// ErrUnknownMessage is returned when a message or event tag is not recognised.
var ErrUnknownMessage = errors.New("unknown message")

// Inbound is a message from the UI. Implementations are StartMessage,
// StopMessage, ReloadMessage and InputMessage.
type Inbound interface {
	Type() MessageType
	isInbound()
}

type StartMessage struct {
	Session Session
}

type StopMessage struct {
	SessionID string
}

type ReloadMessage struct {
	SessionID string
	DeviceID  string
}

type InputMessage struct {
	SessionID string
	DeviceID  string
	Event     InputEvent
}

func (StartMessage) Type() MessageType  { return TypeStart }
func (StopMessage) Type() MessageType   { return TypeStop }
func (ReloadMessage) Type() MessageType { return TypeReload }
func (InputMessage) Type() MessageType  { return TypeInput }

func (StartMessage) isInbound()  {}
func (StopMessage) isInbound()   {}
func (ReloadMessage) isInbound() {}
func (InputMessage) isInbound()  {}

// InputEvent is a ClickEvent or a WheelEvent in device logical pixels.
type InputEvent interface {
	Kind() string
	isInputEvent()
}

// ClickEvent is a primary click unless Button is 2.
type ClickEvent struct {
	X, Y   float64
	Button int
}

type WheelEvent struct {
	X, Y           float64
	DeltaX, DeltaY float64
}

func (ClickEvent) Kind() string { return "click" }
func (WheelEvent) Kind() string { return "wheel" }

func (ClickEvent) isInputEvent() {}
func (WheelEvent) isInputEvent() {}

type inboundEnvelope struct {
	Type      MessageType     `json:"type"`
	Session   *Session        `json:"session,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	DeviceID  string          `json:"deviceId,omitempty"`
	Event     json.RawMessage `json:"event,omitempty"`
}

type eventEnvelope struct {
	Kind   string  `json:"kind"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Button *int    `json:"button,omitempty"`
	DeltaX float64 `json:"deltaX"`
	DeltaY float64 `json:"deltaY"`
}

// DecodeInbound parses a UI message.
func DecodeInbound(data []byte) (Inbound, error) {
	var env inboundEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	switch env.Type {
	case TypeStart:
		if env.Session == nil {
			return nil, errors.New("decode message: mirror/start without session")
		}
		return StartMessage{Session: *env.Session}, nil
	case TypeStop:
		return StopMessage{SessionID: env.SessionID}, nil
	case TypeReload:
		return ReloadMessage{SessionID: env.SessionID, DeviceID: env.DeviceID}, nil
	case TypeInput:
		ev, err := decodeEvent(env.Event)
		if err != nil {
			return nil, err
		}
		return InputMessage{SessionID: env.SessionID, DeviceID: env.DeviceID, Event: ev}, nil
	}
	return nil, fmt.Errorf("%w: type %q", ErrUnknownMessage, env.Type)
}

func decodeEvent(raw json.RawMessage) (InputEvent, error) {
	if len(raw) == 0 {
		return nil, errors.New("decode message: mirror/input without event")
	}
	var ev eventEnvelope
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	switch ev.Kind {
	case "click":
		click := ClickEvent{X: ev.X, Y: ev.Y}
		if ev.Button != nil {
			click.Button = *ev.Button
		}
		return click, nil
	case "wheel":
		return WheelEvent{X: ev.X, Y: ev.Y, DeltaX: ev.DeltaX, DeltaY: ev.DeltaY}, nil
	}
	return nil, fmt.Errorf("%w: event kind %q", ErrUnknownMessage, ev.Kind)
}

// Outbound is a message to the UI: FrameMessage or StatusMessage.
type Outbound interface {
	Type() MessageType
	// Scope returns the session and device the message is about.
	Scope() (sessionID, deviceID string)
	isOutbound()
}

// FrameMimeJPEG is the only frame encoding produced.
const FrameMimeJPEG = "image/jpeg"

type FrameMessage struct {
	SessionID  string
	DeviceID   string
	Mime       string
	DataBase64 string
	CapturedAt time.Time
}

// Status is the lifecycle state of a device tile.
type Status string

const (
	StatusStarting Status = "starting"
	StatusLive     Status = "live"
	StatusError    Status = "error"
)

type StatusMessage struct {
	SessionID string
	DeviceID  string
	Status    Status
	Message   string
}

func (FrameMessage) Type() MessageType  { return TypeFrame }
func (StatusMessage) Type() MessageType { return TypeStatus }

func (m FrameMessage) Scope() (string, string)  { return m.SessionID, m.DeviceID }
func (m StatusMessage) Scope() (string, string) { return m.SessionID, m.DeviceID }

func (FrameMessage) isOutbound()  {}
func (StatusMessage) isOutbound() {}

// capturedAtLayout is RFC 3339 with millisecond precision.
const capturedAtLayout = "2006-01-02T15:04:05.000Z07:00"

type frameJSON struct {
	Type       MessageType `json:"type"`
	SessionID  string      `json:"sessionId"`
	DeviceID   string      `json:"deviceId"`
	Mime       string      `json:"mime"`
	DataBase64 string      `json:"dataBase64"`
	CapturedAt string      `json:"capturedAt"`
}

type statusJSON struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"sessionId"`
	DeviceID  string      `json:"deviceId"`
	Status    Status      `json:"status"`
	Message   string      `json:"message,omitempty"`
}

func (m FrameMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(frameJSON{
		Type:       TypeFrame,
		SessionID:  m.SessionID,
		DeviceID:   m.DeviceID,
		Mime:       m.Mime,
		DataBase64: m.DataBase64,
		CapturedAt: m.CapturedAt.UTC().Format(capturedAtLayout),
	})
}

func (m StatusMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(statusJSON{
		Type:      TypeStatus,
		SessionID: m.SessionID,
		DeviceID:  m.DeviceID,
		Status:    m.Status,
		Message:   m.Message,
	})
}

// DecodeOutbound parses a message produced by MarshalJSON.
func DecodeOutbound(data []byte) (Outbound, error) {
	var head struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	switch head.Type {
	case TypeFrame:
		var f frameJSON
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("decode frame: %w", err)
		}
		at, err := time.Parse(time.RFC3339, f.CapturedAt)
		if err != nil {
			return nil, fmt.Errorf("decode frame: %w", err)
		}
		return FrameMessage{SessionID: f.SessionID, DeviceID: f.DeviceID, Mime: f.Mime, DataBase64: f.DataBase64, CapturedAt: at}, nil
	case TypeStatus:
		var s statusJSON
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("decode status: %w", err)
		}
		return StatusMessage{SessionID: s.SessionID, DeviceID: s.DeviceID, Status: s.Status, Message: s.Message}, nil
	}
	return nil, fmt.Errorf("%w: type %q", ErrUnknownMessage, head.Type)
}

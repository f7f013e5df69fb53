// Package bus fans mirror traffic out to other consumers over a subject-based
// message bus. The default implementation is in-memory; NATS is used when a
// server URL is configured.
package bus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrClosed is returned when operating on a closed bus or subscription.
	ErrClosed = errors.New("bus or subscription closed")

	// ErrUnknownKind is returned by New for an unsupported bus kind.
	ErrUnknownKind = errors.New("unknown bus kind")
)

// Interest is implemented by buses that can see every subscriber of a
// subject. Publishers may skip encoding a message nobody receives.
type Interest interface {
	HasSubscribers(subject string) bool
}

// MessageBus publishes and subscribes to subjects.
// Implementations must be safe for concurrent use.
type MessageBus interface {
	// Publish sends data to every subscriber of subject. It does not wait
	// for delivery.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers handler for subject. Supports "*" (one token) and
	// ">" (one or more trailing tokens) wildcards.
	Subscribe(ctx context.Context, subject string, handler MessageHandler) (Subscription, error)

	Close() error
}

// MessageHandler processes one incoming message.
type MessageHandler func(msg *Message)

// Message is one delivery from the bus.
type Message struct {
	Subject string
	Data    []byte
}

// Subscription is an active subscription.
type Subscription interface {
	Unsubscribe() error
	Subject() string
}

// Kinds accepted by New.
const (
	KindMemory = "memory"
	KindNATS   = "nats"
)

// Config selects and configures a MessageBus.
type Config struct {
	Kind string

	// URL is the NATS server URL. Ignored for the memory bus.
	URL string

	// Name is a client identifier for monitoring.
	Name string

	Timeout time.Duration
}

// DefaultConfig returns an in-memory bus config.
func DefaultConfig() Config {
	return Config{
		Kind:    KindMemory,
		URL:     "nats://localhost:4222",
		Name:    "respview",
		Timeout: 5 * time.Second,
	}
}

// New builds the bus named by cfg.Kind.
func New(cfg Config) (MessageBus, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "", KindMemory:
		return NewMemoryBus(), nil
	case KindNATS:
		return NewNATSBus(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
}

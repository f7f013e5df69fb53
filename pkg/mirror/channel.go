package mirror

import (
	"context"
)

//go:generate mockgen -package=mirror -destination=mock_channel_test.go github.com/odvcencio/respview/pkg/mirror Channel

// Channel delivers outbound messages to the UI of one session.
type Channel interface {
	Send(ctx context.Context, msg Outbound) error
}

// ChannelFunc adapts a function to Channel.
type ChannelFunc func(ctx context.Context, msg Outbound) error

func (f ChannelFunc) Send(ctx context.Context, msg Outbound) error {
	return f(ctx, msg)
}

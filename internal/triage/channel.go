package triage

import "context"

// Channel names where a decision came from, for logs and metrics.
type Channel string

// Decision channels
const (
	ChannelUI   Channel = "ui"
	ChannelLink Channel = "link"
	ChannelChat Channel = "chat"
	ChannelCLI  Channel = "cli"
)

type channelKey struct{}

// WithChannel tags ctx with the channel a decision arrives through.
func WithChannel(ctx context.Context, ch Channel) context.Context {
	return context.WithValue(ctx, channelKey{}, ch)
}

func channelFrom(ctx context.Context) Channel {
	if ch, ok := ctx.Value(channelKey{}).(Channel); ok {
		return ch
	}
	return defaultChannel
}

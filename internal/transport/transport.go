package transport

import "context"

// Inbound is one message delivered by the chat platform: who said what,
// where. DM marks a direct message to the bot; otherwise ChannelID is a
// shared channel.
type Inbound struct {
	ActorID   string
	ChannelID string
	DM        bool
	Text      string
}

// Transport is the messaging boundary. The command router consumes
// Messages and replies through the send methods; everything about the
// actual chat platform stays behind this interface.
type Transport interface {
	// Messages yields inbound messages until the transport closes.
	Messages() <-chan Inbound
	// SendDM delivers text privately to a user.
	SendDM(ctx context.Context, userID, text string) error
	// SendChannel delivers text to a shared channel.
	SendChannel(ctx context.Context, channelID, text string) error
	Close() error
}

// internal/notify/channel.go

// Package notify defines the channel the registry reports successful loans to,
// together with the implementations an embedding application can choose from.
package notify

import "context"

// Channel receives a message for a member after a committed state change.
// Implementations must not report failure back to the caller; delivery is best effort.
type Channel interface {
	Notify(ctx context.Context, recipientID, message string)
}

// ChannelFunc adapts an ordinary function to a Channel.
type ChannelFunc func(ctx context.Context, recipientID, message string)

// Notify calls f.
func (f ChannelFunc) Notify(ctx context.Context, recipientID, message string) {
	f(ctx, recipientID, message)
}

// Discard drops every notification.
var Discard Channel = ChannelFunc(func(context.Context, string, string) {})

// BorrowedMessage is sent to a member after a successful borrow.
func BorrowedMessage(title string) string {
	return "You have borrowed: " + title
}

// ReturnedMessage is sent to a member after a successful return.
func ReturnedMessage(title string) string {
	return "You have returned: " + title
}

// Fanout delivers each notification to every channel in order.
type Fanout []Channel

func (f Fanout) Notify(ctx context.Context, recipientID, message string) {
	for _, ch := range f {
		if ch != nil {
			ch.Notify(ctx, recipientID, message)
		}
	}
}

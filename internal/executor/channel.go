package executor

import (
	"errors"
	"net"
)

// Channel is the live full-duplex connection to the remote observer. Reads
// block until a message or error arrives; writes are best-effort from the
// engine's point of view.
type Channel interface {
	ReadMessage() (string, error)
	WriteMessage(text string) error
	Close() error
}

// channelGone reports whether a channel error means the connection is
// unusable, as opposed to a retriable timeout.
func channelGone(err error) bool {
	if err == nil {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return false
	}
	return true
}

// Package hub fans state snapshots out to websocket subscribers
// using the channel-based broadcast pattern.
package hub

// Message is one pre-encoded JSON frame.
type Message struct {
	Topic string
	Data  []byte
}

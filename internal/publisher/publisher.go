// Package publisher defines the sink for crawler-hit events.
package publisher

import "context"

// Publisher sends a JSON-encodable payload to a topic and returns the
// message ID assigned by the broker.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

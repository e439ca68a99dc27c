// Package chatplatform declares the seams the harness uses to talk to the
// chat platform it is embedded in. The platform's real-time transport, auth,
// and message rendering are out of scope for this repository; callers supply
// a concrete Client and EventSource.
package chatplatform

import (
	"context"
	"encoding/json"
	"time"
)

// Mention is one inbound event delivered by the platform's real-time
// transport, before it is durably enqueued.
type Mention struct {
	Kind       string
	OccurredAt time.Time
	Payload    json.RawMessage
}

// Client is the handle a processor uses to act on the platform: sending
// replies, reacting, or looking up channel/user metadata. The harness
// passes one shared Client instance to every worker via harness.Context.
type Client interface {
	// Reply sends text back to the conversation the given mention payload
	// came from.
	Reply(ctx context.Context, payload json.RawMessage, text string) error
}

// EventSource is the platform's real-time transport, as seen by an ingress
// adapter. Listen blocks, invoking onMention for every inbound event, until
// ctx is cancelled or the transport fails.
//
// onMention's contract mirrors the Ingress Adapter contract: it must not
// return until the mention is durably enqueued, and the boolean it returns
// tells the transport whether to acknowledge (true) or allow redelivery
// (false).
type EventSource interface {
	Listen(ctx context.Context, onMention func(Mention) bool) error
}

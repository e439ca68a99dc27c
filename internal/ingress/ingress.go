// Package ingress defines the Ingress Adapter (IA) contract: enqueue a
// mention through the Queue Store before acknowledging the platform
// transport, then signal the Trigger Channel. Concrete adapters live in the
// socketingress and kafkaingress subpackages; both depend only on this
// contract and on admission.Limiter.
package ingress

import (
	"context"
	"encoding/json"

	"github.com/mentionflow/harness/internal/trigger"
)

// Enqueuer is the subset of the Queue Store an Ingress Adapter depends on.
type Enqueuer interface {
	Enqueue(ctx context.Context, kind string, payload json.RawMessage) error
}

// Adapter is the contract every ingress implementation satisfies: Run
// blocks, feeding mentions into the queue, until ctx is cancelled or the
// underlying transport fails.
type Adapter interface {
	Run(ctx context.Context) error
}

// Admit runs the Ingress Adapter contract for one mention: enqueue first
// (durability before acknowledgement), then signal the Trigger Channel. It
// returns whether the caller should acknowledge the platform transport
// (true) or let it redeliver (false), and the enqueue error if any.
//
// Ordering rationale: enqueue-before-ack guarantees no lost events on
// crash; signal-after-ack (here, signal-after-successful-enqueue) means
// workers never observe a wakeup for a row that is not yet visible.
func Admit(ctx context.Context, store Enqueuer, tc *trigger.Chan, kind string, payload json.RawMessage) (ack bool, err error) {
	if err := store.Enqueue(ctx, kind, payload); err != nil {
		return false, err
	}

	tc.Signal()

	return true, nil
}

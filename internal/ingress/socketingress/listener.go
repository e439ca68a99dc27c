// Package socketingress is the direct Ingress Adapter: a callback
// registered with the chat platform's real-time transport via
// chatplatform.EventSource.
package socketingress

import (
	"context"
	"log/slog"

	"github.com/mentionflow/harness/internal/chatplatform"
	"github.com/mentionflow/harness/internal/ingress"
	"github.com/mentionflow/harness/internal/ingress/admission"
	"github.com/mentionflow/harness/internal/trigger"
)

// Listener wires a chatplatform.EventSource into the Queue Store and
// Trigger Channel. Admission is limited per mention kind: the mention's Kind
// is the source ID passed to the limiter, since Mention carries no source
// identifier.
type Listener struct {
	source  chatplatform.EventSource
	store   ingress.Enqueuer
	trigger *trigger.Chan
	limiter admission.Limiter
	logger  *slog.Logger
}

// New returns a socket-backed Ingress Adapter.
func New(source chatplatform.EventSource, store ingress.Enqueuer, tc *trigger.Chan, limiter admission.Limiter, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}

	return &Listener{source: source, store: store, trigger: tc, limiter: limiter, logger: logger}
}

// Run implements ingress.Adapter.
func (l *Listener) Run(ctx context.Context) error {
	return l.source.Listen(ctx, func(m chatplatform.Mention) bool {
		return l.onMention(ctx, m)
	})
}

func (l *Listener) onMention(ctx context.Context, m chatplatform.Mention) bool {
	if l.limiter != nil && !l.limiter.Allow(m.Kind) {
		l.logger.Warn("mention rejected by admission limiter", slog.String("kind", m.Kind))

		return false
	}

	ack, err := ingress.Admit(ctx, l.store, l.trigger, m.Kind, m.Payload)
	if err != nil {
		l.logger.Error("enqueue failed, declining acknowledgement for redelivery",
			slog.String("kind", m.Kind), slog.Any("error", err))

		return false
	}

	return ack
}

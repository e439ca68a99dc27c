package socketingress_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mentionflow/harness/internal/chatplatform"
	"github.com/mentionflow/harness/internal/ingress/socketingress"
	"github.com/mentionflow/harness/internal/trigger"
)

type fakeSource struct {
	mentions []chatplatform.Mention
}

func (f *fakeSource) Listen(_ context.Context, onMention func(chatplatform.Mention) bool) error {
	for _, m := range f.mentions {
		onMention(m)
	}

	return nil
}

type fakeStore struct {
	enqueued []string
	failOn   string
}

func (f *fakeStore) Enqueue(_ context.Context, kind string, _ json.RawMessage) error {
	if kind == f.failOn {
		return errors.New("store unavailable")
	}

	f.enqueued = append(f.enqueued, kind)

	return nil
}

func TestListener_EnqueuesThenSignals(t *testing.T) {
	source := &fakeSource{mentions: []chatplatform.Mention{
		{Kind: "mention", Payload: json.RawMessage(`{}`)},
	}}
	store := &fakeStore{}
	tc := trigger.New(1)

	l := socketingress.New(source, store, tc, nil, nil)

	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.enqueued) != 1 {
		t.Fatalf("enqueued %d events, want 1", len(store.enqueued))
	}

	if wake := tc.Wait(context.Background(), 50*time.Millisecond); wake != trigger.Triggered {
		t.Fatalf("expected a trigger signal after successful enqueue")
	}
}

func TestListener_EnqueueFailureDoesNotSignal(t *testing.T) {
	source := &fakeSource{mentions: []chatplatform.Mention{
		{Kind: "broken", Payload: json.RawMessage(`{}`)},
	}}
	store := &fakeStore{failOn: "broken"}
	tc := trigger.New(1)

	l := socketingress.New(source, store, tc, nil, nil)

	_ = l.Run(context.Background())

	if len(store.enqueued) != 0 {
		t.Fatalf("expected no successful enqueues")
	}

	if wake := tc.Wait(context.Background(), 50*time.Millisecond); wake != trigger.TimedOut {
		t.Fatalf("expected no trigger signal when enqueue fails")
	}
}

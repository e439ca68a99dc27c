package kafkaingress

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/mentionflow/harness/internal/trigger"
)

type fakeStore struct {
	enqueued int
	err      error
}

func (f *fakeStore) Enqueue(_ context.Context, _ string, _ json.RawMessage) error {
	if f.err != nil {
		return f.err
	}

	f.enqueued++

	return nil
}

func TestConsumer_Admit_ValidMessage(t *testing.T) {
	store := &fakeStore{}
	c := &Consumer{store: store, trigger: trigger.New(1), logger: nil}
	c.logger = newTestLogger()

	body, _ := json.Marshal(message{Kind: "mention", Payload: json.RawMessage(`{}`)})

	if !c.admit(context.Background(), kafka.Message{Value: body}) {
		t.Fatalf("expected admit to return true on successful enqueue")
	}

	if store.enqueued != 1 {
		t.Fatalf("enqueued = %d, want 1", store.enqueued)
	}
}

func TestConsumer_Admit_MalformedMessageIsCommittedAnyway(t *testing.T) {
	store := &fakeStore{}
	c := &Consumer{store: store, trigger: trigger.New(1), logger: newTestLogger()}

	if !c.admit(context.Background(), kafka.Message{Value: []byte("not json")}) {
		t.Fatalf("malformed messages should still be committed to avoid poison-looping the partition")
	}

	if store.enqueued != 0 {
		t.Fatalf("malformed messages must never reach the store")
	}
}

func TestConsumer_Admit_EnqueueFailureDeclinesCommit(t *testing.T) {
	store := &fakeStore{err: errors.New("store unavailable")}
	c := &Consumer{store: store, trigger: trigger.New(1), logger: newTestLogger()}

	body, _ := json.Marshal(message{Kind: "mention", Payload: json.RawMessage(`{}`)})

	if c.admit(context.Background(), kafka.Message{Value: body}) {
		t.Fatalf("expected admit to return false when enqueue fails, so the message is redelivered")
	}
}

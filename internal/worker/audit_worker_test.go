package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/w97xqz5xm9-sketch/debt-guard/internal/amqp"
	"github.com/w97xqz5xm9-sketch/debt-guard/internal/log"
	"github.com/w97xqz5xm9-sketch/debt-guard/internal/storage"
)

type fakeSink struct {
	events []storage.AuditEvent
	err    error
}

func (f *fakeSink) InsertAuditEvent(_ context.Context, ev storage.AuditEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}

func TestHandleEventPersists(t *testing.T) {
	sink := &fakeSink{}
	w := NewAuditWorker(sink, log.New(log.DefaultConfig()))

	msg := &amqp.TransactionEventMessage{
		EventType:     amqp.EventTransactionBlocked,
		TransactionID: "tx-1",
		AmountCents:   25000,
		Blocked:       true,
		Detail:        "3-Tage-Limit überschritten",
		Timestamp:     time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC),
	}
	if err := w.HandleEvent(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(sink.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(sink.events))
	}
	got := sink.events[0]
	if got.EventType != amqp.EventTransactionBlocked || got.AmountCents != 25000 || !got.Blocked {
		t.Fatalf("event mangled: %+v", got)
	}
}

func TestHandleEventRejectsUntyped(t *testing.T) {
	w := NewAuditWorker(&fakeSink{}, log.New(log.DefaultConfig()))
	if err := w.HandleEvent(context.Background(), &amqp.TransactionEventMessage{}); err == nil {
		t.Fatal("expected error for event without type")
	}
}

func TestHandleEventPropagatesSinkFailure(t *testing.T) {
	sink := &fakeSink{err: errors.New("disk full")}
	w := NewAuditWorker(sink, log.New(log.DefaultConfig()))
	msg := &amqp.TransactionEventMessage{EventType: amqp.EventTransactionRecorded, Timestamp: time.Now()}
	if err := w.HandleEvent(context.Background(), msg); err == nil {
		t.Fatal("expected sink failure to propagate for requeue")
	}
}

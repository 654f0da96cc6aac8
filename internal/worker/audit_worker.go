// Package worker persists audit events consumed from the message broker.
package worker

import (
	"context"
	"fmt"

	"github.com/w97xqz5xm9-sketch/debt-guard/internal/amqp"
	"github.com/w97xqz5xm9-sketch/debt-guard/internal/log"
	"github.com/w97xqz5xm9-sketch/debt-guard/internal/storage"
)

// AuditSink stores audit events. *storage.SQLiteRepository satisfies it.
type AuditSink interface {
	InsertAuditEvent(ctx context.Context, ev storage.AuditEvent) error
}

// AuditWorker writes every consumed transaction event into the audit table.
type AuditWorker struct {
	sink   AuditSink
	logger *log.Logger
}

func NewAuditWorker(sink AuditSink, logger *log.Logger) *AuditWorker {
	return &AuditWorker{sink: sink, logger: logger.WithComponent(log.ComponentWorker)}
}

// HandleEvent persists a single event. A returned error requeues the message.
func (w *AuditWorker) HandleEvent(ctx context.Context, msg *amqp.TransactionEventMessage) error {
	if msg.EventType == "" {
		return fmt.Errorf("event without type")
	}

	ev := storage.AuditEvent{
		EventType:     msg.EventType,
		TransactionID: msg.TransactionID,
		AmountCents:   msg.AmountCents,
		Blocked:       msg.Blocked,
		Detail:        msg.Detail,
		OccurredAt:    msg.Timestamp,
	}
	if err := w.sink.InsertAuditEvent(ctx, ev); err != nil {
		return fmt.Errorf("persist audit event: %w", err)
	}

	w.logger.InfoContext(ctx, "audit event stored",
		"event_type", msg.EventType,
		log.FieldTxID, msg.TransactionID,
		log.FieldBlocked, msg.Blocked)
	return nil
}

// Run consumes events until ctx is cancelled.
func (w *AuditWorker) Run(ctx context.Context, client *amqp.Client) error {
	return client.ConsumeTransactionEvents(ctx, func(msg *amqp.TransactionEventMessage) error {
		return w.HandleEvent(ctx, msg)
	})
}

package amqp

import (
	"testing"
)

func TestTransactionEventMessageRoundTrip(t *testing.T) {
	msg := NewTransactionEventMessage(EventTransactionBlocked, "tx-42", 9900, true, "3-Tage-Limit überschritten")

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := TransactionEventMessageFromJSON(body)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.EventType != EventTransactionBlocked || got.TransactionID != "tx-42" {
		t.Fatalf("unexpected message: %+v", got)
	}
	if got.AmountCents != 9900 || !got.Blocked {
		t.Fatalf("payload lost: %+v", got)
	}
}

func TestTransactionEventMessageFromJSONInvalid(t *testing.T) {
	if _, err := TransactionEventMessageFromJSON([]byte("{not json")); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

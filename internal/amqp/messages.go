package amqp

import (
	"encoding/json"
	"time"
)

// Event types carried over the audit exchange.
const (
	EventTransactionRecorded = "transaction_recorded"
	EventTransactionBlocked  = "transaction_blocked"
	EventUnlockUsed          = "unlock_used"
	EventSetupChanged        = "setup_changed"
)

// TransactionEventMessage is the audit event published for every gating
// decision and state change. The worker persists it; the message carries
// everything needed so the worker never reads back through the API.
type TransactionEventMessage struct {
	EventType     string    `json:"eventType"`
	TransactionID string    `json:"transactionId,omitempty"`
	AmountCents   int64     `json:"amountCents,omitempty"`
	Blocked       bool      `json:"blocked,omitempty"`
	Detail        string    `json:"detail,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionEventMessage(eventType, transactionID string, amountCents int64, blocked bool, detail string) *TransactionEventMessage {
	return &TransactionEventMessage{
		EventType:     eventType,
		TransactionID: transactionID,
		AmountCents:   amountCents,
		Blocked:       blocked,
		Detail:        detail,
		Timestamp:     time.Now(),
	}
}

func (m *TransactionEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionEventMessageFromJSON(data []byte) (*TransactionEventMessage, error) {
	var msg TransactionEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

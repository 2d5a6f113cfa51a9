package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// InvoiceSavedMessage announces that an invoice was archived locally.
// It carries only the identity; consumers fetch the full record from storage.
type InvoiceSavedMessage struct {
	ID        int64     `json:"id"`
	Number    string    `json:"number"`
	Timestamp time.Time `json:"timestamp"`
}

func NewInvoiceSavedMessage(id int64, number string) *InvoiceSavedMessage {
	return &InvoiceSavedMessage{
		ID:        id,
		Number:    number,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *InvoiceSavedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// InvoiceSavedMessageFromJSON decodes a message and rejects ones without an id.
func InvoiceSavedMessageFromJSON(data []byte) (*InvoiceSavedMessage, error) {
	var msg InvoiceSavedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID <= 0 {
		return nil, fmt.Errorf("invoice saved message: invalid id %d", msg.ID)
	}
	return &msg, nil
}

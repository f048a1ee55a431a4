package stream

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/ewallet/transfer-saga/internal/model"
)

// Event is the wire shape of a ledger change event on the Kafka topic.
// Kind and Key come from the change feed row; NewImage carries the record
// attributes as written.
type Event struct {
	Kind     string          `json:"kind"`
	Key      string          `json:"key"`
	NewImage json.RawMessage `json:"new_image"`
}

// RecordImage is the subset of TransactionRecord attributes the saga needs.
type RecordImage struct {
	TransactionID   string          `json:"transaction_id"`
	SenderOwnerID   string          `json:"sender_owner_id"`
	ReceiverOwnerID string          `json:"receiver_owner_id"`
	Amount          decimal.Decimal `json:"amount"`
	Status          string          `json:"status"`
}

// Decode unmarshals a raw Kafka message value into an Event.
func Decode(value []byte) (Event, error) {
	var ev Event
	err := json.Unmarshal(value, &ev)
	return ev, err
}

// FromChangeRow converts a stored change feed row into the wire shape.
func FromChangeRow(row model.ChangeEvent) Event {
	return Event{
		Kind:     row.Kind,
		Key:      row.Key,
		NewImage: json.RawMessage(row.NewImage),
	}
}

// Encode renders the event for publishing.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Record parses the new-image into the projection used downstream.
func (e Event) Record() (RecordImage, error) {
	var img RecordImage
	err := json.Unmarshal(e.NewImage, &img)
	return img, err
}

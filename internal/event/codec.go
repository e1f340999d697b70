package event

import (
	"encoding/json"
	"fmt"
)

// Record is the wire form of a domain event: its type name plus the JSON
// encoding of the payload.
type Record struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Encode converts an event to its Record.
func Encode(e Event) (Record, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return Record{}, fmt.Errorf("encode %s: %w", e.EventType(), err)
	}
	return Record{Type: e.EventType().String(), Data: data}, nil
}

// MarshalEvents encodes an ordered event list as a JSON array of records.
func MarshalEvents(events []Event) ([]byte, error) {
	records := make([]Record, 0, len(events))
	for _, e := range events {
		r, err := Encode(e)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return json.Marshal(records)
}

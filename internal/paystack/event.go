package paystack

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Event types delivered by the provider. Only charge.succeeded drives the
// wallet-crediting pipeline; everything else is acknowledged and dropped.
const (
	EventChargeSucceeded = "charge.succeeded"
)

var ErrMissingFields = errors.New("event missing required fields")

// TxnID is the provider-assigned transaction identifier. Paystack sends it
// as a JSON number but the rest of the system treats it as an opaque string,
// so both encodings are accepted.
type TxnID string

func (t *TxnID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*t = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = TxnID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*t = TxnID(n.String())
	return nil
}

type EventData struct {
	ID        TxnID  `json:"id"`
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"` // in kobo
	Currency  string `json:"currency,omitempty"`
	Channel   string `json:"channel,omitempty"`
	PaidAt    string `json:"paid_at,omitempty"`
}

type Event struct {
	Event string    `json:"event"`
	Data  EventData `json:"data"`
}

// TransactionID returns the string form of the provider transaction id,
// used downstream as the idempotency key.
func (e *Event) TransactionID() string {
	return string(e.Data.ID)
}

// ParseEvent decodes a signature-verified webhook body. Validation of the
// money-relevant fields only applies to charge.succeeded: unknown event
// types are returned as-is so the caller can acknowledge and ignore them.
func ParseEvent(body []byte) (*Event, error) {
	var evt Event
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, err
	}

	if evt.Event == "" {
		return nil, ErrMissingFields
	}

	if evt.Event == EventChargeSucceeded {
		if evt.Data.Reference == "" || evt.TransactionID() == "" || evt.Data.Amount <= 0 {
			return nil, ErrMissingFields
		}
	}

	return &evt, nil
}

package payment

import (
	"encoding/json"
	"fmt"
)

// EventCheckoutCompleted is the only event type that mutates the ledger.
// Every other type is acknowledged without further work so the provider
// does not redeliver it.
const EventCheckoutCompleted = "checkout.session.completed"

// Event is the provider's webhook envelope, decoded only as deeply as the
// service needs.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			CustomerDetails struct {
				Email string `json:"email"`
			} `json:"customer_details"`
		} `json:"object"`
	} `json:"data"`
}

// CustomerEmail returns the customer email from the event payload, or ""
func (e *Event) CustomerEmail() string {
	return e.Data.Object.CustomerDetails.Email
}

// ParseEvent decodes a verified webhook body into an Event
func ParseEvent(body []byte) (*Event, error) {
	var evt Event
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if evt.ID == "" || evt.Type == "" {
		return nil, fmt.Errorf("%w: missing event id or type", ErrMalformedEvent)
	}
	return &evt, nil
}

package payment

import "errors"

// Processing failures, mapped to HTTP statuses at the handler boundary.
// Authentication and malformed-payload failures are the client's (the
// provider's) fault and map to 400; the rest map to 500 so the provider's
// redelivery becomes the retry mechanism.
var (
	ErrAuthentication  = errors.New("webhook signature verification failed")
	ErrMalformedEvent  = errors.New("malformed event payload")
	ErrMissingIdentity = errors.New("customer email missing from event")
	ErrAccountNotFound = errors.New("no account found for customer email")
	ErrLedgerWrite     = errors.New("ledger write failed")
)

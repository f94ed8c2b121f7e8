package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader carries the provider's signature for an event delivery.
const SignatureHeader = "Stripe-Signature"

// Verifier authenticates webhook bodies against the provider's signing
// scheme: an HMAC-SHA256 over "<timestamp>.<body>" carried in a header of
// the form "t=<unix>,v1=<hex>". The embedded timestamp must fall within the
// tolerance window, which bounds replay of captured deliveries.
type Verifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewVerifier creates a verifier for the given shared secret
func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	return &Verifier{
		secret:    []byte(secret),
		tolerance: tolerance,
		now:       time.Now,
	}
}

// Verify checks the signature header against the raw request body. Any
// failure is reported as ErrAuthentication; the event must not be processed.
func (v *Verifier) Verify(body []byte, header string) error {
	if len(v.secret) == 0 {
		return fmt.Errorf("%w: signing secret not configured", ErrAuthentication)
	}
	if header == "" {
		return fmt.Errorf("%w: missing signature header", ErrAuthentication)
	}

	timestamp, signatures, err := parseSignatureHeader(header)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuthentication, err)
	}

	age := v.now().Sub(time.Unix(timestamp, 0))
	if age > v.tolerance || age < -v.tolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrAuthentication)
	}

	expected := computeSignature(v.secret, timestamp, body)
	for _, sig := range signatures {
		decoded, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			return nil
		}
	}

	return fmt.Errorf("%w: no matching signature", ErrAuthentication)
}

// Sign produces a header value the Verifier accepts for body at the given
// time. Used by tests and local tooling that plays the provider's role.
func (v *Verifier) Sign(body []byte, at time.Time) string {
	sig := computeSignature(v.secret, at.Unix(), body)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(sig))
}

func parseSignatureHeader(header string) (int64, []string, error) {
	var timestamp int64 = -1
	var signatures []string

	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			return 0, nil, fmt.Errorf("malformed signature header")
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("malformed signature timestamp")
			}
			timestamp = ts
		case "v1":
			signatures = append(signatures, value)
		}
	}

	if timestamp < 0 || len(signatures) == 0 {
		return 0, nil, fmt.Errorf("incomplete signature header")
	}
	return timestamp, signatures, nil
}

func computeSignature(secret []byte, timestamp int64, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	return mac.Sum(nil)
}

package payment

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVerify(t *testing.T) {
	secret := "whsec_test_secret"
	body := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)

	t.Run("accepts a freshly signed body", func(t *testing.T) {
		v := NewVerifier(secret, 5*time.Minute)
		header := v.Sign(body, time.Now())

		assert.NoError(t, v.Verify(body, header))
	})

	t.Run("accepts multiple v1 entries when one matches", func(t *testing.T) {
		v := NewVerifier(secret, 5*time.Minute)
		header := v.Sign(body, time.Now()) + ",v1=deadbeef"

		assert.NoError(t, v.Verify(body, header))
	})

	t.Run("rejects a tampered body", func(t *testing.T) {
		v := NewVerifier(secret, 5*time.Minute)
		header := v.Sign(body, time.Now())

		err := v.Verify([]byte(`{"id":"evt_2"}`), header)
		assert.True(t, errors.Is(err, ErrAuthentication))
	})

	t.Run("rejects a signature from another secret", func(t *testing.T) {
		other := NewVerifier("whsec_other", 5*time.Minute)
		header := other.Sign(body, time.Now())

		v := NewVerifier(secret, 5*time.Minute)
		err := v.Verify(body, header)
		assert.True(t, errors.Is(err, ErrAuthentication))
	})

	t.Run("rejects a missing header", func(t *testing.T) {
		v := NewVerifier(secret, 5*time.Minute)

		err := v.Verify(body, "")
		assert.True(t, errors.Is(err, ErrAuthentication))
	})

	t.Run("rejects when no secret is configured", func(t *testing.T) {
		v := NewVerifier("", 5*time.Minute)
		header := NewVerifier(secret, 5*time.Minute).Sign(body, time.Now())

		err := v.Verify(body, header)
		assert.True(t, errors.Is(err, ErrAuthentication))
	})

	t.Run("rejects a timestamp outside the tolerance window", func(t *testing.T) {
		v := NewVerifier(secret, 5*time.Minute)
		header := v.Sign(body, time.Now().Add(-10*time.Minute))

		err := v.Verify(body, header)
		assert.True(t, errors.Is(err, ErrAuthentication))
	})

	t.Run("accepts a timestamp just inside the tolerance window", func(t *testing.T) {
		v := NewVerifier(secret, 5*time.Minute)
		header := v.Sign(body, time.Now().Add(-4*time.Minute))

		assert.NoError(t, v.Verify(body, header))
	})

	t.Run("rejects malformed headers", func(t *testing.T) {
		v := NewVerifier(secret, 5*time.Minute)

		for _, header := range []string{
			"not-a-signature",
			"t=abc,v1=00",
			"t=1700000000",
			"v1=00",
		} {
			err := v.Verify(body, header)
			assert.True(t, errors.Is(err, ErrAuthentication), "header %q", header)
		}
	})
}

package stripepay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test_secret"

func sign(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts.Unix(), payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

const succeededPayload = `{
  "id": "evt_1",
  "object": "event",
  "api_version": "2020-08-27",
  "type": "payment_intent.succeeded",
  "data": {
    "object": {
      "id": "pi_123",
      "object": "payment_intent",
      "amount": 310000,
      "currency": "egp",
      "status": "succeeded",
      "payment_method": "pm_abc",
      "metadata": {"productId": "42", "buyerId": "7"}
    }
  }
}`

func TestParseWebhookSucceeded(t *testing.T) {
	payload := []byte(succeededPayload)
	ev, err := parseWebhook(payload, sign(payload, testSecret, time.Now()), testSecret)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, "payment_intent.succeeded", ev.Type)
	assert.Equal(t, "pi_123", ev.Intent.ID)
	assert.Equal(t, "pm_abc", ev.Intent.PaymentMethodID)
	assert.Equal(t, int64(310000), ev.Intent.Amount)
	assert.Equal(t, "42", ev.Intent.Metadata["productId"])
}

func TestParseWebhookRejectsBadSignature(t *testing.T) {
	payload := []byte(succeededPayload)
	_, err := parseWebhook(payload, sign(payload, "whsec_other", time.Now()), testSecret)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = parseWebhook(payload, "garbage", testSecret)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestParseWebhookRejectsStaleTimestamp(t *testing.T) {
	payload := []byte(succeededPayload)
	_, err := parseWebhook(payload, sign(payload, testSecret, time.Now().Add(-time.Hour)), testSecret)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestParseWebhookWithoutSecret(t *testing.T) {
	_, err := parseWebhook([]byte(succeededPayload), "t=1,v1=00", "")
	assert.ErrorIs(t, err, ErrWebhookNotConfigured)
}

func TestDecodeIntentExpandedPaymentMethod(t *testing.T) {
	in, err := decodeIntent(map[string]interface{}{
		"id":             "pi_9",
		"amount":         float64(500),
		"payment_method": map[string]interface{}{"id": "pm_9", "object": "payment_method"},
	})
	require.NoError(t, err)
	assert.Equal(t, "pm_9", in.PaymentMethodID)
	assert.Equal(t, int64(500), in.Amount)

	in, err = decodeIntent(map[string]interface{}{"id": "pi_10", "payment_method": nil})
	require.NoError(t, err)
	assert.Empty(t, in.PaymentMethodID)
}

func TestNewClientWithoutKey(t *testing.T) {
	assert.Nil(t, NewClient("", "whsec"))
	c := NewClient("sk_test_123", "")
	require.NotNil(t, c)
	assert.False(t, c.WebhookConfigured())
}

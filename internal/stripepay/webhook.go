package stripepay

import (
	"strconv"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/stripe/stripe-go/v75/webhook"
)

// ParseWebhook verifies the Stripe-Signature header against the signing
// secret and decodes the payment intent carried by the event.
func (c *Client) ParseWebhook(payload []byte, signature string) (*Event, error) {
	return parseWebhook(payload, signature, c.webhookSecret)
}

func parseWebhook(payload []byte, signature, secret string) (*Event, error) {
	if secret == "" {
		return nil, ErrWebhookNotConfigured
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, errors.Wrap(ErrInvalidSignature, err.Error())
	}
	ev := &Event{ID: event.ID, Type: string(event.Type)}
	if event.Data != nil && event.Data.Object != nil {
		intent, err := decodeIntent(event.Data.Object)
		if err != nil {
			return nil, errors.Wrap(err, "decode event object")
		}
		ev.Intent = *intent
	}
	return ev, nil
}

// webhook objects arrive unexpanded, payment_method is an id string
type rawIntent struct {
	ID            string            `mapstructure:"id"`
	Amount        int64             `mapstructure:"amount"`
	Currency      string            `mapstructure:"currency"`
	Status        string            `mapstructure:"status"`
	PaymentMethod interface{}       `mapstructure:"payment_method"`
	Metadata      map[string]string `mapstructure:"metadata"`
}

func decodeIntent(object map[string]interface{}) (*Intent, error) {
	var raw rawIntent
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &raw,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(object); err != nil {
		return nil, err
	}
	in := &Intent{
		ID:       raw.ID,
		Amount:   raw.Amount,
		Currency: raw.Currency,
		Status:   raw.Status,
		Metadata: raw.Metadata,
	}
	switch pm := raw.PaymentMethod.(type) {
	case string:
		in.PaymentMethodID = pm
	case map[string]interface{}:
		if id, ok := pm["id"].(string); ok {
			in.PaymentMethodID = id
		}
	}
	return in, nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

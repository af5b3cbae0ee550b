package currency

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var ErrRateUnavailable = errors.New("conversion rate not available")

// RateSource resolves the rate for one currency pair
type RateSource interface {
	Rate(from, to string) (float64, bool)
}

// SettingsReader is the slice of the settings manager the converter needs
type SettingsReader interface {
	GetFloat64(category, key string) float64
}

// SettingsRates reads rates from runtime settings and falls back to DefaultRates
type SettingsRates struct {
	Settings SettingsReader
}

func (s SettingsRates) Rate(from, to string) (float64, bool) {
	if s.Settings != nil {
		if v := s.Settings.GetFloat64(SettingsCategory, RateKey(from, to)); v > 0 {
			return v, true
		}
	}
	v, ok := DefaultRates[from][to]
	return v, ok && v > 0
}

// Converter converts amounts between supported currencies
type Converter struct {
	rates RateSource
}

func NewConverter(rates RateSource) *Converter {
	if rates == nil {
		rates = SettingsRates{}
	}
	return &Converter{rates: rates}
}

// Convert returns amount expressed in currency to, rounded to 2 decimals.
// Converting a currency into itself returns amount unchanged.
func (c *Converter) Convert(amount float64, from, to string) (float64, error) {
	if from == to {
		return amount, nil
	}
	rate, ok := c.rates.Rate(from, to)
	if !ok {
		return 0, errors.Wrap(ErrRateUnavailable, fmt.Sprintf("Conversion rate not available for %s to %s", from, to))
	}
	v, _ := decimal.NewFromFloat(amount).Mul(decimal.NewFromFloat(rate)).Round(2).Float64()
	return v, nil
}

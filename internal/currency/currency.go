// Package currency converts listing prices (kept in USD) into the buyer's
// currency and formats amounts for display.
package currency

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	EGP = "EGP"
	USD = "USD"
	EUR = "EUR"

	// Base is the currency product prices are stored in
	Base = USD
	// Default is what checkout charges when the buyer does not pick one
	Default = EGP

	// SettingsCategory holds the rate rows, named "<FROM>_<TO>"
	SettingsCategory = "currency"
)

// Currency describes a currency buyers can pay in
type Currency struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// PaymentMethod describes a way of paying offered at checkout
type PaymentMethod struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
	Available   bool   `json:"available"`
}

var supported = []Currency{
	{Code: EGP, Name: "Egyptian Pound", Symbol: "ج.م"},
	{Code: USD, Name: "US Dollar", Symbol: "$"},
	{Code: EUR, Name: "Euro", Symbol: "€"},
}

// DefaultRates seeds the settings table; settings win once present.
var DefaultRates = map[string]map[string]float64{
	USD: {EGP: 31.0, EUR: 0.85},
	EGP: {USD: 0.032, EUR: 0.027},
	EUR: {USD: 1.18, EGP: 36.5},
}

// Supported returns the currencies accepted at checkout
func Supported() []Currency {
	out := make([]Currency, len(supported))
	copy(out, supported)
	return out
}

// IsSupported reports whether code is a checkout currency
func IsSupported(code string) bool {
	for _, c := range supported {
		if c.Code == code {
			return true
		}
	}
	return false
}

// Normalize upper-cases and trims a currency code, empty becomes Default
func Normalize(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return Default
	}
	return code
}

// PaymentMethods lists card plus the local methods that are not live yet
func PaymentMethods() []PaymentMethod {
	return []PaymentMethod{
		{ID: "card", Name: "Credit/Debit Card", Icon: "💳", Description: "Visa, Mastercard, Meeza", Available: true},
		{ID: "bank_transfer", Name: "Bank Transfer", Icon: "🏦", Description: "Coming soon"},
		{ID: "wallet", Name: "Mobile Wallet", Icon: "📱", Description: "Coming soon"},
	}
}

// RateKey is the settings name for a conversion rate
func RateKey(from, to string) string {
	return from + "_" + to
}

// MinorUnits returns the amount in cents/piastres, rounded half away from zero
func MinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

var locales = map[string]language.Tag{
	EGP: language.MustParse("ar-EG"),
	USD: language.AmericanEnglish,
	EUR: language.English,
}

// Format renders amount as a localized currency string. Codes without a
// locale fall back to "<amount> <code>".
func Format(amount float64, code string) string {
	tag, ok := locales[code]
	if !ok {
		return fmt.Sprintf("%v %s", amount, code)
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return fmt.Sprintf("%v %s", amount, code)
	}
	p := message.NewPrinter(tag)
	return p.Sprint(currency.Symbol(unit.Amount(amount)))
}

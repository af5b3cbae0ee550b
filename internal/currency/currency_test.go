package currency

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSettings map[string]float64

func (f fakeSettings) GetFloat64(category, key string) float64 {
	return f[category+"."+key]
}

func TestConvertDefaultRates(t *testing.T) {
	c := NewConverter(nil)

	v, err := c.Convert(100, USD, EGP)
	require.NoError(t, err)
	assert.Equal(t, 3100.0, v)

	v, err = c.Convert(10, EGP, USD)
	require.NoError(t, err)
	assert.Equal(t, 0.32, v)

	v, err = c.Convert(19.99, USD, EUR)
	require.NoError(t, err)
	assert.Equal(t, 16.99, v)

	v, err = c.Convert(42.123, USD, USD)
	require.NoError(t, err)
	assert.Equal(t, 42.123, v, "same currency is returned untouched")
}

func TestConvertUnknownPair(t *testing.T) {
	c := NewConverter(nil)
	_, err := c.Convert(1, USD, "GBP")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateUnavailable)
	assert.Contains(t, err.Error(), "USD to GBP")
}

func TestSettingsRatesOverrideDefaults(t *testing.T) {
	c := NewConverter(SettingsRates{Settings: fakeSettings{"currency.USD_EGP": 48.5}})
	v, err := c.Convert(2, USD, EGP)
	require.NoError(t, err)
	assert.Equal(t, 97.0, v)

	// pairs missing from settings keep the defaults
	v, err = c.Convert(100, EUR, USD)
	require.NoError(t, err)
	assert.Equal(t, 118.0, v)
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(1235), MinorUnits(12.345))
	assert.Equal(t, int64(310000), MinorUnits(3100))
	assert.Equal(t, int64(1), MinorUnits(0.005))
}

func TestNormalizeAndSupport(t *testing.T) {
	assert.Equal(t, EGP, Normalize(""))
	assert.Equal(t, USD, Normalize(" usd "))
	assert.True(t, IsSupported(EUR))
	assert.False(t, IsSupported("GBP"))
	assert.Len(t, Supported(), 3)
	methods := PaymentMethods()
	require.Len(t, methods, 3)
	assert.True(t, methods[0].Available)
	assert.False(t, methods[1].Available)
}

func TestFormat(t *testing.T) {
	assert.Contains(t, Format(12.5, USD), "$")
	assert.NotEmpty(t, Format(12.5, EGP))
	assert.Equal(t, "12.5 GBP", Format(12.5, "GBP"))
}

func TestCrossRates(t *testing.T) {
	table, err := crossRates(remoteRates{Base: "usd", Rates: map[string]float64{"EGP": 50, "EUR": 0.5, "JPY": 150}})
	require.NoError(t, err)
	assert.InDelta(t, 50.0, table[USD][EGP], 1e-9)
	assert.InDelta(t, 100.0, table[EUR][EGP], 1e-9)
	assert.InDelta(t, 0.02, table[EGP][USD], 1e-9)
	_, hasJPY := table["JPY"]
	assert.False(t, hasJPY)

	_, err = crossRates(remoteRates{Base: "GBP", Rates: map[string]float64{"JPY": 1}})
	assert.Error(t, err)
}

type captureWriter struct {
	saved map[string]interface{}
}

func (w *captureWriter) SaveSettings(settings map[string]interface{}) error {
	w.saved = settings
	return nil
}

func TestRemoteSourceRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"base":"USD","rates":{"EGP":48,"EUR":0.8}}`))
	}))
	defer srv.Close()

	w := &captureWriter{}
	src := &RemoteSource{Url: srv.URL}
	require.NoError(t, src.Refresh(w))
	assert.InDelta(t, 48.0, w.saved["currency.USD_EGP"], 1e-9)
	assert.InDelta(t, 60.0, w.saved["currency.EUR_EGP"], 1e-9)
	assert.Len(t, w.saved, 6)
}

func TestRemoteSourceBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	src := &RemoteSource{Url: srv.URL}
	_, err := src.Fetch()
	assert.Error(t, err)
}

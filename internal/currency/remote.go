package currency

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/guonaihong/gout"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// RatesWriter persists refreshed rates, the settings manager implements it
type RatesWriter interface {
	SaveSettings(settings map[string]interface{}) error
}

// RemoteSource pulls USD based rates from an HTTP feed shaped like
// {"base":"USD","rates":{"EGP":48.9,"EUR":0.92}}
type RemoteSource struct {
	Url     string
	Timeout time.Duration
}

type remoteRates struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

// Fetch returns the full cross-rate table for the supported currencies
func (r *RemoteSource) Fetch() (map[string]map[string]float64, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	var body remoteRates
	var code int
	err := gout.GET(r.Url).
		SetTimeout(timeout).
		BindJSON(&body).
		Code(&code).
		Do()
	if err != nil {
		return nil, errors.Wrap(err, "fetch exchange rates")
	}
	if code != http.StatusOK {
		return nil, fmt.Errorf("fetch exchange rates: unexpected status %d", code)
	}
	return crossRates(body)
}

// crossRates derives every pair from a single-base quote
func crossRates(body remoteRates) (map[string]map[string]float64, error) {
	base := strings.ToUpper(body.Base)
	if base == "" {
		base = USD
	}
	perBase := map[string]float64{base: 1}
	for k, v := range body.Rates {
		if v > 0 {
			perBase[strings.ToUpper(k)] = v
		}
	}
	out := make(map[string]map[string]float64)
	for _, from := range supported {
		fromRate, ok := perBase[from.Code]
		if !ok {
			continue
		}
		for _, to := range supported {
			if from.Code == to.Code {
				continue
			}
			toRate, ok := perBase[to.Code]
			if !ok {
				continue
			}
			if out[from.Code] == nil {
				out[from.Code] = make(map[string]float64)
			}
			out[from.Code][to.Code] = toRate / fromRate
		}
	}
	if len(out) == 0 {
		return nil, errors.New("exchange rate feed has no supported currencies")
	}
	return out, nil
}

// Refresh fetches the feed and stores the rates as currency settings
func (r *RemoteSource) Refresh(w RatesWriter) error {
	table, err := r.Fetch()
	if err != nil {
		return err
	}
	settings := make(map[string]interface{})
	for from, row := range table {
		for to, rate := range row {
			settings[SettingsCategory+"."+RateKey(from, to)] = rate
		}
	}
	if err := w.SaveSettings(settings); err != nil {
		return errors.Wrap(err, "save exchange rates")
	}
	zap.L().Info("exchange rates refreshed", zap.Int("pairs", len(settings)), zap.String("url", r.Url))
	return nil
}

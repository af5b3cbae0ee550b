package app

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/souqlab/souq/config"
	"github.com/souqlab/souq/internal/domain"
	"github.com/souqlab/souq/internal/testutil"
)

func newTestApp(t *testing.T) *Application {
	t.Helper()
	cfg := *config.DefaultAppConfig
	a := NewApplication(&cfg)
	a.OverrideDB(testutil.NewDB(t))
	a.checkSettings()
	require.NoError(t, a.SetupServices(nil))
	t.Cleanup(a.notifier.Close)
	return a
}

func TestCheckSettingsSeedsOnce(t *testing.T) {
	a := newTestApp(t)
	var first int64
	require.NoError(t, a.DB().Model(&domain.SysConfig{}).Count(&first).Error)
	assert.Positive(t, first)

	a.checkSettings()
	var second int64
	require.NoError(t, a.DB().Model(&domain.SysConfig{}).Count(&second).Error)
	assert.Equal(t, first, second)

	assert.Equal(t, 31.0, a.ConfigMgr().GetFloat64("currency", "USD_EGP"))
	assert.EqualValues(t, 24, a.GetSettingsInt64Value("payment", "pending_ttl_hours"))
}

func TestSaveSettings(t *testing.T) {
	a := newTestApp(t)

	require.NoError(t, a.SaveSettings(map[string]interface{}{
		"currency.USD_EGP": 48.5,
		"feature.reviews":  "enabled",
		"feature.new_flag": true,
	}))
	assert.Equal(t, 48.5, a.ConfigMgr().GetFloat64("currency", "USD_EGP"))
	assert.True(t, a.GetSettingsBoolValue("feature", "reviews"))
	assert.True(t, a.GetSettingsBoolValue("feature", "new_flag"))
	assert.False(t, a.GetSettingsBoolValue("feature", "missing"))

	v, err := a.Converter().Convert(10, "USD", "EGP")
	require.NoError(t, err)
	assert.Equal(t, 485.0, v)

	assert.Error(t, a.SaveSettings(map[string]interface{}{"nocategory": 1}))
}

func TestSchedExpirePayments(t *testing.T) {
	a := newTestApp(t)
	old := time.Now().Add(-30 * time.Hour)
	require.NoError(t, a.DB().Create(&domain.Payment{
		ID: 1, Status: domain.PaymentPending, StripePaymentIntentId: "pi_old", CreatedAt: old,
	}).Error)
	require.NoError(t, a.DB().Create(&domain.Payment{
		ID: 2, Status: domain.PaymentPending, StripePaymentIntentId: "pi_new",
	}).Error)

	a.SchedExpirePayments()

	var stale, fresh domain.Payment
	require.NoError(t, a.DB().First(&stale, 1).Error)
	assert.Equal(t, domain.PaymentExpired, stale.Status)
	require.NoError(t, a.DB().First(&fresh, 2).Error)
	assert.Equal(t, domain.PaymentPending, fresh.Status)
}

func TestSchedRefreshRates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"base":"USD","rates":{"EGP":50,"EUR":0.5}}`))
	}))
	defer srv.Close()

	a := newTestApp(t)
	a.Config().Rates.Url = srv.URL
	a.SchedRefreshRates()

	assert.Equal(t, 50.0, a.ConfigMgr().GetFloat64("currency", "USD_EGP"))
	assert.Equal(t, 2.0, a.ConfigMgr().GetFloat64("currency", "EUR_USD"))
	assert.Equal(t, 100.0, a.ConfigMgr().GetFloat64("currency", "EUR_EGP"))
}

func TestSchedClearExpireData(t *testing.T) {
	a := newTestApp(t)
	require.NoError(t, a.DB().Create(&domain.SysOprLog{ID: 1, OptAction: "old", OptTime: time.Now().AddDate(-2, 0, 0)}).Error)
	require.NoError(t, a.DB().Create(&domain.SysOprLog{ID: 2, OptAction: "new", OptTime: time.Now()}).Error)

	a.SchedClearExpireData()

	var rows []domain.SysOprLog
	require.NoError(t, a.DB().Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "new", rows[0].OptAction)
}

func TestServicesWired(t *testing.T) {
	a := newTestApp(t)
	assert.Nil(t, a.Gateway())
	assert.False(t, a.Checkout().Configured())
	assert.NotNil(t, a.Accounts())
	assert.NotNil(t, a.Catalog())
	assert.NotNil(t, a.Orders())
	assert.NotNil(t, a.Bus())
}

package app

import (
	"context"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shirou/gopsutil/process"
	"go.uber.org/zap"

	"github.com/souqlab/souq/internal/currency"
	"github.com/souqlab/souq/internal/domain"
	"github.com/souqlab/souq/pkg/metrics"
)

const (
	defaultPendingTTLHours = 24
	defaultAuditDays       = 365
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func (a *Application) initJob() {
	loc, err := time.LoadLocation(a.appConfig.System.Location)
	if err != nil {
		loc = time.Local
	}
	a.sched = cron.New(cron.WithLocation(loc), cron.WithParser(cronParser))

	a.addJob("@every 30s", a.SchedProcessMonitorTask)
	a.addJob("@hourly", a.SchedExpirePayments)
	a.addJob("@daily", a.SchedClearExpireData)

	if a.appConfig.Rates.Url != "" {
		spec := a.appConfig.Rates.Interval
		if spec == "" {
			spec = "@hourly"
		}
		a.addJob(spec, a.SchedRefreshRates)
	}

	a.sched.Start()
}

func (a *Application) addJob(spec string, fn func()) {
	if _, err := a.sched.AddFunc(spec, fn); err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}
}

// SchedProcessMonitorTask app process monitor
func (a *Application) SchedProcessMonitorTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	p, err := process.NewProcess(int32(os.Getpid())) //nolint:gosec // G115: PID is always within int32 range
	if err != nil {
		return
	}

	cpuuse, err := p.CPUPercent()
	if err == nil {
		metrics.SetGauge("souq_cpuuse", int64(cpuuse*100)) // percentage * 100
	}

	meminfo, err := p.MemoryInfo()
	if err == nil {
		metrics.SetGauge("souq_memuse", int64(meminfo.RSS/1024/1024)) //nolint:gosec // G115: memory MB value fits in int64
	}
}

// SchedExpirePayments expires pending payments past payment.pending_ttl_hours
func (a *Application) SchedExpirePayments() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	hours := a.configManager.GetInt64("payment", "pending_ttl_hours")
	if hours <= 0 {
		hours = defaultPendingTTLHours
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := a.checkout.ExpireStalePayments(ctx, time.Duration(hours)*time.Hour); err != nil {
		zap.L().Error("expire payments", zap.Error(err))
	}
}

// SchedRefreshRates pulls exchange rates from rates.url into settings
func (a *Application) SchedRefreshRates() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	src := &currency.RemoteSource{Url: a.appConfig.Rates.Url}
	if err := src.Refresh(a.configManager); err != nil {
		zap.L().Error("refresh exchange rates", zap.String("url", src.Url), zap.Error(err))
		return
	}
	metrics.Inc("rates_refreshed")
}

// SchedClearExpireData purges old audit rows
func (a *Application) SchedClearExpireData() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	days := a.configManager.GetInt("system", "audit_retention_days")
	if days <= 0 {
		days = defaultAuditDays
	}
	a.gormDB.
		Where("opt_time < ? ", time.Now().
			Add(-time.Hour*24*time.Duration(days))).Delete(&domain.SysOprLog{})
}

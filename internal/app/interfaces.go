package app

import (
	evbus "github.com/asaskevich/EventBus"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/souqlab/souq/config"
	"github.com/souqlab/souq/internal/account"
	"github.com/souqlab/souq/internal/catalog"
	"github.com/souqlab/souq/internal/checkout"
	"github.com/souqlab/souq/internal/currency"
	"github.com/souqlab/souq/internal/orders"
	"github.com/souqlab/souq/internal/stripepay"
)

// DBProvider provides database access
type DBProvider interface {
	DB() *gorm.DB
}

// ConfigProvider provides application configuration
type ConfigProvider interface {
	Config() *config.AppConfig
}

// SettingsProvider provides system settings access
type SettingsProvider interface {
	GetSettingsStringValue(category, key string) string
	GetSettingsInt64Value(category, key string) int64
	GetSettingsBoolValue(category, key string) bool
	SaveSettings(settings map[string]interface{}) error
}

// SchedulerProvider provides task scheduling capability
type SchedulerProvider interface {
	Scheduler() *cron.Cron
}

// ConfigManagerProvider provides configuration manager access
type ConfigManagerProvider interface {
	ConfigMgr() *ConfigManager
}

// ServiceProvider exposes the marketplace services to the HTTP layer
type ServiceProvider interface {
	Bus() evbus.Bus
	Gateway() stripepay.Gateway
	Converter() *currency.Converter
	Accounts() *account.Service
	Catalog() *catalog.Service
	Checkout() *checkout.Service
	Orders() *orders.Service
}

// AppContext combines all provider interfaces for full application context
// Handlers should depend on specific providers or this combined interface
type AppContext interface {
	DBProvider
	ConfigProvider
	SettingsProvider
	SchedulerProvider
	ConfigManagerProvider
	ServiceProvider

	MigrateDB(track bool) error
	InitDb()
	DropAll()
}

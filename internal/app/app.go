package app

import (
	"os"
	"runtime/debug"
	"time"
	_ "time/tzdata"

	evbus "github.com/asaskevich/EventBus"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm"

	"github.com/souqlab/souq/config"
	"github.com/souqlab/souq/internal/account"
	"github.com/souqlab/souq/internal/catalog"
	"github.com/souqlab/souq/internal/checkout"
	"github.com/souqlab/souq/internal/currency"
	"github.com/souqlab/souq/internal/domain"
	"github.com/souqlab/souq/internal/notify"
	"github.com/souqlab/souq/internal/orders"
	"github.com/souqlab/souq/internal/stripepay"
)

type Application struct {
	appConfig     *config.AppConfig
	gormDB        *gorm.DB
	sched         *cron.Cron
	configManager *ConfigManager
	bus           evbus.Bus
	gateway       stripepay.Gateway
	converter     *currency.Converter
	accounts      *account.Service
	catalog       *catalog.Service
	checkout      *checkout.Service
	orders        *orders.Service
	notifier      *notify.Notifier
}

// Ensure Application implements all interfaces
var (
	_ DBProvider            = (*Application)(nil)
	_ ConfigProvider        = (*Application)(nil)
	_ SettingsProvider      = (*Application)(nil)
	_ SchedulerProvider     = (*Application)(nil)
	_ ConfigManagerProvider = (*Application)(nil)
	_ ServiceProvider       = (*Application)(nil)
	_ AppContext            = (*Application)(nil)
)

func NewApplication(appConfig *config.AppConfig) *Application {
	return &Application{appConfig: appConfig}
}

func (a *Application) Config() *config.AppConfig {
	return a.appConfig
}

func (a *Application) DB() *gorm.DB {
	return a.gormDB
}

// OverrideDB replaces the application's database handle (used in tests).
func (a *Application) OverrideDB(db *gorm.DB) {
	a.gormDB = db
}

// InitLogger replaces the global zap logger according to cfg
func InitLogger(cfg *config.AppConfig) {
	var zapConfig zap.Config
	if cfg.Logger.Mode == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.OutputPaths = []string{"stdout"}

	var logger *zap.Logger
	if cfg.Logger.FileEnable {
		lumberJackLogger := &lumberjack.Logger{
			Filename:   cfg.Logger.Filename,
			MaxSize:    64,
			MaxBackups: 7,
			MaxAge:     7,
			Compress:   false,
		}
		core := zapcore.NewTee(
			zapcore.NewCore(
				zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
				zapcore.AddSync(lumberJackLogger),
				zapConfig.Level,
			),
			zapcore.NewCore(
				zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
				zapcore.AddSync(os.Stdout),
				zapConfig.Level,
			),
		)
		logger = zap.New(core, zap.AddCaller())
	} else {
		var err error
		logger, err = zapConfig.Build(zap.AddCaller())
		if err != nil {
			panic(err)
		}
	}
	zap.ReplaceGlobals(logger)
}

// Init opens the database, seeds settings, wires services and starts jobs
func (a *Application) Init(cfg *config.AppConfig) error {
	if err := a.OpenDatabase(cfg); err != nil {
		return err
	}

	if err := a.MigrateDB(false); err != nil {
		zap.S().Errorf("database migration failed: %v", err)
	}
	a.checkSettings()

	var gateway stripepay.Gateway
	if c := stripepay.NewClient(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret); c != nil {
		gateway = c
	} else {
		zap.L().Warn("stripe secret key not set, checkout is disabled")
	}
	if err := a.SetupServices(gateway); err != nil {
		return err
	}

	a.initJob()
	return nil
}

// OpenDatabase applies the timezone and logger settings and connects to the
// database without starting any services.
func (a *Application) OpenDatabase(cfg *config.AppConfig) error {
	a.appConfig = cfg
	loc, err := time.LoadLocation(cfg.System.Location)
	if err != nil {
		zap.S().Error("timezone config error")
	} else {
		time.Local = loc
	}

	InitLogger(cfg)

	if cfg.Database.Type == "" {
		cfg.Database.Type = "postgres"
	}
	a.gormDB, err = getDatabase(cfg.Database, cfg.System.Workdir)
	if err != nil {
		return errors.Wrap(err, "open database")
	}
	zap.S().Infof("Database connection successful, type: %s", cfg.Database.Type)
	return nil
}

// SetupServices builds the settings cache, event bus and domain services on
// top of the current database handle. gateway may be nil.
func (a *Application) SetupServices(gateway stripepay.Gateway) error {
	if a.appConfig == nil {
		a.appConfig = config.DefaultAppConfig
	}
	a.configManager = NewConfigManager(a.gormDB)
	a.bus = evbus.New()
	a.gateway = gateway
	a.converter = currency.NewConverter(currency.SettingsRates{Settings: a.configManager})

	a.accounts = account.NewService(a.gormDB)
	a.catalog = catalog.NewService(a.gormDB)
	a.checkout = checkout.NewService(a.gormDB, gateway, a.converter, a.bus).WithCustomers(a.accounts)
	a.orders = orders.NewService(a.gormDB, a.bus)

	notifier, err := notify.NewNotifier(notify.NewMailer(a.appConfig.Mail), a.accounts, a.appConfig.Mail.PoolSize)
	if err != nil {
		return err
	}
	if err := notifier.Subscribe(a.bus); err != nil {
		notifier.Close()
		return errors.Wrap(err, "subscribe notifications")
	}
	a.notifier = notifier
	return nil
}

func (a *Application) MigrateDB(track bool) (err error) {
	defer func() {
		if err1 := recover(); err1 != nil {
			if os.Getenv("GO_DEGUB_TRACE") != "" {
				debug.PrintStack()
			}
			err2, ok := err1.(error)
			if ok {
				err = err2
				zap.S().Error(err2.Error())
			}
		}
	}()
	db := a.gormDB
	if track {
		db = db.Debug()
	}
	return db.Migrator().AutoMigrate(domain.Tables...)
}

func (a *Application) DropAll() {
	_ = a.gormDB.Migrator().DropTable(domain.Tables...)
}

func (a *Application) InitDb() {
	_ = a.gormDB.Migrator().DropTable(domain.Tables...)
	err := a.gormDB.Migrator().AutoMigrate(domain.Tables...)
	if err != nil {
		zap.S().Error(err)
	}
	a.checkSettings()
}

// ConfigMgr returns the configuration manager
func (a *Application) ConfigMgr() *ConfigManager {
	return a.configManager
}

// Scheduler returns the cron scheduler
func (a *Application) Scheduler() *cron.Cron {
	return a.sched
}

// GetSettingsStringValue retrieves a string configuration value
func (a *Application) GetSettingsStringValue(category, key string) string {
	return a.configManager.GetString(category, key)
}

// GetSettingsInt64Value retrieves an int64 configuration value
func (a *Application) GetSettingsInt64Value(category, key string) int64 {
	return a.configManager.GetInt64(category, key)
}

// GetSettingsBoolValue retrieves a boolean configuration value
func (a *Application) GetSettingsBoolValue(category, key string) bool {
	return a.configManager.GetBool(category, key)
}

// SaveSettings saves configuration settings
func (a *Application) SaveSettings(settings map[string]interface{}) error {
	return a.configManager.SaveSettings(settings)
}

func (a *Application) Bus() evbus.Bus { return a.bus }
func (a *Application) Converter() *currency.Converter { return a.converter }
func (a *Application) Accounts() *account.Service { return a.accounts }
func (a *Application) Catalog() *catalog.Service { return a.catalog }
func (a *Application) Checkout() *checkout.Service { return a.checkout }
func (a *Application) Orders() *orders.Service { return a.orders }

// Gateway returns the payment provider, nil when not configured
func (a *Application) Gateway() stripepay.Gateway {
	return a.gateway
}

// Release releases application resources
func (a *Application) Release() {
	if a.sched != nil {
		<-a.sched.Stop().Done()
	}
	if a.notifier != nil {
		a.notifier.Close()
	}
	if a.gormDB != nil {
		if sqlDB, err := a.gormDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	_ = zap.L().Sync()
}

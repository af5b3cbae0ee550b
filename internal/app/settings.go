package app

import (
	_ "embed"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/souqlab/souq/internal/domain"
)

//go:embed settings_schema.json
var configSchemasData []byte

// ConfigSchema describes one runtime setting and its default
type ConfigSchema struct {
	Key         string `json:"key"` // category.name
	Type        string `json:"type"`
	Default     string `json:"default"`
	Description string `json:"description"`
}

type ConfigSchemasJSON struct {
	Schemas []ConfigSchema `json:"schemas"`
}

// ConfigManager caches sys_config rows in memory. Reads never touch the
// database; SaveSettings writes through and refreshes the cache.
type ConfigManager struct {
	db    *gorm.DB
	mu    sync.RWMutex
	cache map[string]string
}

func NewConfigManager(db *gorm.DB) *ConfigManager {
	m := &ConfigManager{db: db, cache: make(map[string]string)}
	m.Reload()
	return m
}

func cacheKey(category, name string) string {
	return category + "." + name
}

// Reload replaces the cache with the current table contents
func (m *ConfigManager) Reload() {
	var rows []domain.SysConfig
	if err := m.db.Find(&rows).Error; err != nil {
		zap.L().Error("load settings", zap.Error(err))
		return
	}
	cache := make(map[string]string, len(rows))
	for _, r := range rows {
		cache[cacheKey(r.Type, r.Name)] = r.Value
	}
	m.mu.Lock()
	m.cache = cache
	m.mu.Unlock()
}

func (m *ConfigManager) GetString(category, name string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cache[cacheKey(category, name)]
}

func (m *ConfigManager) GetInt(category, name string) int {
	return cast.ToInt(m.GetString(category, name))
}

func (m *ConfigManager) GetInt64(category, name string) int64 {
	return cast.ToInt64(m.GetString(category, name))
}

func (m *ConfigManager) GetFloat64(category, name string) float64 {
	return cast.ToFloat64(m.GetString(category, name))
}

func (m *ConfigManager) GetBool(category, name string) bool {
	v := strings.ToLower(m.GetString(category, name))
	return v == "enabled" || cast.ToBool(v)
}

// SaveSettings upserts "category.name" keyed values
func (m *ConfigManager) SaveSettings(settings map[string]interface{}) error {
	err := m.db.Transaction(func(tx *gorm.DB) error {
		for key, value := range settings {
			parts := strings.SplitN(key, ".", 2)
			if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
				return errors.Errorf("invalid setting key %q", key)
			}
			sval, err := cast.ToStringE(value)
			if err != nil {
				return errors.Wrapf(err, "setting %s", key)
			}
			res := tx.Model(&domain.SysConfig{}).
				Where("type = ? AND name = ?", parts[0], parts[1]).
				Updates(map[string]interface{}{"value": sval, "updated_at": time.Now()})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				if err := tx.Create(&domain.SysConfig{
					Type:  parts[0],
					Name:  parts[1],
					Value: sval,
				}).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "save settings")
	}
	m.Reload()
	return nil
}

package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// BillingConfig carries the tariff applied by a billing run.
type BillingConfig struct {
	WaterRate       float64
	CommonAreaRate  float64
	CounterFallback bool
}

const (
	keyWaterRate       = "billing.waterRate"
	keyCommonAreaRate  = "billing.commonAreaRate"
	keyCounterFallback = "billing.counterFallback"
)

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		WaterRate:       10,
		CommonAreaRate:  5,
		CounterFallback: false,
	}
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

// NewBillingConfigHolder reads billing.yml from the standard locations and watches it for changes.
func NewBillingConfigHolder() (*BillingConfigHolder, error) {
	v := viper.New()
	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/housebill/config")
	v.AddConfigPath("/etc/housebill")
	v.AddConfigPath(".")
	return newBillingConfigHolder(v)
}

// NewBillingConfigHolderFromFile reads a single billing config file.
func NewBillingConfigHolderFromFile(path string) (*BillingConfigHolder, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return newBillingConfigHolder(v)
}

// NewStaticBillingConfigHolder returns a holder that never reloads.
func NewStaticBillingConfigHolder(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func newBillingConfigHolder(v *viper.Viper) (*BillingConfigHolder, error) {
	defaults := DefaultBillingConfig()
	v.SetDefault(keyWaterRate, defaults.WaterRate)
	v.SetDefault(keyCommonAreaRate, defaults.CommonAreaRate)
	v.SetDefault(keyCounterFallback, defaults.CounterFallback)

	v.SetEnvPrefix("HOUSEBILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	cfg, err := decodeBillingConfig(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticBillingConfigHolder(cfg)
	if !fileFound {
		return holder, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeBillingConfig(v)
		if err != nil {
			zap.L().Warn("billing.config.reload_rejected", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		zap.L().Info("billing.config.reloaded",
			zap.String("file", e.Name),
			zap.Float64("water_rate", updated.WaterRate),
			zap.Float64("common_area_rate", updated.CommonAreaRate),
		)
	})
	v.WatchConfig()

	return holder, nil
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

// decodeBillingConfig resolves every key on its own so that env overrides,
// the file and defaults merge per key (HOUSEBILL_BILLING_WATERRATE etc).
func decodeBillingConfig(v *viper.Viper) (BillingConfig, error) {
	cfg := BillingConfig{
		WaterRate:       v.GetFloat64(keyWaterRate),
		CommonAreaRate:  v.GetFloat64(keyCommonAreaRate),
		CounterFallback: v.GetBool(keyCounterFallback),
	}
	if err := validateBillingConfig(cfg); err != nil {
		return BillingConfig{}, err
	}
	return cfg, nil
}

func validateBillingConfig(cfg BillingConfig) error {
	if cfg.WaterRate < 0 {
		return errors.New("billing.waterRate cannot be negative")
	}
	if cfg.CommonAreaRate < 0 {
		return errors.New("billing.commonAreaRate cannot be negative")
	}
	return nil
}

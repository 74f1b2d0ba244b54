package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PricingPolicy controls how deficiencies are priced when a quote is
// generated from inspection findings. Strategy "midpoint" uses the
// midpoint of the estimated cost range (low bound when high is absent);
// "low" always uses the low bound. Deficiencies with no estimate fall
// back to the per-severity default.
type PricingPolicy struct {
	Strategy         string           `mapstructure:"strategy"`
	SeverityDefaults map[string]int64 `mapstructure:"severityDefaults"`
}

const (
	PricingStrategyMidpoint = "midpoint"
	PricingStrategyLow      = "low"
)

func DefaultPricingPolicy() PricingPolicy {
	return PricingPolicy{
		Strategy: PricingStrategyMidpoint,
		SeverityDefaults: map[string]int64{
			"minor":    15000,
			"major":    45000,
			"critical": 120000,
		},
	}
}

// PricingPolicyHolder hot-reloads the pricing policy from pricing.yml so
// operators can adjust defaults without a restart.
type PricingPolicyHolder struct {
	current atomic.Value // holds PricingPolicy
}

func NewPricingPolicyHolder() (*PricingPolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("pricing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/fieldops/config")
	v.AddConfigPath("/etc/fieldops")
	v.AddConfigPath(".")

	v.SetEnvPrefix("FIELDOPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultPricingPolicy()
		v.SetDefault("pricing.strategy", defaults.Strategy)
		v.SetDefault("pricing.severityDefaults", defaults.SeverityDefaults)
	}

	var policy PricingPolicy
	if err := v.UnmarshalKey("pricing", &policy); err != nil {
		return nil, err
	}
	if err := validatePricingPolicy(policy); err != nil {
		return nil, err
	}

	holder := &PricingPolicyHolder{}
	holder.current.Store(policy)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PricingPolicy
		if err := v.UnmarshalKey("pricing", &updated); err != nil {
			log.Printf("[pricing-config] reload failed: %v", err)
			return
		}
		if err := validatePricingPolicy(updated); err != nil {
			log.Printf("[pricing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[pricing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticPricingPolicyHolder wraps a fixed policy with no file watching.
func NewStaticPricingPolicyHolder(policy PricingPolicy) *PricingPolicyHolder {
	holder := &PricingPolicyHolder{}
	holder.current.Store(policy)
	return holder
}

func (h *PricingPolicyHolder) Get() PricingPolicy {
	return h.current.Load().(PricingPolicy)
}

func validatePricingPolicy(policy PricingPolicy) error {
	switch policy.Strategy {
	case PricingStrategyMidpoint, PricingStrategyLow:
	default:
		return errors.New("pricing.strategy must be midpoint or low")
	}
	for severity, amount := range policy.SeverityDefaults {
		if amount < 0 {
			return errors.New("pricing.severityDefaults." + severity + " cannot be negative")
		}
	}
	return nil
}

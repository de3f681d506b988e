package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PlanCatalog is the locally maintained mirror of the provider's product
// variants. The webhook core only reads the plans table; this catalog is
// how the table gets populated out-of-band.
type PlanCatalog struct {
	Plans []PlanEntry `mapstructure:"plans"`
}

type PlanEntry struct {
	ProductID          int64  `mapstructure:"productId"`
	ProductName        string `mapstructure:"productName"`
	VariantID          int64  `mapstructure:"variantId"`
	Name               string `mapstructure:"name"`
	Description        string `mapstructure:"description"`
	Price              int64  `mapstructure:"price"`
	IsUsageBased       bool   `mapstructure:"isUsageBased"`
	Interval           string `mapstructure:"interval"`
	IntervalCount      int    `mapstructure:"intervalCount"`
	TrialInterval      string `mapstructure:"trialInterval"`
	TrialIntervalCount int    `mapstructure:"trialIntervalCount"`
	Sort               int    `mapstructure:"sort"`
}

type PlanCatalogHolder struct {
	current atomic.Value // holds PlanCatalog
	onLoad  atomic.Value // holds func(PlanCatalog)
}

func NewPlanCatalogHolder() (*PlanCatalogHolder, error) {
	v := viper.New()

	v.SetConfigName("plans")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/lemonsync/config") // Volume-mounted config
	v.AddConfigPath("/etc/lemonsync")            // System config
	v.AddConfigPath(".")                         // Current directory (dev mode)

	v.SetEnvPrefix("LEMONSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &PlanCatalogHolder{}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// no plans.yml: start empty, table is seeded by other means
		holder.current.Store(PlanCatalog{})
		return holder, nil
	}

	var catalog PlanCatalog
	if err := v.Unmarshal(&catalog); err != nil {
		return nil, err
	}
	if err := validatePlanCatalog(catalog); err != nil {
		return nil, err
	}
	holder.current.Store(catalog)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PlanCatalog
		if err := v.Unmarshal(&updated); err != nil {
			log.Printf("[plan-catalog] reload failed: %v", err)
			return
		}
		if err := validatePlanCatalog(updated); err != nil {
			log.Printf("[plan-catalog] invalid catalog ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		if fn, ok := holder.onLoad.Load().(func(PlanCatalog)); ok && fn != nil {
			fn(updated)
		}
		log.Printf("[plan-catalog] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *PlanCatalogHolder) Get() PlanCatalog {
	catalog, _ := h.current.Load().(PlanCatalog)
	return catalog
}

// OnReload registers a callback invoked after each successful hot reload.
func (h *PlanCatalogHolder) OnReload(fn func(PlanCatalog)) {
	h.onLoad.Store(fn)
}

func validatePlanCatalog(catalog PlanCatalog) error {
	seen := make(map[int64]struct{}, len(catalog.Plans))
	for _, plan := range catalog.Plans {
		if plan.VariantID == 0 {
			return errors.New("plans entries require a variantId")
		}
		if strings.TrimSpace(plan.Name) == "" {
			return errors.New("plans entries require a name")
		}
		if _, dup := seen[plan.VariantID]; dup {
			return errors.New("duplicate variantId in plans catalog")
		}
		seen[plan.VariantID] = struct{}{}
	}
	return nil
}

package pricecache

import (
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/peralese/cloud-pricing-calculator/internal/catalog"
)

// RateHeuristic estimates hourly compute and database prices from a
// per-vCPU-equivalent base rate with variant uplifts. It is deliberately
// coarse: a heuristic price keeps a run moving when the pricing API is
// unreachable, and the entry's Source marks it as an estimate.
type RateHeuristic struct {
	// BaseHourly is the assumed hourly price of one "size unit" per
	// service. Size units scale with the SKU's size suffix.
	BaseHourly map[string]float64
	// Uplifts multiply the base by variant: windows compute, commercial
	// database engines.
	Uplifts map[string]float64
}

// DefaultHeuristic returns rates tuned to current-generation
// general-purpose on-demand pricing in us-east-1.
func DefaultHeuristic() *RateHeuristic {
	return &RateHeuristic{
		BaseHourly: map[string]float64{
			ServiceCompute:  0.05, // per vCPU-equivalent size unit
			ServiceDatabase: 0.09,
		},
		Uplifts: map[string]float64{
			"windows":       0.85,
			"rhel":          0.25,
			"suse":          0.20,
			"sqlserver-se":  2.0,
			"sqlserver-ee":  4.0,
			"oracle-se2":    1.5,
			"oracle-ee":     3.0,
			"multi-az":      1.0,
		},
	}
}

// sizeUnits maps instance size suffixes to relative capacity.
var sizeUnits = map[string]float64{
	"nano": 0.25, "micro": 0.5, "small": 1, "medium": 2,
	"large": 4, "xlarge": 8, "2xlarge": 16, "4xlarge": 32,
	"8xlarge": 64, "12xlarge": 96, "16xlarge": 128, "24xlarge": 192,
	"32xlarge": 256, "48xlarge": 384,
}

// skuUnits maps a SKU to relative capacity units: the size suffix for
// AWS shapes, the vCPU count scaled to the same scale for Azure VM
// names like "Standard_D4s_v5".
func skuUnits(sku string) (float64, bool) {
	if _, size, _, err := catalog.ParseSKU(strings.TrimPrefix(sku, "db.")); err == nil {
		units, ok := sizeUnits[size]
		return units, ok
	}
	s := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(sku)), "standard_")
	i := 0
	for i < len(s) && s[i] >= 'a' && s[i] <= 'z' {
		i++
	}
	j := i
	for j < len(s) && s[j] >= '0' && s[j] <= '9' {
		j++
	}
	if i == 0 || j == i {
		return 0, false
	}
	vcpu, err := strconv.Atoi(s[i:j])
	if err != nil || vcpu <= 0 {
		return 0, false
	}
	// An AWS size unit is half a vCPU ("large" = 2 vCPU = 4 units).
	return float64(vcpu) * 2, true
}

// Estimate implements Heuristic.
func (h *RateHeuristic) Estimate(key Key) (float64, string, bool) {
	base, ok := h.BaseHourly[key.Service]
	if !ok {
		return 0, "", false
	}
	units, ok := skuUnits(key.SKU)
	if !ok {
		return 0, "", false
	}
	price := base * units
	// Variants compose with "/", e.g. "sqlserver-se/multi-az"; each part's
	// uplift applies multiplicatively.
	for _, variant := range strings.Split(key.Variant, "/") {
		if uplift, ok := h.Uplifts[variant]; ok {
			price *= 1 + uplift
		}
	}
	return price, "USD/hour", true
}

// overrideFile is the YAML shape of an operator price override file:
// cache-key strings mapped to pinned hourly prices.
type overrideFile struct {
	Prices map[string]float64 `yaml:"prices"`
}

// LoadOverrides reads a price override file.
func LoadOverrides(path string) (map[string]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file overrideFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	return file.Prices, nil
}

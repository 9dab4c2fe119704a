package costs

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Rate defaults. Hourly compute and database prices come from the price
// cache; everything here is a flat $/GB-month or $/GB list rate.
const (
	defaultHoursPerMonth  = 730.0
	defaultGP3GBMonth     = 0.08
	defaultIO1GBMonth     = 0.125
	defaultObjectGBMonth  = 0.023
	defaultEgressGBPrice  = 0.09
	defaultDBStorageMonth = 0.115
)

// AzureSQLRates prices the Azure SQL vCore model. The hourly rate is per
// vCore; the AHUB discount removes the license share of the rate.
type AzureSQLRates struct {
	VCoreHourly    map[string]float64 `yaml:"vcore_hourly"`
	AHUBDiscount   float64            `yaml:"ahub_discount"`
	StorageGBMonth float64            `yaml:"storage_gb_month"`
	DefaultVCores  float64            `yaml:"default_vcores"`
	DefaultGB      float64            `yaml:"default_storage_gb"`
}

// Rates holds every list rate the aggregator applies. Resolution order
// is built-in defaults, then environment variables, then an optional
// YAML file; later layers win.
type Rates struct {
	HoursPerMonth    float64            `yaml:"hours_per_month"`
	BlockGBMonth     map[string]float64 `yaml:"block_gb_month"`
	ObjectGBMonth    float64            `yaml:"object_gb_month"`
	EgressGBPrice    float64            `yaml:"egress_gb_price"`
	NetworkTierGB    map[string]float64 `yaml:"network_tier_gb"`
	DBStorageGBMonth float64            `yaml:"db_storage_gb_month"`
	AzureSQL         AzureSQLRates      `yaml:"azure_sql"`
}

// DefaultRates returns the built-in list rates.
func DefaultRates() Rates {
	return Rates{
		HoursPerMonth: defaultHoursPerMonth,
		BlockGBMonth: map[string]float64{
			"gp3": defaultGP3GBMonth,
			"gp2": 0.10,
			"io1": defaultIO1GBMonth,
			"io2": defaultIO1GBMonth,
			"st1": 0.045,
		},
		ObjectGBMonth:    defaultObjectGBMonth,
		EgressGBPrice:    defaultEgressGBPrice,
		NetworkTierGB:    map[string]float64{"low": 50, "medium": 500, "high": 5000},
		DBStorageGBMonth: defaultDBStorageMonth,
		AzureSQL: AzureSQLRates{
			VCoreHourly: map[string]float64{
				"generalpurpose":   0.5218,
				"businesscritical": 1.4044,
				"hyperscale":       0.5218,
			},
			AHUBDiscount:   0.45,
			StorageGBMonth: defaultDBStorageMonth,
			DefaultVCores:  8,
			DefaultGB:      128,
		},
	}
}

// envFloat overlays a rate from the environment when set and parsable.
func envFloat(name string, target *float64) {
	raw, ok := os.LookupEnv(name)
	if !ok {
		return
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && f >= 0 {
		*target = f
	}
}

// FromEnv returns the defaults overlaid with environment overrides. The
// variable names match the rate they replace.
func FromEnv() Rates {
	r := DefaultRates()
	envFloat("HOURS_PER_MONTH", &r.HoursPerMonth)
	envFloat("S3_STD_GB_MONTH", &r.ObjectGBMonth)
	envFloat("DTO_GB_PRICE", &r.EgressGBPrice)
	envFloat("DB_STORAGE_GB_MONTH", &r.DBStorageGBMonth)

	gp3, io1 := r.BlockGBMonth["gp3"], r.BlockGBMonth["io1"]
	envFloat("EBS_GP3_GB_MONTH", &gp3)
	envFloat("EBS_IO1_GB_MONTH", &io1)
	r.BlockGBMonth["gp3"], r.BlockGBMonth["io1"], r.BlockGBMonth["io2"] = gp3, io1, io1

	low, med, high := r.NetworkTierGB["low"], r.NetworkTierGB["medium"], r.NetworkTierGB["high"]
	envFloat("NETWORK_EGRESS_GB_LOW", &low)
	envFloat("NETWORK_EGRESS_GB_MED", &med)
	envFloat("NETWORK_EGRESS_GB_HIGH", &high)
	r.NetworkTierGB["low"], r.NetworkTierGB["medium"], r.NetworkTierGB["high"] = low, med, high
	return r
}

// Load overlays a YAML rates file on top of base. Only keys present in
// the file change; zero-valued YAML fields are treated as absent.
func Load(path string, base Rates) (Rates, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("reading rates file: %w", err)
	}
	var file Rates
	if err := yaml.Unmarshal(data, &file); err != nil {
		return base, fmt.Errorf("parsing rates file %s: %w", path, err)
	}

	out := base
	if file.HoursPerMonth > 0 {
		out.HoursPerMonth = file.HoursPerMonth
	}
	if file.ObjectGBMonth > 0 {
		out.ObjectGBMonth = file.ObjectGBMonth
	}
	if file.EgressGBPrice > 0 {
		out.EgressGBPrice = file.EgressGBPrice
	}
	if file.DBStorageGBMonth > 0 {
		out.DBStorageGBMonth = file.DBStorageGBMonth
	}
	for k, v := range file.BlockGBMonth {
		out.BlockGBMonth[k] = v
	}
	for k, v := range file.NetworkTierGB {
		out.NetworkTierGB[k] = v
	}
	for k, v := range file.AzureSQL.VCoreHourly {
		out.AzureSQL.VCoreHourly[k] = v
	}
	if file.AzureSQL.AHUBDiscount > 0 {
		out.AzureSQL.AHUBDiscount = file.AzureSQL.AHUBDiscount
	}
	if file.AzureSQL.StorageGBMonth > 0 {
		out.AzureSQL.StorageGBMonth = file.AzureSQL.StorageGBMonth
	}
	if file.AzureSQL.DefaultVCores > 0 {
		out.AzureSQL.DefaultVCores = file.AzureSQL.DefaultVCores
	}
	if file.AzureSQL.DefaultGB > 0 {
		out.AzureSQL.DefaultGB = file.AzureSQL.DefaultGB
	}
	return out, nil
}

// BlockRate returns the $/GB-month rate for a volume type, defaulting to
// the gp3 rate for unknown types.
func (r Rates) BlockRate(volumeType string) float64 {
	if rate, ok := r.BlockGBMonth[volumeType]; ok {
		return rate
	}
	return r.BlockGBMonth["gp3"]
}

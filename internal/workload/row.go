// Package workload defines the typed workload descriptor row and its
// ingestion from untyped record sources (CSV, spreadsheets, APIs).
//
// Parsing happens exactly once, here. Downstream stages never re-parse:
// a missing or nullish value becomes a nil pointer, which is distinct
// from an explicit zero.
package workload

import (
	"math"
	"strconv"
	"strings"
)

// Provider tags which cloud a row targets.
type Provider string

const (
	ProviderAWS   Provider = "aws"
	ProviderAzure Provider = "azure"
)

// KnownProvider reports whether s names a supported cloud provider.
// Matching is case-insensitive; "az" is accepted as an Azure shorthand.
func KnownProvider(s string) (Provider, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "aws":
		return ProviderAWS, true
	case "azure", "az":
		return ProviderAzure, true
	default:
		return "", false
	}
}

// Workload profile values. An absent profile is inferred from the
// memory-per-vCPU ratio at recommendation time.
const (
	ProfileBalanced = "balanced"
	ProfileCompute  = "compute"
	ProfileMemory   = "memory"
)

// Purchase options accepted by the pricing gate.
const (
	PurchaseOnDemand = "ondemand"
	PurchaseSpot     = "spot"
	PurchaseReserved = "reserved"
)

// OperatingSystems lists the OS values accepted by the pricing gate.
var OperatingSystems = []string{"linux", "windows", "rhel", "suse"}

// PurchaseOptions lists the purchase options accepted by the pricing gate.
var PurchaseOptions = []string{PurchaseOnDemand, PurchaseSpot, PurchaseReserved}

// Profiles lists the valid workload profile values.
var Profiles = []string{ProfileBalanced, ProfileCompute, ProfileMemory}

// Architectures lists the valid CPU architecture values.
var Architectures = []string{"x86", "arm"}

// NetworkTiers lists the coarse egress tiers.
var NetworkTiers = []string{"low", "medium", "high"}

// Row is one requested server/application. Optional numeric fields are
// pointers: nil means the source supplied no usable value. The row is
// immutable once validation begins; derived artifacts (verdict,
// recommendation, cost breakdown) are carried alongside it, not on it.
type Row struct {
	ID       string
	Provider string // raw provider tag, lowercased ("aws", "azure")
	Region   string // raw region as supplied; normalized by the region catalog

	VCPU      *float64
	MemoryGiB *float64
	Profile   string
	Arch      string

	OS             string
	LicenseModel   string
	PurchaseOption string

	RootGB   *float64
	RootType string
	DataGB   *float64
	DataType string
	S3GB     *float64

	NetworkTier string

	DBEngine    string
	DBClass     string
	DBStorageGB *float64
	MultiAZ     *bool

	// Azure SQL vCore fields.
	DBDeployment string
	DBTier       string
	DBVCores     *float64

	BYOL *bool
	AHUB *bool
	// Raw toggle spellings, kept so validation can warn when a supplied
	// value does not parse as a boolean.
	BYOLRaw string
	AHUBRaw string

	Environment string
}

// nullish values treated as absent, matching common spreadsheet exports.
var nullish = map[string]bool{
	"": true, "nan": true, "null": true, "none": true, "n/a": true, "#n/a": true,
}

// IsAbsent reports whether a raw string value carries no usable content.
func IsAbsent(v string) bool {
	return nullish[strings.ToLower(strings.TrimSpace(v))]
}

// normString returns the trimmed value, or "" when nullish.
func normString(v string) string {
	if IsAbsent(v) {
		return ""
	}
	return strings.TrimSpace(v)
}

// lowerString returns the trimmed, lowercased value, or "" when nullish.
func lowerString(v string) string {
	return strings.ToLower(normString(v))
}

// parseFloat parses a finite float. Absent, unparsable, NaN and infinite
// values all yield nil rather than zero.
func parseFloat(v string) *float64 {
	s := normString(v)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// parseBool parses common boolean spellings. Unrecognized values yield nil.
func parseBool(v string) *bool {
	switch lowerString(v) {
	case "true", "yes", "y", "1":
		b := true
		return &b
	case "false", "no", "n", "0":
		b := false
		return &b
	default:
		return nil
	}
}

// BoolLike reports whether a raw value parses as a boolean. Used by the
// validator to warn on malformed cloud-specific toggles without blocking.
func BoolLike(v string) bool {
	return parseBool(v) != nil
}

// FromRecord builds a Row from an untyped field mapping. Unknown keys are
// ignored; recognized keys follow the canonical input header names.
func FromRecord(rec map[string]string) Row {
	return Row{
		ID:             normString(rec["id"]),
		Provider:       lowerString(rec["cloud"]),
		Region:         normString(rec["region"]),
		VCPU:           parseFloat(rec["vcpu"]),
		MemoryGiB:      parseFloat(rec["memory_gib"]),
		Profile:        lowerString(rec["profile"]),
		Arch:           lowerString(rec["arch"]),
		OS:             lowerString(rec["os"]),
		LicenseModel:   lowerString(rec["license_model"]),
		PurchaseOption: lowerString(rec["purchase_option"]),
		RootGB:         parseFloat(rec["root_gb"]),
		RootType:       lowerString(rec["root_type"]),
		DataGB:         parseFloat(rec["data_gb"]),
		DataType:       lowerString(rec["data_type"]),
		S3GB:           parseFloat(rec["s3_gb"]),
		NetworkTier:    lowerString(rec["network_profile"]),
		DBEngine:       lowerString(rec["db_engine"]),
		DBClass:        normString(rec["db_instance_class"]),
		DBStorageGB:    parseFloat(rec["db_storage_gb"]),
		MultiAZ:        parseBool(rec["multi_az"]),
		DBDeployment:   lowerString(rec["db_deployment"]),
		DBTier:         normString(rec["db_tier"]),
		DBVCores:       parseFloat(rec["db_vcores"]),
		BYOL:           parseBool(rec["byol"]),
		AHUB:           parseBool(rec["ahub"]),
		BYOLRaw:        normString(rec["byol"]),
		AHUBRaw:        normString(rec["ahub"]),
		Environment:    normString(rec["environment"]),
	}
}

// PositiveFloat reports whether p holds a value strictly greater than zero.
// A present-but-zero value is treated identically to absent.
func PositiveFloat(p *float64) bool {
	return p != nil && *p > 0
}

// FloatOrZero unwraps an optional float, defaulting to zero.
func FloatOrZero(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// BoolOrFalse unwraps an optional bool, defaulting to false.
func BoolOrFalse(p *bool) bool {
	return p != nil && *p
}

// IsBYOL reports whether the row's license model is bring-your-own-license.
// Both the license_model column and the AWS byol toggle are honored.
func (r Row) IsBYOL() bool {
	return r.LicenseModel == "byol" || BoolOrFalse(r.BYOL)
}

// HasDatabase reports whether the row requests a managed database.
func (r Row) HasDatabase() bool {
	return r.DBEngine != ""
}

// Package validate implements the two-tier gate run over every workload
// row before sizing and pricing.
//
// Tier A decides whether a row can be sized at all; Tier B decides whether
// it can be priced. A row failing Tier A is rejected outright; a row
// failing only Tier B still receives a recommendation but its cost
// breakdown is zeroed with an explanatory note.
package validate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/peralese/cloud-pricing-calculator/internal/regions"
	"github.com/peralese/cloud-pricing-calculator/internal/workload"
)

// Status is the per-row validation outcome.
type Status string

const (
	StatusOK            Status = "ok"
	StatusRecommendOnly Status = "rec_only"
	StatusRejected      Status = "rejected"
)

// IssueLevel distinguishes blocking problems from advisories.
type IssueLevel string

const (
	LevelError IssueLevel = "error"
	LevelWarn  IssueLevel = "warn"
)

// Issue is one problem found on a row, with a concrete fix hint.
type Issue struct {
	Level   IssueLevel
	Field   string
	Reason  string
	FixHint string
}

// Verdict is the immutable validation outcome for one row. Exactly one
// verdict is produced per row; it is never retroactively changed.
type Verdict struct {
	Status Status
	// BlockedFor names the first pipeline stage the row cannot enter:
	// "none", "pricing", or "recommendation".
	BlockedFor string
	Issues     []Issue
}

// MissingPricingFields lists the Tier B fields this verdict found absent,
// in report order. Empty unless Status is StatusRecommendOnly.
func (v Verdict) MissingPricingFields() []string {
	var fields []string
	for _, is := range v.Issues {
		if is.Reason == reasonMissingForPricing {
			fields = append(fields, is.Field)
		}
	}
	return fields
}

// Reasons renders the issue list as "level:field:reason" segments, the
// form used by the validation report.
func (v Verdict) Reasons() string {
	parts := make([]string, 0, len(v.Issues))
	for _, is := range v.Issues {
		parts = append(parts, fmt.Sprintf("%s:%s:%s", is.Level, is.Field, is.Reason))
	}
	return strings.Join(parts, "; ")
}

// FixHints renders the deduplicated, sorted fix hints for the report.
func (v Verdict) FixHints() string {
	seen := map[string]bool{}
	var hints []string
	for _, is := range v.Issues {
		if is.FixHint != "" && !seen[is.FixHint] {
			seen[is.FixHint] = true
			hints = append(hints, is.FixHint)
		}
	}
	sort.Strings(hints)
	return strings.Join(hints, " | ")
}

// Stats aggregates verdict counts for a run. Strict mode turns any
// non-ok count into a non-zero exit after the run completes.
type Stats struct {
	Total         int
	OK            int
	RecommendOnly int
	Rejected      int
}

// Clean reports whether every row validated ok.
func (s Stats) Clean() bool {
	return s.RecommendOnly == 0 && s.Rejected == 0
}

const reasonMissingForPricing = "missing for pricing"

// tierBRequired lists the fields Tier B needs before a row can be priced.
var tierBRequired = []string{"os", "purchase_option", "root_gb", "root_type"}

// Validator gates rows against the region catalog and the field rules.
type Validator struct {
	regions     *regions.Catalog
	runProvider workload.Provider
	logger      zerolog.Logger
}

// New builds a Validator over the given region catalog. runProvider is
// the cloud the run targets; rows tagged for a different cloud are
// rejected. An empty runProvider disables the cross-check.
func New(catalog *regions.Catalog, runProvider workload.Provider, logger zerolog.Logger) *Validator {
	return &Validator{regions: catalog, runProvider: runProvider, logger: logger}
}

// Row validates a single row. Rows are independent of one another; the
// sequential loop in Rows exists only to keep report ordering stable.
func (v *Validator) Row(row workload.Row) Verdict {
	var issues []Issue

	// Tier A: recommendation gate.
	provider, providerKnown := workload.KnownProvider(row.Provider)
	if row.Provider == "" {
		issues = append(issues, Issue{LevelError, "cloud", "missing", "Provide cloud (aws or azure)."})
	} else if !providerKnown {
		issues = append(issues, Issue{
			LevelError, "cloud",
			fmt.Sprintf("invalid %q", row.Provider),
			"Use one of: aws, azure",
		})
	} else if v.runProvider != "" && provider != v.runProvider {
		issues = append(issues, Issue{
			LevelError, "cloud",
			fmt.Sprintf("row targets %s but the run is for %s", provider, v.runProvider),
			fmt.Sprintf("Split the inventory per cloud or rerun with --cloud %s.", provider),
		})
	}

	if row.Region == "" {
		issues = append(issues, Issue{LevelError, "region", "missing", "Provide region."})
	} else if providerKnown {
		issues = append(issues, v.regionIssues(provider, row.Region)...)
	}

	if !workload.PositiveFloat(row.VCPU) && !workload.PositiveFloat(row.MemoryGiB) {
		issues = append(issues, Issue{
			LevelError, "vcpu|memory_gib",
			"both missing or non-positive",
			"Provide vcpu (>0), memory_gib (>0), or both.",
		})
	}

	if hasBlocking(issues) {
		return Verdict{Status: StatusRejected, BlockedFor: "recommendation", Issues: issues}
	}

	// Tier B: pricing gate. Invalid enum values warn but never block the
	// recommendation; only absent required fields downgrade the row.
	issues = append(issues, enumIssue("os", row.OS, workload.OperatingSystems)...)
	issues = append(issues, enumIssue("purchase_option", row.PurchaseOption, workload.PurchaseOptions)...)
	issues = append(issues, enumIssue("profile", row.Profile, workload.Profiles)...)
	issues = append(issues, enumIssue("arch", row.Arch, workload.Architectures)...)
	issues = append(issues, enumIssue("network_profile", row.NetworkTier, workload.NetworkTiers)...)
	issues = append(issues, toggleIssue("byol", row.BYOLRaw)...)
	issues = append(issues, toggleIssue("ahub", row.AHUBRaw)...)

	missing := missingPricingFields(row)
	for _, f := range missing {
		issues = append(issues, Issue{
			LevelWarn, f, reasonMissingForPricing,
			fmt.Sprintf("Provide %s to enable pricing.", f),
		})
	}

	if missing != nil {
		return Verdict{Status: StatusRecommendOnly, BlockedFor: "pricing", Issues: issues}
	}
	return Verdict{Status: StatusOK, BlockedFor: "none", Issues: issues}
}

// Rows validates every row in order, returning one verdict per row plus
// the aggregate counts.
func (v *Validator) Rows(rows []workload.Row) ([]Verdict, Stats) {
	verdicts := make([]Verdict, len(rows))
	stats := Stats{Total: len(rows)}
	for i, row := range rows {
		verdict := v.Row(row)
		verdicts[i] = verdict
		switch verdict.Status {
		case StatusOK:
			stats.OK++
		case StatusRecommendOnly:
			stats.RecommendOnly++
		case StatusRejected:
			stats.Rejected++
		}
		if verdict.Status != StatusOK {
			v.logger.Debug().
				Str("row_id", row.ID).
				Str("status", string(verdict.Status)).
				Str("reasons", verdict.Reasons()).
				Msg("row downgraded by validation")
		}
	}
	return verdicts, stats
}

// regionIssues checks the row's region against the provider's canonical
// set. An unrecognized region is an error with nearest-match suggestions;
// an alias spelling is accepted with a warning.
func (v *Validator) regionIssues(provider workload.Provider, raw string) []Issue {
	canonical, warning, ok, err := v.regions.Normalize(provider, raw)
	if err != nil {
		// Unknown provider is handled by the Tier A provider check.
		return nil
	}
	if ok {
		if warning != "" {
			return []Issue{{
				LevelWarn, "region", warning,
				fmt.Sprintf("Prefer canonical %s region codes (e.g., %s).", provider, canonical),
			}}
		}
		return nil
	}

	_, suggestions, _ := v.regions.Validate(provider, raw)
	hint := fmt.Sprintf("Use canonical %s region codes. Closest: %s", provider, strings.Join(suggestions, ", "))
	if other, looksLike := v.regions.LooksLikeOtherProvider(provider, raw); looksLike {
		hint = fmt.Sprintf("%q looks like a %s region. %s", raw, other, hint)
	}
	return []Issue{{
		LevelError, "region",
		fmt.Sprintf("invalid %s region %q", provider, raw),
		hint,
	}}
}

// enumIssue warns when a present value is outside the allowed set.
func enumIssue(field, value string, allowed []string) []Issue {
	if value == "" {
		return nil
	}
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return []Issue{{
		LevelWarn, field,
		fmt.Sprintf("invalid %q", value),
		fmt.Sprintf("Use one of: %s", strings.Join(allowed, ", ")),
	}}
}

// toggleIssue warns when a cloud-specific toggle carries a value that is
// not a recognizable boolean spelling. The toggle is treated as unset.
func toggleIssue(field, raw string) []Issue {
	if raw == "" || workload.BoolLike(raw) {
		return nil
	}
	return []Issue{{
		LevelWarn, field,
		fmt.Sprintf("non-boolean %q", raw),
		fmt.Sprintf("Use true/false for %s.", field),
	}}
}

// missingPricingFields returns the Tier B required fields absent from the
// row, in canonical order.
func missingPricingFields(row workload.Row) []string {
	var missing []string
	for _, f := range tierBRequired {
		switch f {
		case "os":
			if row.OS == "" {
				missing = append(missing, f)
			}
		case "purchase_option":
			if row.PurchaseOption == "" {
				missing = append(missing, f)
			}
		case "root_gb":
			if row.RootGB == nil {
				missing = append(missing, f)
			}
		case "root_type":
			if row.RootType == "" {
				missing = append(missing, f)
			}
		}
	}
	return missing
}

// hasBlocking reports whether any issue is at error level.
func hasBlocking(issues []Issue) bool {
	for _, is := range issues {
		if is.Level == LevelError {
			return true
		}
	}
	return false
}

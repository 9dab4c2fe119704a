// Package regions maintains the canonical region identifiers per cloud
// provider, normalizes human phrasings to canonical slugs, and produces
// "did you mean" suggestions for near-miss inputs.
//
// Lookups are pure: the catalog never mutates after construction.
package regions

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/peralese/cloud-pricing-calculator/internal/workload"
)

// SuggestionLimit caps how many nearest canonical regions a failed
// validation returns.
const SuggestionLimit = 5

// awsRegions holds the AWS commercial region codes the calculator supports.
var awsRegions = []string{
	"us-east-1", "us-east-2", "us-west-1", "us-west-2",
	"ca-central-1",
	"eu-west-1", "eu-west-2", "eu-west-3", "eu-north-1",
	"eu-south-1", "eu-south-2", "eu-central-1", "eu-central-2",
	"ap-south-1", "ap-south-2",
	"ap-southeast-1", "ap-southeast-2", "ap-southeast-3", "ap-southeast-4",
	"ap-northeast-1", "ap-northeast-2", "ap-northeast-3",
	"ap-east-1",
	"sa-east-1",
	"af-south-1",
	"me-south-1", "me-central-1",
}

// awsGovRegions holds the AWS GovCloud region codes.
var awsGovRegions = []string{"us-gov-west-1", "us-gov-east-1"}

// azureRegions holds the Azure canonical region slugs.
var azureRegions = []string{
	"eastus", "eastus2", "westus", "westus2", "westus3", "centralus",
	"northcentralus", "southcentralus", "westcentralus",
	"northeurope", "westeurope", "uksouth", "ukwest",
	"francecentral", "germanywestcentral", "norwayeast", "swedencentral",
	"switzerlandnorth", "polandcentral", "italynorth", "spaincentral",
	"eastasia", "southeastasia", "japaneast", "japanwest",
	"koreacentral", "koreasouth",
	"australiaeast", "australiasoutheast", "australiacentral",
	"centralindia", "southindia", "westindia", "jioindiawest",
	"canadacentral", "canadaeast",
	"brazilsouth", "southafricanorth", "uaenorth", "qatarcentral",
	"israelcentral", "mexicocentral",
}

// awsAliases maps human phrasings to canonical AWS region codes.
// GovCloud inputs in particular arrive in many spellings.
var awsAliases = map[string]string{
	"aws govcloud us-west": "us-gov-west-1",
	"aws-gov-west":         "us-gov-west-1",
	"govcloud-us-west":     "us-gov-west-1",
	"govcloud-us-west-1":   "us-gov-west-1",
	"gov-west-1":           "us-gov-west-1",
	"aws govcloud us-east": "us-gov-east-1",
	"aws-gov-east":         "us-gov-east-1",
	"govcloud-us-east":     "us-gov-east-1",
	"govcloud-us-east-1":   "us-gov-east-1",
	"gov-east-1":           "us-gov-east-1",
}

// azureAliases maps the Azure portal display names to canonical slugs.
var azureAliases = map[string]string{
	"east us":             "eastus",
	"east us 2":           "eastus2",
	"west us":             "westus",
	"west us 2":           "westus2",
	"west us 3":           "westus3",
	"central us":          "centralus",
	"north central us":    "northcentralus",
	"south central us":    "southcentralus",
	"west central us":     "westcentralus",
	"north europe":        "northeurope",
	"west europe":         "westeurope",
	"uk south":            "uksouth",
	"uk west":             "ukwest",
	"japan east":          "japaneast",
	"japan west":          "japanwest",
	"southeast asia":      "southeastasia",
	"east asia":           "eastasia",
	"australia east":      "australiaeast",
	"australia southeast": "australiasoutheast",
	"central india":       "centralindia",
	"south india":         "southindia",
	"canada central":      "canadacentral",
	"canada east":         "canadaeast",
	"brazil south":        "brazilsouth",
}

// Catalog resolves raw region inputs against the canonical sets.
type Catalog struct {
	byProvider map[workload.Provider][]string
	aliases    map[workload.Provider]map[string]string
	// folded maps a case/space/hyphen-insensitive form to the canonical slug.
	folded map[workload.Provider]map[string]string
}

// NewCatalog builds the catalog from the built-in region tables.
func NewCatalog() *Catalog {
	c := &Catalog{
		byProvider: map[workload.Provider][]string{},
		aliases: map[workload.Provider]map[string]string{
			workload.ProviderAWS:   awsAliases,
			workload.ProviderAzure: azureAliases,
		},
		folded: map[workload.Provider]map[string]string{},
	}

	aws := append(append([]string{}, awsRegions...), awsGovRegions...)
	sort.Strings(aws)
	c.byProvider[workload.ProviderAWS] = aws

	az := append([]string{}, azureRegions...)
	sort.Strings(az)
	c.byProvider[workload.ProviderAzure] = az

	for provider, regions := range c.byProvider {
		m := make(map[string]string, len(regions))
		for _, r := range regions {
			m[fold(r)] = r
		}
		for alias, canonical := range c.aliases[provider] {
			m[fold(alias)] = canonical
		}
		c.folded[provider] = m
	}
	return c
}

// fold lowercases and strips spaces, hyphens and underscores so that
// "US East", "us_east" and "us-east" compare equal.
func fold(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_':
			return -1
		}
		return r
	}, s)
}

// Regions returns the sorted canonical region list for a provider.
// An unknown provider is a configuration error, fatal to the run.
func (c *Catalog) Regions(provider workload.Provider) ([]string, error) {
	regions, ok := c.byProvider[provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
	return regions, nil
}

// Normalize maps a raw region input to its canonical slug. The warning is
// non-empty when the input was accepted via an alias or spelling variant
// rather than the canonical form. An unrecognized region returns the
// lowercased input unchanged with ok=false; that is a row-level concern,
// not an error.
func (c *Catalog) Normalize(provider workload.Provider, raw string) (canonical, warning string, ok bool, err error) {
	folded, exists := c.folded[provider]
	if !exists {
		return "", "", false, fmt.Errorf("unknown provider %q", provider)
	}

	trimmed := strings.ToLower(strings.TrimSpace(raw))
	canonical, ok = folded[fold(raw)]
	if !ok {
		return trimmed, "", false, nil
	}
	if canonical != trimmed {
		warning = fmt.Sprintf("normalized %q to %q", raw, canonical)
	}
	return canonical, warning, true, nil
}

// Validate checks a raw region against the provider's canonical set. When
// the region cannot be normalized it returns the nearest canonical slugs by
// edit distance, closest first.
func (c *Catalog) Validate(provider workload.Provider, raw string) (valid bool, suggestions []string, err error) {
	_, _, ok, err := c.Normalize(provider, raw)
	if err != nil {
		return false, nil, err
	}
	if ok {
		return true, nil, nil
	}
	return false, c.suggest(provider, raw), nil
}

// suggest ranks the provider's canonical regions by edit distance against
// the folded input, breaking ties lexicographically.
func (c *Catalog) suggest(provider workload.Provider, raw string) []string {
	needle := fold(raw)
	regions := c.byProvider[provider]

	type scored struct {
		region string
		dist   int
	}
	ranked := make([]scored, 0, len(regions))
	for _, r := range regions {
		ranked = append(ranked, scored{region: r, dist: levenshtein.ComputeDistance(needle, fold(r))})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].dist != ranked[j].dist {
			return ranked[i].dist < ranked[j].dist
		}
		return ranked[i].region < ranked[j].region
	})

	n := SuggestionLimit
	if len(ranked) < n {
		n = len(ranked)
	}
	out := make([]string, 0, n)
	for _, s := range ranked[:n] {
		out = append(out, s.region)
	}
	return out
}

// LooksLikeOtherProvider reports whether a region that failed validation
// for one provider is actually a canonical region of another. Used to give
// a sharper fix hint ("eastus looks like an Azure region").
func (c *Catalog) LooksLikeOtherProvider(provider workload.Provider, raw string) (workload.Provider, bool) {
	for other, folded := range c.folded {
		if other == provider {
			continue
		}
		if _, ok := folded[fold(raw)]; ok {
			return other, true
		}
	}
	return "", false
}

// Package catalog defines the instance-size catalog the recommender
// searches, plus the sources that populate it (live EC2 API, JSON
// snapshot file, static fixtures).
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/peralese/cloud-pricing-calculator/internal/workload"
)

// ErrEmptyCatalog is returned when a source yields no usable sizes for
// the requested provider/region. A run cannot recommend without a catalog.
var ErrEmptyCatalog = errors.New("instance catalog is empty")

// InstanceSize is one offerable compute shape.
type InstanceSize struct {
	SKU          string   `json:"sku"`
	VCPU         float64  `json:"vcpu"`
	MemoryGiB    float64  `json:"memory_gib"`
	Family       string   `json:"family"`
	Generation   int      `json:"generation"`
	CurrentGen   bool     `json:"current_generation"`
	Architecture []string `json:"architectures"`
}

// SupportsArch reports whether the size offers the given normalized
// architecture ("x86" or "arm").
func (s InstanceSize) SupportsArch(arch string) bool {
	if arch == "" {
		arch = "x86"
	}
	for _, a := range s.Architecture {
		if a == arch {
			return true
		}
	}
	return false
}

// ParseSKU splits an instance type like "m7i.xlarge" into its family and
// size, and extracts the numeric generation from the family. Families
// without a digit (e.g. legacy "t1") report generation 1.
func ParseSKU(sku string) (family, size string, generation int, err error) {
	parts := strings.SplitN(strings.ToLower(strings.TrimSpace(sku)), ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", 0, fmt.Errorf("malformed instance type %q", sku)
	}
	family, size = parts[0], parts[1]
	generation = 1
	for i := 0; i < len(family); i++ {
		if family[i] >= '0' && family[i] <= '9' {
			generation = 0
			for ; i < len(family) && family[i] >= '0' && family[i] <= '9'; i++ {
				generation = generation*10 + int(family[i]-'0')
			}
			break
		}
	}
	return family, size, generation, nil
}

// FamilyClass returns the leading letters of a family ("m7i" -> "m").
func FamilyClass(family string) string {
	for i := 0; i < len(family); i++ {
		if family[i] >= '0' && family[i] <= '9' {
			return family[:i]
		}
	}
	return family
}

// Source supplies the instance sizes offered in a provider region.
// Implementations must return sizes sorted deterministically.
type Source interface {
	Fetch(ctx context.Context, provider workload.Provider, region string) ([]InstanceSize, error)
}

// Static is a fixed in-memory Source, used in tests and offline runs.
type Static struct {
	Sizes []InstanceSize
}

// Fetch returns the configured sizes regardless of provider and region.
func (s Static) Fetch(context.Context, workload.Provider, string) ([]InstanceSize, error) {
	if len(s.Sizes) == 0 {
		return nil, ErrEmptyCatalog
	}
	out := append([]InstanceSize{}, s.Sizes...)
	SortSizes(out)
	return out, nil
}

// SortSizes orders sizes by ascending vCPU, then memory, then SKU, the
// order the recommender's "smallest fit" search depends on.
func SortSizes(sizes []InstanceSize) {
	sort.Slice(sizes, func(i, j int) bool {
		if sizes[i].VCPU != sizes[j].VCPU {
			return sizes[i].VCPU < sizes[j].VCPU
		}
		if sizes[i].MemoryGiB != sizes[j].MemoryGiB {
			return sizes[i].MemoryGiB < sizes[j].MemoryGiB
		}
		return sizes[i].SKU < sizes[j].SKU
	})
}

package catalog

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/peralese/cloud-pricing-calculator/internal/workload"
)

// snapshot is the on-disk catalog format written by tools/fetch-catalog.
// Sizes are keyed by "<provider>/<region>".
type snapshot struct {
	Generated string                    `json:"generated"`
	Regions   map[string][]InstanceSize `json:"regions"`
}

// FileSource serves instance catalogs from a JSON snapshot, for offline
// runs and reproducible tests.
type FileSource struct {
	path string
	snap *snapshot
}

// NewFileSource opens and parses a snapshot file eagerly so a bad path
// fails at startup, not mid-run.
func NewFileSource(path string) (*FileSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog snapshot: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing catalog snapshot %s: %w", path, err)
	}
	return &FileSource{path: path, snap: &snap}, nil
}

// Fetch returns the snapshot's sizes for the provider region.
func (s *FileSource) Fetch(_ context.Context, provider workload.Provider, region string) ([]InstanceSize, error) {
	key := fmt.Sprintf("%s/%s", provider, region)
	sizes, ok := s.snap.Regions[key]
	if !ok || len(sizes) == 0 {
		return nil, fmt.Errorf("snapshot %s has no entry for %s: %w", s.path, key, ErrEmptyCatalog)
	}
	out := append([]InstanceSize{}, sizes...)
	SortSizes(out)
	return out, nil
}

// WriteSnapshot serializes a snapshot to path. Used by tools/fetch-catalog.
func WriteSnapshot(path, generated string, regions map[string][]InstanceSize) error {
	data, err := json.MarshalIndent(snapshot{Generated: generated, Regions: regions}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding catalog snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing catalog snapshot: %w", err)
	}
	return nil
}

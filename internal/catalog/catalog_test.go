package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/peralese/cloud-pricing-calculator/internal/workload"
)

func TestParseSKU(t *testing.T) {
	tests := []struct {
		in         string
		family     string
		size       string
		generation int
		wantErr    bool
	}{
		{"m7i.xlarge", "m7i", "xlarge", 7, false},
		{"c5.2xlarge", "c5", "2xlarge", 5, false},
		{"r6i.large", "r6i", "large", 6, false},
		{"t1.micro", "t1", "micro", 1, false},
		{"M7I.XLARGE", "m7i", "xlarge", 7, false},
		{"xlarge", "", "", 0, true},
		{"", "", "", 0, true},
		{"m7i.", "", "", 0, true},
	}
	for _, tt := range tests {
		family, size, generation, err := ParseSKU(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSKU(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if family != tt.family || size != tt.size || generation != tt.generation {
			t.Errorf("ParseSKU(%q) = (%q, %q, %d), want (%q, %q, %d)",
				tt.in, family, size, generation, tt.family, tt.size, tt.generation)
		}
	}
}

func TestFamilyClass(t *testing.T) {
	tests := []struct{ in, want string }{
		{"m7i", "m"},
		{"c5", "c"},
		{"r6i", "r"},
		{"t", "t"},
	}
	for _, tt := range tests {
		if got := FamilyClass(tt.in); got != tt.want {
			t.Errorf("FamilyClass(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSupportsArch(t *testing.T) {
	s := InstanceSize{Architecture: []string{"x86"}}
	if !s.SupportsArch("") {
		t.Error("empty arch should default to x86")
	}
	if s.SupportsArch("arm") {
		t.Error("x86-only size should not support arm")
	}
}

func TestStaticSourceSortsAndCopies(t *testing.T) {
	src := Static{Sizes: []InstanceSize{
		{SKU: "m7i.2xlarge", VCPU: 8, MemoryGiB: 32},
		{SKU: "m7i.large", VCPU: 2, MemoryGiB: 8},
		{SKU: "m7i.xlarge", VCPU: 4, MemoryGiB: 16},
	}}
	sizes, err := src.Fetch(context.Background(), workload.ProviderAWS, "us-east-1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if sizes[0].SKU != "m7i.large" || sizes[2].SKU != "m7i.2xlarge" {
		t.Errorf("sizes not sorted ascending: %v", sizes)
	}

	empty := Static{}
	if _, err := empty.Fetch(context.Background(), workload.ProviderAWS, "us-east-1"); !errors.Is(err, ErrEmptyCatalog) {
		t.Errorf("empty source err = %v, want ErrEmptyCatalog", err)
	}
}

func TestFileSourceRoundTrip(t *testing.T) {
	path := t.TempDir() + "/catalog.json"
	regions := map[string][]InstanceSize{
		"aws/us-east-1": {
			{SKU: "m7i.xlarge", VCPU: 4, MemoryGiB: 16, Family: "m7i", Generation: 7, CurrentGen: true, Architecture: []string{"x86"}},
		},
	}
	if err := WriteSnapshot(path, "2026-01-01T00:00:00Z", regions); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	src, err := NewFileSource(path)
	if err != nil {
		t.Fatalf("NewFileSource: %v", err)
	}
	sizes, err := src.Fetch(context.Background(), workload.ProviderAWS, "us-east-1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(sizes) != 1 || sizes[0].SKU != "m7i.xlarge" {
		t.Errorf("unexpected sizes: %v", sizes)
	}

	if _, err := src.Fetch(context.Background(), workload.ProviderAWS, "eu-west-1"); !errors.Is(err, ErrEmptyCatalog) {
		t.Errorf("missing region err = %v, want ErrEmptyCatalog", err)
	}
}

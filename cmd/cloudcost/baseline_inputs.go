package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/peralese/cloud-pricing-calculator/internal/baseline"
)

// loadBaselineInputs reads baseline quantities from a YAML file, or
// returns the defaults when no file is given.
func loadBaselineInputs(path, region string) (baseline.Inputs, error) {
	in := baseline.DefaultInputs(region)
	if path == "" {
		return in, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return in, fmt.Errorf("reading baseline inputs: %w", err)
	}
	if err := yaml.Unmarshal(data, &in); err != nil {
		return in, fmt.Errorf("parsing baseline inputs %s: %w", path, err)
	}
	if in.Region == "" {
		in.Region = region
	}
	return in, nil
}

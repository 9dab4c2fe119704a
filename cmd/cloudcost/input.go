package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/peralese/cloud-pricing-calculator/internal/workload"
)

// headerAliases maps common spreadsheet header spellings to the
// canonical field names the row parser understands.
var headerAliases = map[string]string{
	"provider":         "cloud",
	"cpu":              "vcpu",
	"vcpus":            "vcpu",
	"memory":           "memory_gib",
	"mem_gib":          "memory_gib",
	"ram_gib":          "memory_gib",
	"ebs_gb":           "root_gb",
	"ebs_type":         "root_type",
	"operating_system": "os",
	"network":          "network_profile",
	"db_class":         "db_instance_class",
}

// readRows loads a workload inventory CSV into typed rows. A row with no
// id gets a positional one so reports stay traceable.
func readRows(path string) ([]workload.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading input %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("input %s has no data rows", path)
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		name := strings.ToLower(strings.TrimSpace(h))
		if canonical, ok := headerAliases[name]; ok {
			name = canonical
		}
		header[i] = name
	}

	rows := make([]workload.Row, 0, len(records)-1)
	for n, record := range records[1:] {
		rec := make(map[string]string, len(header))
		for i, field := range record {
			if i < len(header) {
				rec[header[i]] = field
			}
		}
		row := workload.FromRecord(rec)
		if row.ID == "" {
			row.ID = fmt.Sprintf("row-%d", n+2) // 1-based, header is line 1
		}
		rows = append(rows, row)
	}
	return rows, nil
}

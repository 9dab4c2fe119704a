// Package dbclass resolves the managed-database instance class for rows
// that request a database, tracking where each class came from.
package dbclass

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/peralese/cloud-pricing-calculator/internal/catalog"
)

// Provenance records how a database class was determined.
type Provenance string

const (
	// ProvenanceSupplied means the input row named the class explicitly.
	ProvenanceSupplied Provenance = "as-supplied"
	// ProvenanceDerived means the class was derived from the compute
	// recommendation, including the compute-to-general family substitution.
	ProvenanceDerived Provenance = "derived"
	// ProvenanceFallback means an engine compatibility table replaced the
	// derived family with an older supported generation.
	ProvenanceFallback Provenance = "derived-with-fallback"
	// ProvenanceUnresolved means no class could be determined.
	ProvenanceUnresolved Provenance = "unresolved"
)

// Resolved is the outcome of class resolution for one row.
type Resolved struct {
	Class      string
	Engine     string // normalized engine name, empty when unrecognized
	Provenance Provenance
	Note       string
}

// engineAliases normalizes the free-form engine spellings seen in
// workload inventories to the canonical RDS engine names.
var engineAliases = map[string]string{
	"postgres":          "postgresql",
	"postgresql":        "postgresql",
	"pgsql":             "postgresql",
	"aurora postgres":   "aurora-postgresql",
	"aurora-postgresql": "aurora-postgresql",
	"aurora mysql":      "aurora-mysql",
	"aurora-mysql":      "aurora-mysql",
	"mysql":             "mysql",
	"mariadb":           "mariadb",
	"oracle":            "oracle-se2",
	"oracle-se2":        "oracle-se2",
	"oracle-ee":         "oracle-ee",
	"sql server":        "sqlserver-se",
	"sqlserver":         "sqlserver-se",
	"mssql":             "sqlserver-se",
	"sqlserver-se":      "sqlserver-se",
	"sqlserver-ee":      "sqlserver-ee",
	"sqlserver-ex":      "sqlserver-ex",
	"sqlserver-web":     "sqlserver-web",
}

// computeToGeneral maps compute-optimized compute families to their
// general-purpose database siblings. There is no db.c* class; a workload
// recommended onto c7i lands on db.m7i.
var computeToGeneral = map[string]string{
	"c7i": "m7i",
	"c6i": "m6i",
	"c5":  "m5",
}

// defaultEngineFallbacks downgrades derived families that an engine does
// not yet offer. Keyed by normalized engine, then by db family.
var defaultEngineFallbacks = map[string]map[string]string{
	"sqlserver-se":  {"db.m7i": "db.m6i", "db.r7i": "db.r6i"},
	"sqlserver-ee":  {"db.m7i": "db.m6i", "db.r7i": "db.r6i"},
	"sqlserver-ex":  {"db.m7i": "db.m6i", "db.r7i": "db.r6i"},
	"sqlserver-web": {"db.m7i": "db.m6i", "db.r7i": "db.r6i"},
	"oracle-se2":    {"db.m7i": "db.m6i", "db.r7i": "db.r6i"},
	"oracle-ee":     {"db.m7i": "db.m6i", "db.r7i": "db.r6i"},
}

// NormalizeEngine maps a raw engine spelling to its canonical name.
func NormalizeEngine(raw string) (string, bool) {
	engine, ok := engineAliases[strings.ToLower(strings.TrimSpace(raw))]
	return engine, ok
}

// Resolver derives database instance classes.
type Resolver struct {
	fallbacks map[string]map[string]string
	logger    zerolog.Logger
}

// New builds a Resolver with the built-in engine fallback tables.
func New(logger zerolog.Logger) *Resolver {
	return &Resolver{fallbacks: defaultEngineFallbacks, logger: logger}
}

// fallbackFile is the YAML shape of an external fallback table override.
type fallbackFile struct {
	EngineFallbacks map[string]map[string]string `yaml:"engine_fallbacks"`
}

// NewFromFile builds a Resolver whose fallback tables are the built-in
// defaults overlaid with entries from a YAML file. File entries win.
func NewFromFile(path string, logger zerolog.Logger) (*Resolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading db fallback table: %w", err)
	}
	var file fallbackFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing db fallback table %s: %w", path, err)
	}

	merged := map[string]map[string]string{}
	for engine, table := range defaultEngineFallbacks {
		m := map[string]string{}
		for k, v := range table {
			m[k] = v
		}
		merged[engine] = m
	}
	for engine, table := range file.EngineFallbacks {
		engine = strings.ToLower(engine)
		if merged[engine] == nil {
			merged[engine] = map[string]string{}
		}
		for k, v := range table {
			merged[engine][strings.ToLower(k)] = strings.ToLower(v)
		}
	}
	return &Resolver{fallbacks: merged, logger: logger}, nil
}

// Resolve determines the database class for a row. An explicitly supplied
// class is used verbatim; otherwise the class is derived from the compute
// recommendation's SKU. Resolution is pure: equal inputs always yield
// equal outputs.
func (r *Resolver) Resolve(suppliedClass, rawEngine, computeSKU string) Resolved {
	engine, engineKnown := NormalizeEngine(rawEngine)
	if !engineKnown && rawEngine != "" {
		engine = strings.ToLower(strings.TrimSpace(rawEngine))
	}

	if supplied := strings.TrimSpace(suppliedClass); supplied != "" {
		return Resolved{Class: supplied, Engine: engine, Provenance: ProvenanceSupplied}
	}

	if computeSKU == "" {
		return Resolved{
			Engine:     engine,
			Provenance: ProvenanceUnresolved,
			Note:       "no db class supplied and no compute recommendation to derive from",
		}
	}

	family, size, _, err := catalog.ParseSKU(computeSKU)
	if err != nil {
		return Resolved{
			Engine:     engine,
			Provenance: ProvenanceUnresolved,
			Note:       fmt.Sprintf("cannot derive db class from %q", computeSKU),
		}
	}
	if general, ok := computeToGeneral[family]; ok {
		family = general
	}
	derived := fmt.Sprintf("db.%s.%s", family, size)

	if table, ok := r.fallbacks[engine]; ok {
		if fallbackFamily, ok := table["db."+family]; ok {
			fell := fmt.Sprintf("%s.%s", fallbackFamily, size)
			r.logger.Debug().
				Str("engine", engine).
				Str("derived", derived).
				Str("fallback", fell).
				Msg("db class generation fallback applied")
			return Resolved{
				Class:      fell,
				Engine:     engine,
				Provenance: ProvenanceFallback,
				Note:       fmt.Sprintf("%s unavailable for %s; using %s", derived, engine, fell),
			}
		}
	}
	return Resolved{Class: derived, Engine: engine, Provenance: ProvenanceDerived}
}

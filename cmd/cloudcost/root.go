// Command cloudcost sizes workload inventories onto cloud instance
// types and prices them: validation report, recommendations, monthly
// cost breakdowns, baseline overhead and a run summary.
package main

import (
	"errors"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// errStrictViolations signals that --strict found non-ok rows; main
// turns it into exit code 2.
var errStrictViolations = errors.New("strict mode: run contains non-ok rows")

// rootFlags are shared by every subcommand.
type rootFlags struct {
	cloud     string
	region    string
	outDir    string
	logLevel  string
	strict    bool
	workers   int
	catalog   string
	cacheDir  string
	refresh   bool
	ratesFile string
	overrides string
	fallbacks string
	ttl       time.Duration
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "cloudcost",
		Short:         "Workload sizing recommendations and monthly cloud cost estimates",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.cloud, "cloud", "aws", "cloud provider (aws or azure)")
	pf.StringVar(&flags.region, "region", "", "default region for rows that omit one")
	pf.StringVarP(&flags.outDir, "out", "o", "output", "run output directory")
	pf.StringVar(&flags.logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	pf.BoolVar(&flags.strict, "strict", false, "exit non-zero when any row fails validation")
	pf.IntVar(&flags.workers, "workers", 1, "row processing parallelism")
	pf.StringVar(&flags.catalog, "catalog", "", "instance catalog snapshot file (default: live EC2 API)")
	pf.StringVar(&flags.cacheDir, "cache-dir", ".pricecache", "price cache directory")
	pf.BoolVar(&flags.refresh, "refresh-prices", false, "bypass cached prices this run")
	pf.StringVar(&flags.ratesFile, "rates", "", "YAML rates override file")
	pf.StringVar(&flags.overrides, "price-overrides", "", "YAML pinned-price override file")
	pf.StringVar(&flags.fallbacks, "db-fallbacks", "", "YAML db class fallback table")
	pf.DurationVar(&flags.ttl, "price-ttl", 7*24*time.Hour, "how long cached prices stay fresh")

	cmd.AddCommand(
		newRecommendCmd(flags),
		newPriceCmd(flags),
		newBaselineCmd(flags),
		newRegionsCmd(flags),
	)
	return cmd
}

// newLogger builds the console logger used by every subcommand.
func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(writer).Level(lvl).With().Timestamp().Logger()
}

package main

import (
	"fmt"
	"os"

	"github.com/gookit/color"
	"github.com/spf13/cobra"
	"github.com/timewinder-dev/looptrace/cas"
	"github.com/timewinder-dev/looptrace/engine"
	"github.com/timewinder-dev/looptrace/model"
)

var (
	checkWorkers   int
	checkKeepGoing bool
	checkStore     string
)

var checkCmd = &cobra.Command{
	Use:   "check SCENARIO|DIR...",
	Short: "Check scenario properties against generated traces",
	Args:  cobra.MinimumNArgs(1),
	RunE:  checkCommand,
}

func init() {
	checkCmd.Flags().IntVar(&checkWorkers, "workers", 0, "Number of parallel workers; defaults to the configured count")
	checkCmd.Flags().BoolVar(&checkKeepGoing, "keep-going", false, "Keep checking after the first failing scenario")
	checkCmd.Flags().StringVar(&checkStore, "store", "", "SQLite trace store used as an analysis cache")
}

func checkCommand(cmd *cobra.Command, args []string) error {
	paths, err := model.FindScenarios(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no scenarios found in %v", args)
	}
	var scenarios []*model.Scenario
	for _, p := range paths {
		s, err := model.LoadScenarioFromFile(p)
		if err != nil {
			return err
		}
		scenarios = append(scenarios, s)
	}

	store, closeStore, err := openStore(storePath(checkStore), cfg.Store.CacheSize)
	if err != nil {
		return err
	}
	defer closeStore()

	workers := checkWorkers
	if workers == 0 {
		workers = cfg.Check.Workers
	}
	keepGoing := checkKeepGoing || cfg.Check.KeepGoing

	runner := model.NewRunner(cas.NewTraces(store, engine.New(cfg.Engine)), workers, keepGoing)
	runner.Reporter = &model.ColorReporter{Writer: os.Stderr}

	fmt.Fprintln(os.Stderr, color.Cyan.Sprintf("Checking %d scenario(s)...", len(scenarios)))
	result, err := runner.Run(cmd.Context(), scenarios)
	if err != nil {
		return err
	}

	if keepGoing {
		fmt.Fprint(os.Stderr, model.FormatAllViolations(result.Violations))
	} else if len(result.Violations) > 0 {
		fmt.Fprint(os.Stderr, model.FormatPropertyViolation(result.Violations[0]))
	}
	fmt.Fprint(os.Stderr, model.FormatStatistics(result.Statistics))

	if !result.Success {
		return fmt.Errorf("%d of %d scenario(s) failed", result.Statistics.Failed, result.Statistics.Scenarios)
	}
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, color.Green.Sprint("✓ All scenarios satisfied their properties"))
	return nil
}

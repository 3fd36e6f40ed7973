package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/timewinder-dev/looptrace"
	"github.com/timewinder-dev/looptrace/cas"
	"github.com/timewinder-dev/looptrace/engine"
	"github.com/timewinder-dev/looptrace/model"
	"github.com/timewinder-dev/looptrace/trace"
	"gopkg.in/yaml.v3"
)

var (
	analyzeFormat string
	analyzeOut    string
	analyzeStore  string
	analyzeDemo   bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [FILE|-]",
	Short: "Narrate a program as event loop steps",
	Args:  cobra.MaximumNArgs(1),
	RunE:  analyzeCommand,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "", "Output format (text, json, yaml); defaults to the configured format")
	analyzeCmd.Flags().StringVar(&analyzeOut, "out", "", "Also write the trace as msgpack to this file")
	analyzeCmd.Flags().StringVar(&analyzeStore, "store", "", "SQLite trace store to read from and write to")
	analyzeCmd.Flags().BoolVar(&analyzeDemo, "demo", false, "Analyze the built-in demo program")
}

func readSource(args []string, demo bool, stdin io.Reader) (string, error) {
	switch {
	case demo:
		return looptrace.DefaultProgram, nil
	case len(args) == 0:
		return "", errors.New("no program given: pass a file, - for stdin, or --demo")
	case args[0] == "-":
		b, err := io.ReadAll(stdin)
		return string(b), err
	}
	b, err := os.ReadFile(args[0])
	return string(b), err
}

func analyzeCommand(cmd *cobra.Command, args []string) error {
	format := analyzeFormat
	if format == "" {
		format = cfg.Output.Format
	}
	if !model.ValidFormat(format) {
		return fmt.Errorf("invalid format %q: must be one of %v", format, model.OutputFormats)
	}

	src, err := readSource(args, analyzeDemo, cmd.InOrStdin())
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(storePath(analyzeStore), cfg.Store.CacheSize)
	if err != nil {
		return err
	}
	defer closeStore()

	tr, h, err := cas.NewTraces(store, engine.New(cfg.Engine)).Get(src)
	if err != nil {
		return err
	}
	log.Info().Str("trace", tr.ID).Str("hash", h.String()).Int("steps", len(tr.Steps)).Msg("analyzed program")

	if analyzeOut != "" {
		if err := writeTraceFile(analyzeOut, tr); err != nil {
			return err
		}
	}
	return writeTrace(cmd.OutOrStdout(), format, tr)
}

func writeTraceFile(path string, tr *trace.Trace) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := tr.Serialize(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

func writeTrace(w io.Writer, format string, tr *trace.Trace) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(tr)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(tr); err != nil {
			return err
		}
		return enc.Close()
	default:
		_, err := io.WriteString(w, model.FormatTrace(tr))
		return err
	}
}

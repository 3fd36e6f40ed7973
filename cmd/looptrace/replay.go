package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/timewinder-dev/looptrace/cas"
	"github.com/timewinder-dev/looptrace/model"
	"github.com/timewinder-dev/looptrace/player"
	"github.com/timewinder-dev/looptrace/trace"
)

var (
	replayStore    string
	replayHash     string
	replayInterval time.Duration
)

var replayCmd = &cobra.Command{
	Use:   "replay [FILE.msgpack]",
	Short: "Step through a recorded trace",
	Long: `Step through a trace written by analyze --out, or one held in a trace store.

Commands: n (next), p (previous), g N (go to step N), r (restart),
play (advance on a timer until the end or Ctrl-C), q (quit).`,
	Args: cobra.MaximumNArgs(1),
	RunE: replayCommand,
}

func init() {
	replayCmd.Flags().StringVar(&replayStore, "store", "", "SQLite trace store to read from")
	replayCmd.Flags().StringVar(&replayHash, "hash", "", "Trace hash or ID in the store")
	replayCmd.Flags().DurationVar(&replayInterval, "interval", 500*time.Millisecond, "Delay between steps during play")
}

func loadReplay(args []string) (*trace.Trace, error) {
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return nil, err
		}
		defer f.Close()
		var tr trace.Trace
		if err := tr.Deserialize(f); err != nil {
			return nil, fmt.Errorf("reading %s: %w", args[0], err)
		}
		return &tr, nil
	}
	path := storePath(replayStore)
	if path == "" || replayHash == "" {
		return nil, errors.New("give a trace file, or --store and --hash")
	}
	store, err := cas.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return cas.Resolve(store, replayHash)
}

func replayCommand(cmd *cobra.Command, args []string) error {
	if replayInterval <= 0 {
		return fmt.Errorf("--interval must be positive, got %s", replayInterval)
	}
	tr, err := loadReplay(args)
	if err != nil {
		return err
	}
	p := player.New()
	p.Load(tr.Steps)
	return replay(cmd.Context(), p, cmd.InOrStdin(), cmd.OutOrStdout(), replayInterval)
}

func showCurrent(w io.Writer, p *player.Player) {
	s, ok := p.Current()
	if !ok {
		fmt.Fprintln(w, "(no steps)")
		return
	}
	fmt.Fprintf(w, "[%d/%d %s]\n", p.Index()+1, p.Len(), p.Status())
	fmt.Fprint(w, model.FormatStep(s))
}

// replay reads stepping commands from in until q or end of input.
func replay(ctx context.Context, p *player.Player, in io.Reader, out io.Writer, interval time.Duration) error {
	showCurrent(out, p)
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			fields = []string{"n"}
		}
		switch fields[0] {
		case "n", "next":
			if !p.Next() {
				fmt.Fprintln(out, "At the last step.")
				continue
			}
		case "p", "prev":
			if !p.Prev() {
				fmt.Fprintln(out, "At the first step.")
				continue
			}
		case "g", "goto":
			if len(fields) < 2 {
				fmt.Fprintln(out, "usage: g N")
				continue
			}
			n, err := strconv.Atoi(fields[1])
			if err != nil || !p.GoTo(n) {
				fmt.Fprintf(out, "No step %s (have 0..%d).\n", fields[1], p.Len()-1)
				continue
			}
		case "r", "reset":
			p.GoTo(0)
		case "play":
			playCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
			err := p.Play(playCtx, interval, func(trace.Step) { showCurrent(out, p) })
			stop()
			if errors.Is(err, player.ErrBadInterval) {
				fmt.Fprintf(out, "Cannot play: %v.\n", err)
				continue
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			continue
		case "q", "quit":
			return nil
		default:
			fmt.Fprintf(out, "Unknown command %q.\n", fields[0])
			continue
		}
		showCurrent(out, p)
	}
}

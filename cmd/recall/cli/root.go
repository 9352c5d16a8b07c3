package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/recall/internal/observe"
	"github.com/felixgeelhaar/recall/internal/ui"
)

var (
	dataDir       string
	resultsDir    string
	modelName     string
	flushEachTurn bool
	verbose       bool
	ciMode        bool
	interactive   bool
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "recall",
	Short: "Scripted memory scenarios for tool-calling models",
	Long: `Recall replays multi-turn scenarios against a two-tier key-value memory
exposed as tools, and persists the memory between scenarios so later
scenarios in a category can build on what earlier ones stored.`,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run [scenario-file...]",
	Short: "Execute scenario files in prerequisite chain order",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		live := interactive && !ciMode && isTerminal(out)
		// Logs and summaries wait until the TUI hands the terminal back.
		var held bytes.Buffer
		if live {
			out = &held
		}
		obs := newObserver(out)

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		r := &Runner{
			Observer:      obs,
			Store:         s,
			ResultsDir:    resultsDirFor(s, resultsDir, cmd.Flags().Changed("results-dir")),
			Model:         setting(s, modelName, cmd.Flags().Changed("model"), configModel, ""),
			FlushEachTurn: flushEachTurn,
			JSON:          ciMode,
			Out:           out,
		}
		switch {
		case live:
			err := runInteractive(cmd.Context(), r, args, cmd.OutOrStdout())
			if _, werr := held.WriteTo(cmd.OutOrStdout()); err == nil {
				err = werr
			}
			return err
		case interactive && !ciMode:
			r.UI = ui.NewTextUI(cmd.ErrOrStderr())
		}
		return r.Run(cmd.Context(), args)
	},
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newObserver(out io.Writer) *observe.Observer {
	if ciMode {
		return observe.NewJSON(out, verbose)
	}
	return observe.New(out, verbose)
}

func init() {
	RootCmd.AddCommand(runCmd)
	RootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", defaultDataDir(), "Directory holding the metadata database")
	RootCmd.PersistentFlags().StringVar(&resultsDir, "results-dir", "", "Results directory (default from config, then <data-dir>/results)")
	runCmd.Flags().StringVarP(&modelName, "model", "m", "", "Model name for scenarios that do not name one")
	runCmd.Flags().BoolVar(&flushEachTurn, "flush-each-turn", false, "Write memory snapshots after every turn")
	runCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	runCmd.Flags().BoolVar(&ciMode, "ci", false, "CI mode: JSON logs and reports")
	runCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Show live scenario progress")
}

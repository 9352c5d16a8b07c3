package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/recall/internal/snapshot"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Inspect memory snapshots",
}

var snapshotShowCmd = &cobra.Command{
	Use:   "show [model] [identifier]",
	Short: "Print a memory snapshot",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := snapshotManager(cmd)
		if err != nil {
			return err
		}
		state, err := m.Read(args[0], args[1])
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(state, "", "    ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var snapshotListCmd = &cobra.Command{
	Use:   "list [model] [pattern]",
	Short: "List memory snapshots, optionally filtered by a glob pattern",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := snapshotManager(cmd)
		if err != nil {
			return err
		}
		pattern := ""
		if len(args) == 2 {
			pattern = args[1]
		}
		ids, err := m.List(args[0], pattern)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "(no snapshots)")
			return nil
		}
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

func snapshotManager(cmd *cobra.Command) (*snapshot.Manager, error) {
	s, err := openStore()
	if err != nil {
		return nil, err
	}
	defer s.Close()
	dir := resultsDirFor(s, resultsDir, cmd.Flags().Changed("results-dir"))
	return snapshot.NewManager(dir), nil
}

func init() {
	RootCmd.AddCommand(snapshotCmd)
	snapshotCmd.AddCommand(snapshotShowCmd)
	snapshotCmd.AddCommand(snapshotListCmd)
}

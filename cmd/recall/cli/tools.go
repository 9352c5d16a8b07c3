package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/recall/internal/runtime"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Print the memory tool schemas offered to models",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(runtime.MemoryToolRegistry().Functions())
	},
}

func init() {
	RootCmd.AddCommand(toolsCmd)
}

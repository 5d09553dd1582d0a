// -- cmd/list.go --
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/checkride/internal/suite"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the registered test unit ids.",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := suite.NewRegistry()
		suite.RegisterExampleUnits(registry, "")
		for _, id := range registry.IDs() {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}

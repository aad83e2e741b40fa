package cli

import (
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check <instrument>",
	Short: "Fetch one instrument or FROM-TO pair immediately",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Check(cmd.Context(), args[0])
	},
}

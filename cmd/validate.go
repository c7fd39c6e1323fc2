package cmd

import (
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and print it resolved.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := loadConfig()
			if err != nil {
				return err
			}

			if err := c.Validate(); err != nil {
				return err
			}

			return c.Dump(cmd.OutOrStdout())
		},
	}
}

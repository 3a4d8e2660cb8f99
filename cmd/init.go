package cmd

import (
	"github.com/spf13/cobra"

	"github.com/campusrag/advisor/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize advisor configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure the course assistant and generates a .advisor.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}

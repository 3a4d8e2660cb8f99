package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "advisor",
	Short: "Course recommendation assistant for a university catalog",
	Long: `Advisor answers natural-language questions about a university course
catalog. It filters courses by structured criteria, retrieves the most
relevant course descriptions with embedding search, and asks an LLM to
recommend courses grounded in that context.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".advisor.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

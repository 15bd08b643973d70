// Package commands implements the filesaga CLI.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"

	// Global flags.
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "filesaga",
	Short: "Create user files across DynamoDB and S3",
	Long: `filesaga creates user files whose permission record lives in DynamoDB
and whose content lives in S3 or any S3-compatible store. Both are created
together or not at all.

The permission table and the bucket are read from TABLE_NAME and BUCKET_NAME
(or FILESAGA_TABLE_NAME and FILESAGA_BUCKET_NAME), or from the config file.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(createCmd)
}

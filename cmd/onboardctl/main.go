// Command onboardctl runs and operates the goOnboard host.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/goOnboard/internal/config"
)

var rootCmd = &cobra.Command{
	Use:           "onboardctl",
	Short:         "Run and operate the goOnboard host",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "YAML config file (default ./onboard.yaml when present)")
	rootCmd.PersistentFlags().StringSlice("env-file", []string{".env"}, "dotenv files read below the process environment")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(reportCmd)
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	envFiles, _ := cmd.Flags().GetStringSlice("env-file")
	return config.Load(path, envFiles...)
}

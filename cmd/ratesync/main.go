package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version indicates the current version of the application.
var Version = "1.0.0"

func main() {
	rootCmd := &cobra.Command{
		Use:     "ratesync",
		Short:   "Operator tool for the stored exchange rates",
		Version: Version,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "./config/local.yml", "path to the config file")

	rootCmd.AddCommand(refreshCmd())
	rootCmd.AddCommand(showCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

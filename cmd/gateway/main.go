package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagPort    string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:           "gateway",
	Short:         "Deck image acquisition service",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&flagPort, "port", "", "listen address, overrides PORT")
	rootCmd.AddCommand(serveCmd, fetchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

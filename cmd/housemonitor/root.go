// Package main implements the housemonitor CLI: serve runs the controller,
// validate-config load-and-validates a server config without starting
// anything, version prints build metadata.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "housemonitor",
	Short: "A status-tree home automation controller",
	Long: `housemonitor watches a tree of device and sensor status, runs rules
against it (intervals, daily clocks, sunrise/sunset, or value watches), and
dispatches actions back into the tree or out to the network.

Configuration lives in a single server.json (see --config), which names the
deployment profile, the audit log and fetch cache backends, and the set of
adapters that mount external state (files, web-updatable regions) into the
tree.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context(), configPath)
	},
}

var configPath string

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "./config/server.json", "path to server.json")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateConfigCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("housemonitor %s (commit %s, built %s)\n", buildVersion, buildCommit, buildDate)
	},
}

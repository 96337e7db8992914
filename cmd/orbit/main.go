// Command orbit is the scheduling core's process entrypoint: it wires
// the cluster's raft-replicated store, the Group/App Repository, the
// Instance Tracker, the Health Check Manager, Scheduler Actions, the
// Deployment Manager, and the Scheduler Actor into one running process,
// then exposes them through the facade gRPC service and a Prometheus
// metrics endpoint.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/orbitsched/orbit/pkg/log"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "orbit",
	Short: "Orbit is the scheduling core of a two-level container orchestrator",
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(applyCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})
}

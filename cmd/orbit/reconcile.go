package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/orbitsched/orbit/pkg/facade"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Trigger an out-of-band reconcile pass against a running orbit serve instance",
	RunE:  runReconcile,
}

func init() {
	reconcileCmd.Flags().String("facade-addr", "127.0.0.1:8090", "Address of the facade gRPC command service to dial")
	reconcileCmd.Flags().Duration("timeout", 30*time.Second, "How long to wait for the reconcile call to complete")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	facadeAddr, _ := cmd.Flags().GetString("facade-addr")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	client, closeConn, err := facade.Dial(facadeAddr)
	if err != nil {
		return fmt.Errorf("orbit: dial %s: %w", facadeAddr, err)
	}
	defer closeConn()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resp, err := client.ReconcileTasks(ctx, &facade.ReconcileTasksRequest{})
	if err != nil {
		return fmt.Errorf("orbit: reconcile: %w", err)
	}
	if resp.Error != "" {
		return fmt.Errorf("orbit: reconcile failed: %s", resp.Error)
	}

	cmd.Println("reconcile triggered")
	return nil
}

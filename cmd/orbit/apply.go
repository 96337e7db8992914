package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/orbitsched/orbit/pkg/facade"
	"github.com/orbitsched/orbit/pkg/types"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a RunSpec manifest as a single-step deployment plan",
	Long: `Apply reads a YAML RunSpec manifest and submits it to a running
orbit serve instance as a one-step deployment plan.

Example:
  orbit apply -f web.yaml`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "YAML manifest to apply (required)")
	applyCmd.Flags().String("facade-addr", "127.0.0.1:8090", "Address of the facade gRPC command service to dial")
	applyCmd.Flags().Bool("force", false, "Cancel any conflicting deployment in progress")
	_ = applyCmd.MarkFlagRequired("file")
}

// manifest is the YAML shape an operator hand-writes for a single app.
// Its fields carry types.RunSpec's names and types, but it has no
// Upgrade, Dependencies or VersionInfo fields: toRunSpec always sets
// the default upgrade strategy.
type manifest struct {
	ID           string                 `yaml:"id"`
	Cmd          string                 `yaml:"cmd"`
	Args         []string               `yaml:"args,omitempty"`
	Resources    types.Resources        `yaml:"resources"`
	Instances    int                    `yaml:"instances"`
	IPAddress    bool                   `yaml:"ipAddress,omitempty"`
	Ports        []types.PortDefinition `yaml:"ports,omitempty"`
	HealthChecks []types.HealthCheckSpec `yaml:"healthChecks,omitempty"`
	Resident     bool                   `yaml:"resident,omitempty"`
	Volumes      []string               `yaml:"volumes,omitempty"`
	Secrets      []string               `yaml:"secrets,omitempty"`
}

func (m manifest) toRunSpec() types.RunSpec {
	return types.RunSpec{
		ID:           types.PathId(m.ID),
		Cmd:          m.Cmd,
		Args:         m.Args,
		Resources:    m.Resources,
		Instances:    m.Instances,
		IPAddress:    m.IPAddress,
		Ports:        m.Ports,
		HealthChecks: m.HealthChecks,
		Upgrade:      types.DefaultUpgradeStrategy(),
		Resident:     m.Resident,
		Volumes:      m.Volumes,
		Secrets:      m.Secrets,
	}
}

func runApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")
	facadeAddr, _ := cmd.Flags().GetString("facade-addr")
	force, _ := cmd.Flags().GetBool("force")

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("orbit: read %s: %w", filename, err)
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("orbit: parse %s: %w", filename, err)
	}
	runSpec := m.toRunSpec()
	if err := runSpec.Validate(nil); err != nil {
		return fmt.Errorf("orbit: invalid run spec: %w", err)
	}

	now := types.Version(time.Now())
	target := types.Group{
		ID:      "/",
		Apps:    map[types.PathId]types.RunSpec{runSpec.ID: runSpec},
		Version: now,
	}
	plan := types.DeploymentPlan{
		ID:      fmt.Sprintf("apply-%s-%d", runSpec.ID, time.Now().UnixNano()),
		Target:  target,
		Steps:   []types.DeploymentStep{{Actions: []types.DeploymentAction{{Kind: types.StepStartApp, RunSpecID: runSpec.ID}}}},
		Created: now,
	}
	planJSON, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("orbit: encode plan: %w", err)
	}

	client, closeConn, err := facade.Dial(facadeAddr)
	if err != nil {
		return fmt.Errorf("orbit: dial %s: %w", facadeAddr, err)
	}
	defer closeConn()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := client.Deploy(ctx, &facade.DeployRequest{PlanJson: planJSON, Force: force})
	if err != nil {
		return fmt.Errorf("orbit: deploy: %w", err)
	}
	if resp.Error != "" {
		return fmt.Errorf("orbit: deploy rejected: %s", resp.Error)
	}

	cmd.Printf("deployment %s started for %s\n", resp.PlanId, runSpec.ID)
	return nil
}

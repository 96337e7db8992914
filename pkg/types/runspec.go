package types

import (
	"fmt"

	"github.com/orbitsched/orbit/pkg/orberr"
)

// Resources describes the compute footprint of a single instance.
type Resources struct {
	CPU    float64
	MemMB  int64
	DiskMB int64
	GPUs   int
}

// PortDefinition declares one network-facing port a run spec exposes.
type PortDefinition struct {
	Name     string
	Port     int
	Protocol string // "tcp" or "udp"
}

// UpgradeStrategyKind names how the Deployment Manager walks old-to-new
// instances of a run spec during a deployment step.
type UpgradeStrategyKind string

const (
	UpgradeRolling  UpgradeStrategyKind = "rolling"
	UpgradeAllAtOnce UpgradeStrategyKind = "all-at-once"
)

// UpgradeStrategy parameterizes a rolling deployment: at most maxOverCapacity
// extra instances may run during the upgrade, and at least minHealthCapacity
// fraction of the target count must stay healthy throughout.
type UpgradeStrategy struct {
	Kind              UpgradeStrategyKind
	MaxOverCapacity   float64
	MinHealthCapacity float64
}

// DefaultUpgradeStrategy matches Marathon's historical default of a single
// instance of slack in either direction.
func DefaultUpgradeStrategy() UpgradeStrategy {
	return UpgradeStrategy{Kind: UpgradeRolling, MaxOverCapacity: 1.0, MinHealthCapacity: 1.0}
}

// HealthCheckSpec is the declarative health check a RunSpec carries; the
// Health Check Manager instantiates one live check per (appId, version)
// from this definition.
type HealthCheckSpec struct {
	Protocol           string // "http", "tcp", "command"
	Path               string
	PortIndex          int
	IntervalSeconds    int
	TimeoutSeconds     int
	GracePeriodSeconds int
	MaxConsecutiveFail int
}

// RunSpec (AppDefinition) is the declarative description of a long-running
// application: its id, command, resources, desired instance count, ports,
// health checks, upgrade strategy, dependencies, residency, and secrets.
type RunSpec struct {
	ID           PathId
	Cmd          string
	Args         []string
	Resources    Resources
	Instances    int
	IPAddress    bool // true if this run spec uses a per-instance IP address
	Ports        []PortDefinition
	HealthChecks []HealthCheckSpec
	Upgrade      UpgradeStrategy
	Dependencies []PathId
	Resident     bool
	Volumes      []string // persistent volume names, non-empty IFF Resident
	Secrets      []string
	VersionInfo  VersionInfo
}

// Validate enforces the RunSpec invariants: ip-address XOR
// port-definitions, residency IFF persistent volumes, single-instance
// cap, and resident-update immutability of resources/volumes against a
// prior version (pass nil for a brand new run spec).
func (r RunSpec) Validate(prior *RunSpec) error {
	if r.IPAddress == (len(r.Ports) > 0) {
		return &orberr.ValidationFailure{
			Entity: string(r.ID),
			Reason: "exactly one of ipAddress or portDefinitions must be set",
		}
	}
	if r.Resident != (len(r.Volumes) > 0) {
		return &orberr.ValidationFailure{
			Entity: string(r.ID),
			Reason: "residency must be set iff persistent volumes are non-empty",
		}
	}
	if r.singleInstance() && r.Instances > 1 {
		return &orberr.ValidationFailure{
			Entity: string(r.ID),
			Reason: "single-instance run spec may not request more than one instance",
		}
	}
	if r.Resident && prior != nil {
		if !resourcesEqual(r.Resources, prior.Resources) {
			return &orberr.ValidationFailure{
				Entity: string(r.ID),
				Reason: "resident run specs may not change resources on update",
			}
		}
		if !stringsEqual(r.Volumes, prior.Volumes) {
			return &orberr.ValidationFailure{
				Entity: string(r.ID),
				Reason: "resident run specs may not change volumes on update",
			}
		}
	}
	return nil
}

// singleInstance reports whether this run spec is constrained to at most
// one concurrent instance (residency implies this, since a reserved slot
// is unique).
func (r RunSpec) singleInstance() bool {
	return r.Resident
}

func resourcesEqual(a, b Resources) bool {
	return a.CPU == b.CPU && a.MemMB == b.MemMB && a.DiskMB == b.DiskMB && a.GPUs == b.GPUs
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, s := range a {
		seen[s] = true
	}
	for _, s := range b {
		if !seen[s] {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer for logging.
func (r RunSpec) String() string {
	return fmt.Sprintf("RunSpec{%s instances=%d version=%s}", r.ID, r.Instances, r.VersionInfo.Version)
}

package types

// DeploymentStepKind names one app-level action a deployment step applies.
type DeploymentStepKind string

const (
	StepStartApp   DeploymentStepKind = "StartApp"
	StepStopApp    DeploymentStepKind = "StopApp"
	StepScaleApp   DeploymentStepKind = "ScaleApp"
	StepRestartApp DeploymentStepKind = "RestartApp"
)

// DeploymentAction is one app-scoped action within a deployment step.
type DeploymentAction struct {
	Kind      DeploymentStepKind
	RunSpecID PathId
}

// DeploymentStep is a set of actions that run together; the Deployment
// Manager must finish (and health-gate) every action in a step before
// advancing to the next.
type DeploymentStep struct {
	Actions []DeploymentAction
}

// DeploymentPlan is an ordered list of steps transforming the Original
// group into the Target group.
type DeploymentPlan struct {
	ID       string
	Original Group
	Target   Group
	Steps    []DeploymentStep
	Created  Version
}

// AffectedRunSpecIds is the symmetric difference of the app ids in
// Original and Target, union the ids of apps present in both but whose
// RunSpec changed ("symmetric-diff(origApps, targetApps) ∪
// configChangedApps").
func (p DeploymentPlan) AffectedRunSpecIds() []PathId {
	orig := p.Original.AllAppIdSet()
	target := p.Target.AllAppIdSet()

	affected := make(map[PathId]bool)
	for id := range orig {
		if !target[id] {
			affected[id] = true
		}
	}
	for id := range target {
		if !orig[id] {
			affected[id] = true
		}
	}
	for id, targetApp := range p.Target.flatApps() {
		if origApp, ok := p.Original.flatApps()[id]; ok {
			if origApp.VersionInfo.Version != targetApp.VersionInfo.Version {
				affected[id] = true
			}
		}
	}

	ids := make([]PathId, 0, len(affected))
	for id := range affected {
		ids = append(ids, id)
	}
	return ids
}

// AllAppIdSet is AllAppIds as a set, for symmetric-difference computation.
func (g Group) AllAppIdSet() map[PathId]bool {
	set := make(map[PathId]bool)
	for _, id := range g.AllAppIds() {
		set[id] = true
	}
	return set
}

func (g Group) flatApps() map[PathId]RunSpec {
	flat := make(map[PathId]RunSpec)
	for id, app := range g.Apps {
		flat[id] = app
	}
	for _, sub := range g.Groups {
		for id, app := range sub.flatApps() {
			flat[id] = app
		}
	}
	return flat
}

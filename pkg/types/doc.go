/*
Package types defines the scheduling core's data model: app and group
definitions and their versions, instances and their tasks, deployment
plans, and the launch queue's per-app snapshot.

# Core Types

Identity and versioning:
  - PathId: an absolute, slash-separated app or group id; Canonical
    resolves a path against a base id
  - Version: a timestamp stamping stored run specs, groups and plans;
    its String form is RFC 3339 with nanoseconds
  - VersionInfo: a run spec's Version together with the times of its last
    scaling change and last config change; OnlyVersion sets all three to
    one value

Apps and groups:
  - RunSpec: one app's definition (command, resources, instance count,
    ports, health checks, upgrade strategy and more)
  - Resources, PortDefinition, HealthCheckSpec, UpgradeStrategy: parts of
    a RunSpec; DefaultUpgradeStrategy returns the default strategy
  - Group: a node of the app tree holding apps, nested groups and
    dependencies
  - StoredGroup: the persisted shape of a Group, which refers to its apps
    by (id, version) instead of embedding them

Instances:
  - Instance: one launched copy of a RunSpec, identified by an InstanceId
    and made of Tasks keyed by TaskId, with an InstanceState aggregated
    from them
  - InstanceStatus: the status of a task or an instance. An instance whose
    tasks all share one status takes that status; when they disagree, the
    first status of a fixed priority order present among them wins; an
    instance with no tasks is Unknown.

Deployments:
  - DeploymentPlan: an ordered list of DeploymentSteps that turns an
    Original group into a Target group
  - DeploymentStep: DeploymentActions that run together; each action
    applies one DeploymentStepKind (StartApp, StopApp, ScaleApp,
    RestartApp) to one run spec

Launch queue:
  - QueuedInstanceInfo: the launch queue's snapshot of pending launches
    for one run spec

*/
package types

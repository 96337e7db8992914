// Package broker provides a containerd-backed reference implementation
// of the external broker surface Scheduler Actions depends on
// (actions.Driver, actions.LaunchQueue): a runtime that launches and
// reconciles containers, a launch queue that holds pending instance
// demand until resources free up, and a matcher loop that drains the
// queue onto the runtime.
//
// Nothing in pkg/actor or pkg/actions imports this package directly; it
// exists so cmd/orbit has a concrete driver/queue pair to wire in place
// of a test double.
package broker

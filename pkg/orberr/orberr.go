// Package orberr defines the typed error kinds of the scheduling core
// lock conflicts, validation failures, store failures, deployment
// cancellation, transient broker errors, and instance-update refusals.
// Every kind is a distinct Go type so callers can discriminate with
// errors.As instead of string-matching messages.
package orberr

import (
	"errors"
	"fmt"
)

// LockConflict is returned when withLockFor could not acquire one or more
// app locks. ConflictIDs names the plan or app ids already holding them.
type LockConflict struct {
	ConflictIDs []string
}

func (e *LockConflict) Error() string {
	return fmt.Sprintf("app locked: conflicts with %v", e.ConflictIDs)
}

// ValidationFailure wraps a RunSpec or Group validation error. It never
// triggers a deployment and is returned to the caller as-is.
type ValidationFailure struct {
	Entity string
	Reason string
}

func (e *ValidationFailure) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Entity, e.Reason)
}

// StoreFailure wraps a persistent-store error. Root writes revert on this
// error; app writes bubble it up to the caller.
type StoreFailure struct {
	Op  string
	Err error
}

func (e *StoreFailure) Error() string {
	return fmt.Sprintf("store failure during %s: %v", e.Op, e.Err)
}

func (e *StoreFailure) Unwrap() error { return e.Err }

// DeploymentCanceled distinguishes a canceled deployment from other
// failures in the error a caller receives. The stored plan is deleted on
// every outcome: a plan that failed for another reason is not kept either.
type DeploymentCanceled struct {
	PlanID string
	Cause  error
}

func (e *DeploymentCanceled) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("deployment %s canceled: %v", e.PlanID, e.Cause)
	}
	return fmt.Sprintf("deployment %s canceled", e.PlanID)
}

func (e *DeploymentCanceled) Unwrap() error { return e.Cause }

// BrokerTransient wraps a failed or disconnected driver call. No code in
// this module returns it, and a driver error does not make the core emit a
// disconnect event, stop the driver or abdicate leadership.
type BrokerTransient struct {
	Err error
}

func (e *BrokerTransient) Error() string {
	return fmt.Sprintf("broker transient error: %v", e.Err)
}

func (e *BrokerTransient) Unwrap() error { return e.Err }

// InstanceUpdateFailure is returned when the instance state machine
// refused a transition. It is logged and acknowledged to the broker with
// no state change.
type InstanceUpdateFailure struct {
	InstanceID string
	Reason     string
}

func (e *InstanceUpdateFailure) Error() string {
	return fmt.Sprintf("instance update refused for %s: %s", e.InstanceID, e.Reason)
}

// TimeoutException is returned when a forced deploy's cancellation
// timeout elapses before the conflicting deployments terminate.
type TimeoutException struct {
	PlanID string
}

func (e *TimeoutException) Error() string {
	return fmt.Sprintf("deployment %s: cancellation timed out", e.PlanID)
}

// AppLockedException names the plan or app ids already holding a lock
// that a non-forced Deploy or command conflicted with.
type AppLockedException struct {
	ConflictIDs []string
}

func (e *AppLockedException) Error() string {
	return fmt.Sprintf("app locked by: %v", e.ConflictIDs)
}

// As is a thin wrapper around errors.As for call sites that don't want to
// import "errors" just to discriminate an orberr kind.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Package events implements the in-process event bus the scheduling core
// publishes completion and lifecycle notifications: scheduler
// registration, deployment outcomes, app termination, instance changes,
// and health-check registration churn. Delivery is non-blocking and
// best-effort per subscriber, matching the broker's buffered-channel
// pub/sub shape.
package events

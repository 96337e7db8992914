// Package deploy implements the Deployment Manager: it owns the table of
// running deployment plans, walks each plan's steps in declared order,
// resolves conflicts between overlapping plans, and enforces cancellation
// within a bounded timeout.
package deploy

// Package facade is the command-input transport: a gRPC service exposing
// exactly the Scheduler Actor's command table (Deploy, ScaleApp,
// ScaleApps, KillTasks, CancelDeployment, ReconcileTasks,
// RetrieveRunningDeployments) so an operator or an outer HTTP API layer
// has one concrete, API-transport-agnostic front door to the scheduling
// core.
//
// The corpus this module was grown from ships its gRPC messages as
// protoc-generated code from a .proto file that isn't part of this
// module's retrieved reference material, so facade's messages
// (messages.go) are hand-declared structs using the same
// struct-tag-driven wire encoding protoc-gen-go would emit, marshaled
// through golang/protobuf's struct-tag reflection rather than a
// generated file-descriptor; see DESIGN.md.
package facade

// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics and debug introspection for the reactor.
//
// Provides concurrent-safe primitives:
//   - Counter telemetry for accepts, dispatches, and removals
//   - State export and probe registration for debug hooks
//
// The core packages never log; observability goes through here.
package control

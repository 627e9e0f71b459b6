// Package manager owns the process-wide gateway registry: a
// gateway-id -> connection.Connection map, debounced externally visible
// state transitions, a cross-gateway sensor-connectivity index, and
// event aggregation that re-emits every per-Connection event with its
// gatewayId attached.
package manager

// Package component defines the core interfaces for lifecycle-managed
// infrastructure in tenantgate.
//
// Components represent services that require startup, shutdown, and health
// monitoring (the HTTP server, per-tier database pools, redis). They are
// registered with a Registry which starts them in registration order and
// stops them in reverse.
//
// # Interfaces
//
//   - Component: Core lifecycle interface (Name/Start/Stop/Health)
//   - Describable: Startup summary descriptions
package component

// Package pool provides bounded per-tier database connection pools over
// database/sql.
//
// Each tenant tier owns one Pool sized to its configured pool size. WithConn
// is the unit of resource consumption: it acquires a dedicated connection
// under a timeout, runs the caller's function, and releases the connection.
// Acquisition is the only suspension point a task has, and an acquisition
// timeout surfaces as an ordinary task failure that the tier's circuit
// breaker counts.
//
// The driver is configurable; the service binary registers pgx's stdlib
// driver. Stats projects occupancy (active/idle/pending/max) for the tier
// snapshot surface, and Component adapts a Pool to the lifecycle registry.
package pool

// Package util provides small generic helpers shared across tenantgate:
// size parsing, secret masking for logs, and zero-value coalescing.
package util

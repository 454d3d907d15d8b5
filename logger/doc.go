// Package logger provides structured logging for tenantgate using zerolog.
//
// It supports JSON and console output formats, log level configuration,
// and component-scoped loggers with structured fields.
//
// # Configuration
//
//	log:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.WithComponent("isolation")
//	log.Info("breaker state changed", logger.Fields("tier", "free"))
package logger

// Package config loads and validates the tenantgate service configuration.
//
// Configuration comes from three layers, later layers overriding earlier
// ones: a config.yml file found by searching standard locations
// (./cmd/<service>/config.yml, ./config/config.yml, ./config.yml), a .env
// file loaded via godotenv, and process environment variables bound through
// Viper with nested-key variants (TENANT_JWT_SECRET binds tenant.jwt.secret).
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Load applies section defaults and validates the result, including the
// per-tier admission table. Services with nonstandard layouts can pass
// WithConfigFile or WithEnvFile to pin exact paths.
package config

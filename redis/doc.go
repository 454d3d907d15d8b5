// Package redis provides a Redis client component with connection pooling,
// lifecycle management, and health checks.
//
// tenantgate uses it as the backing store for API-key-to-tier mappings: the
// redis tenant resolver reads the tenantgate:apikeys hash through this client.
// The component is disabled unless configured.
//
// # Quick Start
//
//	cfg := redis.Config{
//	    Enabled: true,
//	    Addr:    "localhost:6379",
//	}
//	component := redis.NewComponent(cfg, log)
package redis

package server

import (
	"sort"
	"strings"
)

// System route paths registered by RegisterDefaultEndpoints.
var systemPaths = map[string]bool{
	"/health":  true,
	"/ready":   true,
	"/alive":   true,
	"/version": true,
	"/info":    true,
	"/metrics": true,
}

// LogRoutes logs all registered Gin routes, API routes first. Call this after
// all routes are registered so the startup log shows the full surface.
func (s *Server) LogRoutes() {
	routes := s.engine.Routes()

	// Sort: API routes first (by path), then system routes
	sort.Slice(routes, func(i, j int) bool {
		iSys := systemPaths[routes[i].Path]
		jSys := systemPaths[routes[j].Path]
		if iSys != jSys {
			return !iSys
		}
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return methodOrder(routes[i].Method) < methodOrder(routes[j].Method)
	})

	for _, r := range routes {
		fields := map[string]interface{}{
			"method":  r.Method,
			"path":    r.Path,
			"handler": formatHandlerName(r.Handler),
		}
		if systemPaths[r.Path] {
			fields["system"] = true
		}
		s.log.Info("Route registered", fields)
	}
}

// formatHandlerName extracts a clean handler name from Gin's full handler path.
// Gin stores handlers like:
//
//	"github.com/kbukum/tenantgate/server.(*API).Query-fm"
//
// We extract: "API.Query"
func formatHandlerName(fullPath string) string {
	// Remove -fm suffix Gin adds to method values
	name := strings.TrimSuffix(fullPath, "-fm")

	// Get the last segment after /
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}

	// Clean up Go receiver notation: "(*API).Query" -> "API.Query"
	name = strings.ReplaceAll(name, "(*", "")
	name = strings.ReplaceAll(name, ")", "")

	// Closure names like "Server.RegisterDefaultEndpoints.Health.func1" keep
	// only the meaningful part before funcN.
	if strings.Contains(name, ".func") {
		parts := strings.Split(name, ".")
		for i := len(parts) - 1; i >= 0; i-- {
			if !strings.HasPrefix(parts[i], "func") {
				name = strings.ToLower(parts[i])
				break
			}
		}
	}

	// Remove package prefix: "server.API.Query" -> "API.Query"
	parts := strings.SplitN(name, ".", 2)
	if len(parts) == 2 {
		hasUpper := false
		for _, c := range parts[0] {
			if c >= 'A' && c <= 'Z' {
				hasUpper = true
				break
			}
		}
		if !hasUpper && len(parts[1]) > 0 {
			name = parts[1]
		}
	}

	return name
}

// methodOrder returns a sort key for HTTP methods (GET first, DELETE last).
func methodOrder(method string) int {
	switch method {
	case "GET":
		return 0
	case "POST":
		return 1
	case "PUT":
		return 2
	case "PATCH":
		return 3
	case "DELETE":
		return 4
	default:
		return 5
	}
}

package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/tenantgate/errors"
	"github.com/kbukum/tenantgate/isolation"
	"github.com/kbukum/tenantgate/logger"
	"github.com/kbukum/tenantgate/tenant"
)

// tierKey is the Gin context key holding the resolved tier.
const tierKey = "tenant_tier"

// Tenant returns a Gin middleware that resolves the caller's tier from the
// request credentials. Unresolved requests are rejected with 401; resolver
// infrastructure failures with 503. The tier is available to downstream
// handlers via TierFromContext.
func Tenant(resolver tenant.Resolver, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tier, err := resolver.Resolve(c.Request.Context(), c.Request)
		if err != nil {
			var appErr *apperrors.AppError
			if errors.Is(err, tenant.ErrUnresolved) {
				appErr = apperrors.UnknownTenant()
			} else {
				appErr = apperrors.ServiceUnavailable("tenant store").WithCause(err)
			}
			log.Warn("Tenant resolution failed", map[string]interface{}{
				"error": err.Error(),
				"path":  c.Request.URL.Path,
			})
			c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
			return
		}
		c.Set(tierKey, tier)
		c.Next()
	}
}

// TierFromContext returns the tier stored by the Tenant middleware.
func TierFromContext(c *gin.Context) (isolation.Tier, bool) {
	v, ok := c.Get(tierKey)
	if !ok {
		return "", false
	}
	tier, ok := v.(isolation.Tier)
	return tier, ok
}

package handle

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	ctxPkg "github.com/yeisme/fastlink/pkg/context"
	"github.com/yeisme/fastlink/pkg/internal/types"
)

const timeout = 2 * time.Second

// requiredComponents 这些组件全部正常时 /health 才返回 200.
var requiredComponents = []string{"db", "s3", "kv"}

// Health GET /health.
//
//	@Summary	健康检查
//	@Tags		健康
//	@Produce	json
//	@Success	200	{object}	types.HealthResponse
//	@Failure	503	{object}	types.HealthResponse
//	@Router		/health [get]
func Health(c *gin.Context) {
	mgr := ctxPkg.GetManager(c.Request.Context())

	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	resp := types.HealthResponse{Status: "ok", Components: map[string]string{}}
	code := http.StatusOK

	for _, name := range requiredComponents {
		if mgr == nil {
			resp.Components[name] = "storage manager not initialized"
			resp.Status, code = "unhealthy", http.StatusServiceUnavailable

			continue
		}

		if err := mgr.Check(ctx, name); err != nil {
			resp.Components[name] = err.Error()
			resp.Status, code = "unhealthy", http.StatusServiceUnavailable

			continue
		}

		resp.Components[name] = "ok"
	}

	c.JSON(code, resp)
}

// HealthComponent GET /health/:component.
func HealthComponent(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		mgr := ctxPkg.GetManager(c.Request.Context())
		if mgr == nil {
			c.JSON(http.StatusServiceUnavailable, types.ComponentHealth{Component: name, Status: "unhealthy", Error: "storage manager not initialized"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		if err := mgr.Check(ctx, name); err != nil {
			c.JSON(http.StatusServiceUnavailable, types.ComponentHealth{Component: name, Status: "unhealthy", Error: err.Error()})
			return
		}

		c.JSON(http.StatusOK, types.ComponentHealth{Component: name, Status: "ok"})
	}
}

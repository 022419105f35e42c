package handler // declare the package name; contains HTTP handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// HealthHandler reports liveness and the state of the two stores the
// booking flow cannot run without.  Load balancers poll the plain
// endpoint; the deep variant pings MySQL and Redis so orchestration can
// tell a wedged dependency from a dead process.
type HealthHandler struct {
	DB  *sql.DB
	RDB *redis.Client
}

// NewHealthHandler constructs a HealthHandler.
func NewHealthHandler(db *sql.DB, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{DB: db, RDB: rdb}
}

// Live handles GET /healthz and only proves the process is serving.
func (h *HealthHandler) Live(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Ready handles GET /readyz: both stores must answer a ping within a
// short deadline, otherwise 503 is returned with the failing component
// named so dashboards show what broke.
func (h *HealthHandler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := echo.Map{"database": "ok", "redis": "ok"}
	healthy := true
	if h.DB != nil {
		if err := h.DB.PingContext(ctx); err != nil {
			status["database"] = err.Error()
			healthy = false
		}
	}
	if h.RDB != nil {
		if err := h.RDB.Ping(ctx).Err(); err != nil {
			status["redis"] = err.Error()
			healthy = false
		}
	}
	if !healthy {
		return c.JSON(http.StatusServiceUnavailable, status)
	}
	return c.JSON(http.StatusOK, status)
}

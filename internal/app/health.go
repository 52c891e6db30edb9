package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/shandysiswandi/gomfa/internal/pkg/goerror"
	"github.com/shandysiswandi/gomfa/internal/pkg/router"
)

type healthResponse struct {
	Database string `json:"database"`
	Redis    string `json:"redis"`
}

func (healthResponse) Message() string { return "service is healthy" }

// health pings Postgres and Redis; either failing answers 503.
func (a *App) health(r *router.Request) (any, error) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Database: "up", Redis: "up"}
	healthy := true

	if err := a.dbConn.Ping(ctx); err != nil {
		slog.WarnContext(ctx, "health: database ping failed", "error", err)
		resp.Database = "down"
		healthy = false
	}
	if err := a.cacheConn.Ping(ctx).Err(); err != nil {
		slog.WarnContext(ctx, "health: redis ping failed", "error", err)
		resp.Redis = "down"
		healthy = false
	}

	if !healthy {
		return nil, goerror.NewRejected("UNAVAILABLE", "service is unhealthy", goerror.CodeUnavailable)
	}

	return resp, nil
}

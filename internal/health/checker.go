package health

import (
	"context"
	"time"

	"github.com/truxe-io/heimdall/internal/cache"
	"github.com/truxe-io/heimdall/internal/database"
)

type Status struct {
	Status    string           `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Checks    map[string]Check `json:"checks,omitempty"`
}

type Check struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Checker probes the server's dependencies.
type Checker struct {
	DB    *database.Database
	Cache *cache.Service
}

func NewChecker(db *database.Database, cacheService *cache.Service) *Checker {
	return &Checker{DB: db, Cache: cacheService}
}

// CheckLiveness only confirms the process is serving.
func (c *Checker) CheckLiveness(ctx context.Context) Status {
	return Status{Status: "healthy", Timestamp: time.Now().UTC()}
}

// CheckReadiness probes the database and cache. A cache failure degrades
// but does not fail readiness; the server works without it.
func (c *Checker) CheckReadiness(ctx context.Context) Status {
	status := Status{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]Check),
	}

	if err := c.DB.Ping(ctx); err != nil {
		status.Status = "unhealthy"
		status.Checks["database"] = Check{Status: "unhealthy", Error: err.Error()}
	} else {
		status.Checks["database"] = Check{Status: "healthy"}
	}

	if err := c.Cache.Ping(ctx); err != nil {
		if status.Status == "healthy" {
			status.Status = "degraded"
		}
		status.Checks["cache"] = Check{Status: "unhealthy", Error: err.Error()}
	} else {
		status.Checks["cache"] = Check{Status: "healthy"}
	}

	return status
}

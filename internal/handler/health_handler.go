package handler

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/examprint/internal/config"
	"github.com/stemsi/examprint/internal/response"
)

const healthTimeout = 2 * time.Second

// HealthHandler reports whether the server and its backing stores respond.
type HealthHandler struct {
	pool      *pgxpool.Pool
	rdb       *redis.Client
	startTime time.Time
	log       zerolog.Logger
}

func NewHealthHandler(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *HealthHandler {
	return &HealthHandler{
		pool:      pool,
		rdb:       rdb,
		startTime: time.Now(),
		log:       log.With().Str("component", "health_handler").Logger(),
	}
}

type healthReport struct {
	Status       string `json:"status"`
	Uptime       string `json:"uptime"`
	Postgres     string `json:"postgres"`
	Redis        string `json:"redis"`
	RescoreQueue int64  `json:"rescore_queue"`
	Goroutines   int    `json:"goroutines"`
	GoVersion    string `json:"go_version"`
}

// Health godoc
// GET /health
// Answers 503 when either store is unreachable.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	report := healthReport{
		Status:     "ok",
		Uptime:     formatDuration(time.Since(h.startTime)),
		Postgres:   "ok",
		Redis:      "ok",
		Goroutines: runtime.NumGoroutine(),
		GoVersion:  runtime.Version(),
	}

	if err := h.pool.Ping(ctx); err != nil {
		h.log.Warn().Err(err).Msg("PostgreSQL health check failed")
		report.Postgres = "unreachable"
		report.Status = "degraded"
	}
	queued, err := h.rdb.LLen(ctx, config.WorkerKey.RescorePrintsQueue).Result()
	if err != nil {
		h.log.Warn().Err(err).Msg("Redis health check failed")
		report.Redis = "unreachable"
		report.Status = "degraded"
	}
	report.RescoreQueue = queued

	status := http.StatusOK
	if report.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	response.Success(c, status, report)
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}

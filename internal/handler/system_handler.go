package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/simulado/internal/config"
	"github.com/stemsi/simulado/internal/response"
)

const metricsInterval = 7 * time.Second

// redisProbe is the slice of the Redis client the system endpoints read.
type redisProbe interface {
	Ping(ctx context.Context) *redis.StatusCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
}

// ActiveCounter reports how many simulados are open in this runner.
type ActiveCounter interface {
	Active() int
}

// SystemHandler exposes health and runtime metrics for operators.
type SystemHandler struct {
	rdb       redisProbe
	sessions  ActiveCounter
	startTime time.Time
	log       zerolog.Logger
}

func NewSystemHandler(rdb redisProbe, sessions ActiveCounter, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		rdb:       rdb,
		sessions:  sessions,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

type healthStatus struct {
	Status        string `json:"status"`
	Redis         string `json:"redis"`
	OpenSimulados int    `json:"open_simulados"`
	Uptime        string `json:"uptime"`
}

// Health godoc
// GET /health
// Reports 503 when Redis is unreachable; the runner still serves simulados
// then, but timers no longer resume and failed saves are not retried.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := healthStatus{
		Status:        "ok",
		Redis:         "ok",
		OpenSimulados: h.sessions.Active(),
		Uptime:        formatDuration(time.Since(h.startTime)),
	}
	if err := h.rdb.Ping(ctx).Err(); err != nil {
		h.log.Warn().Err(err).Msg("Health check: redis unreachable")
		status.Status, status.Redis = "degraded", "unreachable"
		response.Success(c, http.StatusServiceUnavailable, status)
		return
	}
	response.Success(c, http.StatusOK, status)
}

type systemMetrics struct {
	Timestamp int64  `json:"timestamp"`
	Uptime    string `json:"uptime"`

	Goroutines int    `json:"goroutines"`
	HeapAlloc  uint64 `json:"heap_alloc"`
	HeapSys    uint64 `json:"heap_sys"`
	StackInuse uint64 `json:"stack_inuse"`
	NumGC      uint32 `json:"num_gc"`
	GoVersion  string `json:"go_version"`
	NumCPU     int    `json:"num_cpu"`

	OpenSimulados    int   `json:"open_simulados"`
	QueueFailedSaves int64 `json:"queue_failed_saves"`
}

// SystemMetricsSSE godoc
// GET /api/v1/system/metrics
// Streams runtime metrics as server-sent events until the client leaves.
func (h *SystemHandler) SystemMetricsSSE(c *gin.Context) {
	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()

	h.writeMetrics(c)
	for {
		select {
		case <-reqCtx.Done():
			h.log.Debug().Msg("Metrics client disconnected")
			return
		case <-ticker.C:
			h.writeMetrics(c)
		}
	}
}

func (h *SystemHandler) writeMetrics(c *gin.Context) {
	data, err := json.Marshal(h.collect(c.Request.Context()))
	if err != nil {
		return
	}
	c.Writer.Write([]byte("data: "))
	c.Writer.Write(data)
	c.Writer.Write([]byte("\n\n"))
	c.Writer.Flush()
}

func (h *SystemHandler) collect(ctx context.Context) systemMetrics {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	m := systemMetrics{
		Timestamp:     time.Now().UnixMilli(),
		Uptime:        formatDuration(time.Since(h.startTime)),
		Goroutines:    runtime.NumGoroutine(),
		HeapAlloc:     mem.HeapAlloc,
		HeapSys:       mem.HeapSys,
		StackInuse:    mem.StackInuse,
		NumGC:         mem.NumGC,
		GoVersion:     runtime.Version(),
		NumCPU:        runtime.NumCPU(),
		OpenSimulados: h.sessions.Active(),
	}
	// A missing queue length only blanks one gauge.
	m.QueueFailedSaves, _ = h.rdb.LLen(ctx, config.WorkerKey.FailedAnswerSavesQueue).Result()
	return m
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}

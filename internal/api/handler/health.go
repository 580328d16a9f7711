package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

var startTime = time.Now()

// ReadinessChecker reports whether a dependency can serve requests.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	checker ReadinessChecker
	logger  *slog.Logger
}

// NewHealthHandler creates a new health handler. checker may be nil.
func NewHealthHandler(checker ReadinessChecker, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		checker: checker,
		logger:  logger,
	}
}

// HealthResponse is the JSON response for health checks.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Error     string `json:"error,omitempty"`
}

// Live handles GET /health - liveness probe.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready - readiness probe.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if h.checker != nil {
		if err := h.checker.Ready(ctx); err != nil {
			h.logger.Warn("readiness check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
				Status:    "error",
				Timestamp: time.Now().UTC().Format(time.RFC3339),
				Error:     err.Error(),
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// SystemStats contains system resource statistics.
type SystemStats struct {
	Uptime         int64   `json:"uptime_seconds"`
	UptimeHuman    string  `json:"uptime_human"`
	MemAllocMB     int64   `json:"mem_alloc_mb"`
	MemSysMB       int64   `json:"mem_sys_mb"`
	MemHeapMB      int64   `json:"mem_heap_mb"`
	NumGoroutines  int     `json:"num_goroutines"`
	NumCPU         int     `json:"num_cpu"`
	CPUUsedPct     float64 `json:"cpu_used_pct"`
	HostMemTotalMB int64   `json:"host_mem_total_mb"`
	HostMemUsedPct float64 `json:"host_mem_used_pct"`
	ChildProcesses int     `json:"child_processes"`
}

// Stats handles GET /api/v1/stats - system statistics.
func (h *HealthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(startTime)

	stats := SystemStats{
		Uptime:        int64(uptime.Seconds()),
		UptimeHuman:   formatUptime(uptime),
		MemAllocMB:    int64(m.Alloc / 1024 / 1024),
		MemSysMB:      int64(m.Sys / 1024 / 1024),
		MemHeapMB:     int64(m.HeapAlloc / 1024 / 1024),
		NumGoroutines: runtime.NumGoroutine(),
		NumCPU:        runtime.NumCPU(),
	}

	ctx := r.Context()
	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		stats.CPUUsedPct = pct[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats.HostMemTotalMB = int64(vm.Total / 1024 / 1024)
		stats.HostMemUsedPct = vm.UsedPercent
	}

	// Extractor subprocesses (yt-dlp, Chrome) show up here while running.
	if proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if children, err := proc.ChildrenWithContext(ctx); err == nil {
			stats.ChildProcesses = len(children)
		}
	}

	writeJSON(w, http.StatusOK, stats)
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}

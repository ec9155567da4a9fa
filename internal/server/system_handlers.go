package server

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/mkarlis/rebalancer/internal/database"
	"github.com/mkarlis/rebalancer/internal/scheduler"
)

// SystemHandlers serves system monitoring endpoints.
type SystemHandlers struct {
	log       zerolog.Logger
	historyDB *database.DB
	cacheDB   *database.DB
	sched     *scheduler.Scheduler
	startedAt time.Time
}

// NewSystemHandlers creates the system monitoring handlers. sched may be nil
// when no background jobs are scheduled.
func NewSystemHandlers(log zerolog.Logger, historyDB, cacheDB *database.DB, sched *scheduler.Scheduler) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("component", "system_handlers").Logger(),
		historyDB: historyDB,
		cacheDB:   cacheDB,
		sched:     sched,
		startedAt: time.Now(),
	}
}

type databaseStatus struct {
	Name      string `json:"name"`
	Healthy   bool   `json:"healthy"`
	SizeBytes int64  `json:"size_bytes"`
	WALBytes  int64  `json:"wal_bytes"`
}

// HandleStatus reports process and database health.
func (h *SystemHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil || len(cpuPercent) == 0 {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memUsedPercent := 0.0
	if memStat, err := mem.VirtualMemory(); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
	} else {
		memUsedPercent = memStat.UsedPercent
	}

	status := map[string]interface{}{
		"uptime_seconds":   int64(time.Since(h.startedAt).Seconds()),
		"goroutines":       runtime.NumGoroutine(),
		"cpu_percent":      cpuPercent[0],
		"mem_used_percent": memUsedPercent,
		"databases": []databaseStatus{
			h.databaseStatus(h.historyDB),
			h.databaseStatus(h.cacheDB),
		},
	}
	if h.sched != nil {
		status["jobs"] = h.sched.Status()
	}

	writeJSON(h.log, w, http.StatusOK, status)
}

func (h *SystemHandlers) databaseStatus(db *database.DB) databaseStatus {
	status := databaseStatus{Name: db.Name()}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := db.HealthCheck(ctx); err != nil {
		h.log.Warn().Err(err).Str("database", db.Name()).Msg("Database health check failed")
		return status
	}
	status.Healthy = true

	if stats, err := db.GetStats(); err == nil {
		status.SizeBytes = stats.SizeBytes
		status.WALBytes = stats.WALSizeBytes
	}

	return status
}

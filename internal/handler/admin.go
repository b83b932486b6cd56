package handler

import (
	"net/http"
	"runtime"
	"time"

	"halaqa-points-api/internal/cache"
	"halaqa-points-api/internal/logger"
	"halaqa-points-api/internal/repository"
	"halaqa-points-api/internal/service"
	"halaqa-points-api/internal/store"
	"halaqa-points-api/pkg/apierror"
	"halaqa-points-api/pkg/response"
)

// AdminHandler handles admin-related HTTP requests.
type AdminHandler struct {
	ledgerRepo repository.LedgerRepository
	feed       *store.Feed
	cache      cache.Cache
	repair     *service.RepairScheduler
	dbType     string
	startTime  time.Time
}

// NewAdminHandler creates a new admin handler. cache and repair may be nil.
func NewAdminHandler(
	ledgerRepo repository.LedgerRepository,
	feed *store.Feed,
	c cache.Cache,
	repair *service.RepairScheduler,
	dbType string,
) *AdminHandler {
	return &AdminHandler{
		ledgerRepo: ledgerRepo,
		feed:       feed,
		cache:      c,
		repair:     repair,
		dbType:     dbType,
		startTime:  time.Now(),
	}
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := make(map[string]interface{})

	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["db_type"] = h.dbType

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":      float64(memStats.Alloc) / 1024 / 1024,
		"sys_mb":        float64(memStats.Sys) / 1024 / 1024,
		"heap_inuse_mb": float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":        memStats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	ledgerStats, err := h.ledgerRepo.GetStats(ctx)
	if err == nil {
		ledgerStats["status"] = "connected"
		stats["ledger"] = ledgerStats
	} else {
		stats["ledger"] = map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		}
	}

	if h.feed != nil {
		stats["subscriptions"] = h.feed.Len()
	}
	if h.cache != nil {
		stats["cache"] = h.cache.Stats(ctx)
	} else {
		stats["cache"] = map[string]interface{}{"status": "not_configured"}
	}

	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}

// RunRepair handles POST /api/v1/admin/repair
func (h *AdminHandler) RunRepair(w http.ResponseWriter, r *http.Request) {
	if h.repair == nil {
		writeServiceError(w, r, service.ErrTransientStoreFailure)
		return
	}
	report, err := h.repair.RunNow(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.OK(w, report)
}

// ClearCache handles POST /api/v1/admin/cache/clear
func (h *AdminHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		response.Error(w, apierror.BadRequest("Cache is not configured"))
		return
	}
	if err := h.cache.Clear(r.Context()); err != nil {
		logger.Error("[Admin] Failed to clear cache: %v", err)
		response.Error(w, apierror.InternalError("failed to clear cache"))
		return
	}
	logger.Info("[Admin] Cache cleared")
	response.OK(w, map[string]string{"status": "cleared"})
}

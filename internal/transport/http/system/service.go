package system

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"chunks-server-go/internal/platform/logging"
	"chunks-server-go/internal/platform/observability"
	httptransport "chunks-server-go/internal/transport/http"
)

// ConnectionCounter reports live websocket connections.
type ConnectionCounter interface {
	Counts() (clients int, sessions int)
}

// StoreStats reports settings store statistics.
type StoreStats interface {
	Stats(ctx context.Context) (map[string]any, error)
}

// Service 健康检查接口
type Service struct {
	conns   ConnectionCounter
	store   StoreStats
	logger  *logging.Logger
	started time.Time
}

// NewService builds the health service. conns and store may be nil.
func NewService(conns ConnectionCounter, store StoreStats, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &Service{conns: conns, store: store, logger: logger, started: time.Now()}
}

func (s *Service) Register(_ context.Context, router *gin.RouterGroup) error {
	router.GET("/health", s.handleHealth)
	return nil
}

// handleHealth 服务健康状态
// @Summary 服务健康状态
// @Tags System
// @Produce json
// @Success 200 {object} httptransport.APIResponse
// @Router /health [get]
func (s *Service) handleHealth(c *gin.Context) {
	data := gin.H{
		"status":     "ok",
		"uptime":     time.Since(s.started).Round(time.Second).String(),
		"goroutines": runtime.NumGoroutine(),
		"memory":     s.memory(),
		"counters":   observability.Counters(),
	}

	if s.conns != nil {
		clients, sessions := s.conns.Counts()
		data["websocket"] = gin.H{"clients": clients, "sessions": sessions}
	}
	if s.store != nil {
		stats, err := s.store.Stats(c.Request.Context())
		if err != nil {
			s.logger.WarnTag("HTTP", "读取设置存储统计失败: %v", err)
			data["status"] = "degraded"
			data["settings_store"] = gin.H{"error": err.Error()}
		} else {
			data["settings_store"] = stats
		}
	}

	httptransport.RespondSuccess(c, http.StatusOK, data, "")
}

func (s *Service) memory() gin.H {
	out := gin.H{}
	if vm, err := mem.VirtualMemory(); err == nil {
		out["system_total"] = vm.Total
		out["system_used_percent"] = vm.UsedPercent
	}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if info, err := p.MemoryInfo(); err == nil {
			out["process_rss"] = info.RSS
		}
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	out["heap_alloc"] = ms.HeapAlloc
	return out
}

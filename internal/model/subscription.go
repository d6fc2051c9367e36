package model

import "time"

// MinimumWaitFloor 两次通知之间允许的最短间隔
const MinimumWaitFloor = time.Minute

// Subscription 通知订阅表 — 对应 subscriptions
//
// TokenSelector 用于定位记录，TokenVerifier 是随机值的加盐哈希，
// 两者共同构成订阅管理入口的访问令牌。
// MinimumWait 是距上次发送的最短等待时间，防止向用户刷屏，至少 1 分钟。
// 新注册的订阅为未确认、未激活状态，点击激活链接后两者同时置位
type Subscription struct {
	SubscriptionID string        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"subscription_id"`
	Email          string        `gorm:"type:varchar(254);not null;uniqueIndex"         json:"email"`
	Language       string        `gorm:"type:varchar(10);not null;default:'de'"         json:"language"`
	TokenSelector  *string       `gorm:"type:varchar(64);uniqueIndex"                   json:"-"`
	TokenVerifier  string        `gorm:"type:varchar(128);not null;default:''"          json:"-"`
	CreatedAt      time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
	LastSent       time.Time     `gorm:"not null;default:'1970-01-01 00:00:00+00'"      json:"last_sent"`
	MinimumWait    time.Duration `gorm:"type:bigint;not null"                           json:"minimum_wait"`
	Active         bool          `gorm:"not null;default:false"                         json:"active"`
	Confirmed      bool          `gorm:"not null;default:false"                         json:"confirmed"`

	// 关联
	Types []AppointmentType `gorm:"many2many:subscription_types;foreignKey:SubscriptionID;joinForeignKey:SubscriptionID;references:TypeID;joinReferences:AppointmentTypeID" json:"types,omitempty"`
}

// TableName 指定表名
func (Subscription) TableName() string { return "subscriptions" }

// Eligible 是否满足再次通知的等待条件
func (s *Subscription) Eligible(now time.Time) bool {
	return s.Active && s.LastSent.Add(s.MinimumWait).Before(now)
}

// [自证通过] internal/model/subscription.go

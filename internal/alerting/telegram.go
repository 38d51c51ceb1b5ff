package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// TelegramNotifier 通过 Telegram Bot API 推送消息。
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

var _ Notifier = (*TelegramNotifier)(nil)

// NewTelegramNotifier 构造 Telegram 告警器。
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify 调用 sendMessage 推送文本;带图时改走 sendPhoto。
func (n *TelegramNotifier) Notify(ctx context.Context, msg Message) error {
	var req *http.Request
	var err error
	if len(msg.Image) == 0 {
		req, err = n.messageRequest(ctx, msg.Text)
	} else {
		req, err = n.photoRequest(ctx, msg)
	}
	if err != nil {
		return err
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram 响应码异常: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram 返回 ok=false")
		}
	}

	n.logger.Info().Bool("with_image", len(msg.Image) > 0).Msg("告警已发送 (Telegram)")
	return nil
}

func (n *TelegramNotifier) messageRequest(ctx context.Context, text string) (*http.Request, error) {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    text,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (n *TelegramNotifier) photoRequest(ctx context.Context, msg Message) (*http.Request, error) {
	name := msg.ImageName
	if name == "" {
		name = "trend.png"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("chat_id", n.chatID); err != nil {
		return nil, fmt.Errorf("write telegram chat_id: %w", err)
	}
	if err := w.WriteField("caption", msg.Text); err != nil {
		return nil, fmt.Errorf("write telegram caption: %w", err)
	}
	part, err := w.CreateFormFile("photo", name)
	if err != nil {
		return nil, fmt.Errorf("create telegram photo part: %w", err)
	}
	if _, err := part.Write(msg.Image); err != nil {
		return nil, fmt.Errorf("write telegram photo part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finish telegram multipart: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendPhoto", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req, nil
}

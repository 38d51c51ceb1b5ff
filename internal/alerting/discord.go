package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// DiscordNotifier 通过 Webhook 推送消息,带图时走 multipart 上传。
type DiscordNotifier struct {
	webhookURL string
	client     *http.Client
	logger     zerolog.Logger
}

var _ Notifier = (*DiscordNotifier)(nil)

// NewDiscordNotifier 构造 Discord 告警器。
func NewDiscordNotifier(webhookURL string, timeout time.Duration, logger zerolog.Logger) *DiscordNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &DiscordNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "alert_discord").Logger(),
	}
}

// Notify 推送文本,若附图则以 payload_json + files[0] 形式上传。
func (n *DiscordNotifier) Notify(ctx context.Context, msg Message) error {
	var req *http.Request
	var err error
	if len(msg.Image) == 0 {
		req, err = n.textRequest(ctx, msg.Text)
	} else {
		req, err = n.imageRequest(ctx, msg)
	}
	if err != nil {
		return err
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send discord request: %w", err)
	}
	defer resp.Body.Close()

	// Webhooks answer 204 for json and 200 for multipart.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord 响应码异常: %d", resp.StatusCode)
	}

	n.logger.Info().Bool("with_image", len(msg.Image) > 0).Msg("告警已发送 (Discord)")
	return nil
}

func (n *DiscordNotifier) textRequest(ctx context.Context, text string) (*http.Request, error) {
	body, err := json.Marshal(map[string]string{"content": text})
	if err != nil {
		return nil, fmt.Errorf("marshal discord payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (n *DiscordNotifier) imageRequest(ctx context.Context, msg Message) (*http.Request, error) {
	payload, err := json.Marshal(map[string]string{"content": msg.Text})
	if err != nil {
		return nil, fmt.Errorf("marshal discord payload: %w", err)
	}

	name := msg.ImageName
	if name == "" {
		name = "trend.png"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("payload_json", string(payload)); err != nil {
		return nil, fmt.Errorf("write discord payload_json: %w", err)
	}
	part, err := w.CreateFormFile("files[0]", name)
	if err != nil {
		return nil, fmt.Errorf("create discord file part: %w", err)
	}
	if _, err := part.Write(msg.Image); err != nil {
		return nil, fmt.Errorf("write discord file part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finish discord multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, &buf)
	if err != nil {
		return nil, fmt.Errorf("create discord request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req, nil
}

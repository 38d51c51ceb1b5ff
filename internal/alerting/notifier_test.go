package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"fx-rate-alerts/internal/signal"
)

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("路径应包含 sendMessage, 实际 %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), Message{Text: "rate report"}); err != nil {
		t.Fatalf("Telegram Notify 应成功: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("chat_id 不正确: %#v", received)
	}
	if received["text"] != "rate report" {
		t.Fatalf("text 不正确: %#v", received)
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), Message{Text: "x"}); err == nil {
		t.Fatal("ok=false 应报错")
	}
}

func TestTelegramNotifierPhoto(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendPhoto") {
			t.Fatalf("带图应走 sendPhoto, 实际 %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("解析 multipart 失败: %v", err)
		}
		if got := r.FormValue("caption"); got != "with chart" {
			t.Fatalf("caption 不正确: %q", got)
		}
		file, header, err := r.FormFile("photo")
		if err != nil {
			t.Fatalf("缺少 photo 部分: %v", err)
		}
		defer file.Close()
		if header.Filename != "trend.png" {
			t.Fatalf("文件名不正确: %q", header.Filename)
		}
		data, _ := io.ReadAll(file)
		if string(data) != "png-bytes" {
			t.Fatalf("图片内容不正确: %q", data)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	msg := Message{Text: "with chart", Image: []byte("png-bytes")}
	if err := notifier.Notify(context.Background(), msg); err != nil {
		t.Fatalf("Telegram 图片推送应成功: %v", err)
	}
}

func TestDiscordNotifierText(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Fatalf("Content-Type 不正确: %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	notifier := NewDiscordNotifier(srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), Message{Text: "rate report"}); err != nil {
		t.Fatalf("Discord Notify 应成功: %v", err)
	}
	if received["content"] != "rate report" {
		t.Fatalf("content 不正确: %#v", received)
	}
}

func TestDiscordNotifierImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("解析 multipart 失败: %v", err)
		}
		var payload map[string]string
		if err := json.Unmarshal([]byte(r.FormValue("payload_json")), &payload); err != nil {
			t.Fatalf("解析 payload_json 失败: %v", err)
		}
		if payload["content"] != "with chart" {
			t.Fatalf("content 不正确: %#v", payload)
		}
		file, header, err := r.FormFile("files[0]")
		if err != nil {
			t.Fatalf("缺少 files[0] 部分: %v", err)
		}
		defer file.Close()
		if header.Filename != "usd.png" {
			t.Fatalf("文件名不正确: %q", header.Filename)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	notifier := NewDiscordNotifier(srv.URL, time.Second, testLogger())
	msg := Message{Text: "with chart", Image: []byte("png-bytes"), ImageName: "usd.png"}
	if err := notifier.Notify(context.Background(), msg); err != nil {
		t.Fatalf("Discord 图片推送应成功: %v", err)
	}
}

func TestDiscordNotifierServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	notifier := NewDiscordNotifier(srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), Message{Text: "x"}); err == nil {
		t.Fatal("非 2xx 应报错")
	}
}

type stubNotifier struct {
	err   error
	calls int
}

func (s *stubNotifier) Notify(ctx context.Context, msg Message) error {
	s.calls++
	return s.err
}

func TestMultiNotifiesAllChannels(t *testing.T) {
	ok := &stubNotifier{}
	bad := &stubNotifier{err: errors.New("boom")}

	err := Multi{bad, ok}.Notify(context.Background(), Message{Text: "x"})
	if err == nil {
		t.Fatal("失败通道应汇总为错误")
	}
	if ok.calls != 1 || bad.calls != 1 {
		t.Fatalf("所有通道都应被调用: ok=%d bad=%d", ok.calls, bad.calls)
	}
}

func TestReportRenderCollecting(t *testing.T) {
	rep := Report{
		Symbol:      "JPY(100)",
		Time:        time.Date(2026, 2, 13, 9, 0, 0, 0, time.UTC),
		Price:       1193.21,
		ShortAvg:    1190.5,
		LongAvg:     1188.2,
		Samples:     412,
		ShortWindow: 720,
		LongWindow:  1440,
		Signal:      signal.None,
		Threshold:   1.1,
	}
	text := rep.Render()
	if !strings.Contains(text, "(412/720)") {
		t.Fatalf("短窗均值应标注样本覆盖: %q", text)
	}
	if !strings.Contains(text, "(412/1440)") {
		t.Fatalf("长窗均值应标注样本覆盖: %q", text)
	}
	if !strings.Contains(text, "⏳") {
		t.Fatalf("未满窗应带收集提示: %q", text)
	}
	if !strings.Contains(text, "Signal: NONE") {
		t.Fatalf("无信号应显示 NONE: %q", text)
	}
}

func TestReportRenderSignalMarkers(t *testing.T) {
	rep := Report{
		Symbol:      "USD",
		Price:       1200,
		Samples:     1440,
		ShortWindow: 720,
		LongWindow:  1440,
		Signal:      signal.BuyLong,
		Threshold:   1.1,
	}
	text := rep.Render()
	if !strings.Contains(text, "📉 Signal: BUY_LONG") {
		t.Fatalf("买入信号应带 📉: %q", text)
	}
	if strings.Contains(text, "⏳") {
		t.Fatalf("满窗不应有收集提示: %q", text)
	}

	rep.Signal = signal.SellShort
	text = rep.Render()
	if !strings.Contains(text, "📈 Signal: SELL_SHORT") {
		t.Fatalf("卖出信号应带 📈: %q", text)
	}
}

func TestUrgentRender(t *testing.T) {
	u := Urgent{Symbol: "USD", Prev: 1200, Current: 1210, PctChange: 0.8333, UrgentPct: 0.5}
	text := u.Render()
	if !strings.Contains(text, "🚨") {
		t.Fatalf("紧急告警应带 🚨: %q", text)
	}
	if !strings.Contains(text, "+0.83%") {
		t.Fatalf("应显示单样本涨跌幅: %q", text)
	}
}

func TestFetchFailureRender(t *testing.T) {
	f := FetchFailure{Err: "eximbank status 500"}
	text := f.Render()
	if !strings.Contains(text, "⚠️") {
		t.Fatalf("拉取失败应带 ⚠️: %q", text)
	}
	if !strings.Contains(text, "eximbank status 500") {
		t.Fatalf("应包含错误内容: %q", text)
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

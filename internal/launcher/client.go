// Package launcher は外部ゲームランチャーへの起動・停止コマンド送信を提供する。
// 一次経路はHTTP、失敗時の最終手段としてデスクトップ自動操作によるキー入力を用意する。
package launcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/arcadekiosk/internal/model"
)

const (
	// DefaultTimeout は1リクエストあたりの上限時間。
	DefaultTimeout = 3 * time.Second
	// maxResponseBody は読み捨てるレスポンスボディの上限。
	maxResponseBody = 64 << 10
)

// LaunchCommand はランチャーに送る起動コマンド。
type LaunchCommand struct {
	Key      string `json:"key"`
	SteamURL string `json:"steam_url,omitempty"`
}

// Client は外部ランチャーのHTTPクライアント。
// 自動リトライは行わず、失敗は *model.TransportError として呼び出し元に返す。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
}

// NewClient はClientを生成する。timeoutが0以下の場合はDefaultTimeoutを使用する。
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// SendLaunch は POST {base}/keypress でゲーム起動キーを送信する。
func (c *Client) SendLaunch(ctx context.Context, cmd LaunchCommand) error {
	return c.post(ctx, "launch", "/keypress", cmd)
}

// SendStop は POST {base}/close でゲーム停止を要求する。
func (c *Client) SendStop(ctx context.Context) error {
	return c.post(ctx, "stop", "/close", struct{}{})
}

// Health はランチャーへの疎通を確認する。
// 200/204/404のいずれかが返ればサーバーに到達できたとみなす。
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return &model.TransportError{Op: "health", Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &model.TransportError{Op: "health", Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))

	if !IsReachableStatus(resp.StatusCode) {
		return &model.TransportError{Op: "health", StatusCode: resp.StatusCode}
	}
	return nil
}

func (c *Client) post(ctx context.Context, op, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &model.TransportError{Op: op, Err: fmt.Errorf("リクエストボディの生成に失敗しました: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return &model.TransportError{Op: op, Err: fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("ランチャーへのコマンド送信に失敗しました",
			slog.String("op", op),
			slog.String("url", c.baseURL+path),
			slog.String("error", err.Error()),
		)
		return &model.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))

	if !IsSuccessStatus(resp.StatusCode) {
		c.logger.Warn("ランチャーがエラーステータスを返しました",
			slog.String("op", op),
			slog.Int("http_status", resp.StatusCode),
		)
		return &model.TransportError{Op: op, StatusCode: resp.StatusCode}
	}

	c.logger.Info("ランチャーにコマンドを送信しました",
		slog.String("op", op),
		slog.Int("http_status", resp.StatusCode),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// IsSuccessStatus は204を含む2xxを成功として扱う。
func IsSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

// IsReachableStatus はヘルスチェックでサーバー到達とみなすステータスかを返す。
func IsReachableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return true
	default:
		return false
	}
}

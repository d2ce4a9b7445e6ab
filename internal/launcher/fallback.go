package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"slices"
	"strings"
	"time"
)

// commandWaitDelay はctx終了後に子プロセスの出力パイプが閉じるのを待つ上限。
// 孫プロセスがパイプを握ったままでもPressKeyが戻るようにする。
const commandWaitDelay = time.Second

// ErrFallbackDisabled はフォールバックコマンドが未設定の場合のエラー。
var ErrFallbackDisabled = errors.New("fallback channel is not configured")

// KeyPresser はデスクトップ自動操作によるキー入力シミュレーションのインターフェース。
// HTTP経路が失敗したときの最終手段としてのみ使う。
type KeyPresser interface {
	PressKey(ctx context.Context, key string) error
}

// CommandKeyPresser は外部コマンド（例: "xdotool key"）でキー入力を送るKeyPresser。
// キーはコマンドの最後の引数として渡す。
type CommandKeyPresser struct {
	name   string
	args   []string
	logger *slog.Logger
}

// NewCommandKeyPresser はコマンド文字列からCommandKeyPresserを生成する。
// 空文字の場合、PressKeyは常にErrFallbackDisabledを返す。
func NewCommandKeyPresser(command string, logger *slog.Logger) *CommandKeyPresser {
	fields := strings.Fields(command)
	p := &CommandKeyPresser{logger: logger}
	if len(fields) > 0 {
		p.name = fields[0]
		p.args = fields[1:]
	}
	return p
}

// PressKey はキー入力をシミュレートする。ctxの期限を過ぎるとコマンドを強制終了してエラーを返す。
func (p *CommandKeyPresser) PressKey(ctx context.Context, key string) error {
	if p.name == "" {
		return ErrFallbackDisabled
	}

	args := append(slices.Clone(p.args), key)
	cmd := exec.CommandContext(ctx, p.name, args...)
	cmd.WaitDelay = commandWaitDelay
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("fallback keypress %q via %s failed: %w (output: %s)",
			key, p.name, err, strings.TrimSpace(string(out)))
	}

	p.logger.Info("フォールバック経路でキー入力を送信しました",
		slog.String("key", key),
		slog.String("command", p.name),
	)
	return nil
}

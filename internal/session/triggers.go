package session

import (
	"context"

	"github.com/hitoshi/arcadekiosk/internal/model"
)

// Tap はRFIDタップで特定されたゲームを受け付ける。
func (c *Controller) Tap(ctx context.Context, game model.GameRef) error {
	return c.Post(ctx, Tap{Game: game})
}

// ConfirmLaunch は起動を確定する。
func (c *Controller) ConfirmLaunch(ctx context.Context) error {
	return c.Post(ctx, ConfirmLaunch{})
}

// Exit はキオスク終了操作。起動前なら取り消し、プレイ中なら早期終了として扱う。
func (c *Controller) Exit(ctx context.Context) error {
	return c.Post(ctx, Interrupt{Cause: CauseKioskExit})
}

// PressExternalButton はハードウェアの停止ボタン押下を通知する。
func (c *Controller) PressExternalButton(ctx context.Context) error {
	return c.Post(ctx, Interrupt{Cause: CauseExternalButton})
}

// StopByWebhook は外部Webhookによる停止要求を通知する。detailは表示用の補足情報。
func (c *Controller) StopByWebhook(ctx context.Context, detail string) error {
	return c.Post(ctx, Interrupt{Cause: CauseExternalWebhook, Detail: detail})
}

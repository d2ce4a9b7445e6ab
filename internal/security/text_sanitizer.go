// Package security はキオスクAPIの入力に対するセキュリティ機能を提供する。
//
// TextSanitizer は外部から届く自由記述のテキスト（Webhookの停止理由など）から
// HTMLを取り除き、ステータス表示に安全に載せられるプレーンテキストにする。
package security

import (
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// MaxDetailLength はサニタイズ後のテキストの最大文字数。
const MaxDetailLength = 200

// TextSanitizerService は表示用テキストのサニタイズ機能のインターフェース。
type TextSanitizerService interface {
	// Sanitize は全てのタグを除去し、空白を1つにまとめ、MaxDetailLength文字で切り詰める。
	// 同一入力に対して常に同一出力を返す。
	Sanitize(raw string) string
}

type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はタグを一切許可しないポリシーでTextSanitizerServiceを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はテキストをサニタイズする。
func (s *textSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	clean := strings.Join(strings.Fields(s.policy.Sanitize(raw)), " ")
	if utf8.RuneCountInString(clean) <= MaxDetailLength {
		return clean
	}
	runes := []rune(clean)
	return strings.TrimSpace(string(runes[:MaxDetailLength]))
}

var _ TextSanitizerService = (*textSanitizer)(nil)

// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はキャプションやコメントなどユーザー入力のテキストから
// マークアップを除去し、プレーンテキストとして保存できる形に整える。
// 外部カタログへの通信にはSSRFガード付きのHTTPクライアントを用いる。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はユーザー入力テキストのサニタイズ機能のインターフェースを定義する。
type TextSanitizer interface {
	// Sanitize は入力からすべてのHTMLタグを除去し、前後の空白を取り除いた文字列を返す。
	// script/styleタグは中身ごと除去される。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのポリシーはスレッドセーフなので共有して使う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はbluemondayのStrictPolicyを使うTextSanitizerを生成する。
func NewTextSanitizer() TextSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はマークアップを除去したプレーンテキストを返す。
// StrictPolicyはエンティティをエスケープするため、保存前に元の文字へ戻す。
func (s *textSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	stripped := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(stripped))
}

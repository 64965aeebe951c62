package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService は利用者が入力したテキストの無害化を行う。
// カリキュラムの各項目とプロフィールの保存前に使用される。
type ContentSanitizerService interface {
	// SanitizeText はHTMLタグをすべて取り除き、前後の空白を除いたプレーンテキストを返す。
	// 同一入力に対して常に同一出力を返す。
	SanitizeText(s string) string
	// SanitizeList は各要素をSanitizeTextで無害化し、空になった要素を除く。
	SanitizeList(items []string) []string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーはスレッドセーフに共有できる。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はタグを一切許可しないStrictPolicyでContentSanitizerServiceを生成する。
func NewContentSanitizer() *contentSanitizer {
	return &contentSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeText はプレーンテキストを返す。
// 戻り値はHTMLではなくプレーンテキストとして扱うこと。実体参照は元の文字に戻す。
func (s *contentSanitizer) SanitizeText(in string) string {
	if in == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(in)))
}

// SanitizeList は各要素を無害化する。
func (s *contentSanitizer) SanitizeList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if v := s.SanitizeText(item); v != "" {
			out = append(out, v)
		}
	}
	return out
}

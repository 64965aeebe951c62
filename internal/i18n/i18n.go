// Package i18n はダイアログ文言の言語切り替えを提供する。
// 文言はスペイン語をキーとしてx/text/messageのカタログに登録する。
package i18n

import (
	"net/http"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/hitoshi/campus/internal/model"
)

// LangParam は言語を指定するクエリパラメータ。
const LangParam = "lang"

// supported は対応言語。先頭が既定言語になる。
var supported = []language.Tag{language.Spanish, language.English}

var matcher = language.NewMatcher(supported)

func init() {
	for key, msg := range english {
		if err := message.SetString(language.English, key, msg); err != nil {
			panic(err)
		}
	}
}

// Supported は対応言語を返す。
func Supported() []language.Tag {
	out := make([]language.Tag, len(supported))
	copy(out, supported)
	return out
}

// ParseLocale はロケール文字列を対応言語に丸める。解釈できない場合はスペイン語を返す。
func ParseLocale(locale string) language.Tag {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		return supported[0]
	}
	return match(tag)
}

// ResolveTag はリクエストの言語を決める。langクエリ、Accept-Languageの順に参照する。
func ResolveTag(r *http.Request, fallback language.Tag) language.Tag {
	if v := strings.TrimSpace(r.URL.Query().Get(LangParam)); v != "" {
		if tag, err := language.Parse(v); err == nil {
			return match(tag)
		}
	}
	if accept := strings.TrimSpace(r.Header.Get("Accept-Language")); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil && len(tags) > 0 {
			return match(tags...)
		}
	}
	return fallback
}

// Translate は文言を指定言語に翻訳する。スペイン語またはカタログにない文言はそのまま返す。
// tagはParseLocaleかResolveTagで丸めた値を渡すこと。
func Translate(tag language.Tag, s string) string {
	if s == "" {
		return ""
	}
	if tag == supported[0] {
		return s
	}
	if _, ok := english[s]; !ok {
		return s
	}
	return message.NewPrinter(tag).Sprintf(s)
}

// Dialog はダイアログの表示文言を翻訳した複製を返す。
func Dialog(tag language.Tag, d *model.Dialog) *model.Dialog {
	if d == nil {
		return nil
	}
	out := *d
	out.Title = Translate(tag, d.Title)
	out.Message = Translate(tag, d.Message)
	out.ConfirmText = Translate(tag, d.ConfirmText)
	out.CancelText = Translate(tag, d.CancelText)
	return &out
}

func match(tags ...language.Tag) language.Tag {
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return supported[0]
	}
	return supported[idx]
}

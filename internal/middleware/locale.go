package middleware

import (
	"context"
	"net/http"

	"golang.org/x/text/language"

	"github.com/hitoshi/campus/internal/i18n"
)

// localeContextKey はリクエストコンテキストに言語を格納するためのキー。
var localeContextKey = contextKey("locale")

// NewLocaleMiddleware はlangクエリとAccept-Languageから応答言語を決め、
// リクエストコンテキストに注入するミドルウェアを返す。
func NewLocaleMiddleware(fallback language.Tag) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tag := i18n.ResolveTag(r, fallback)
			w.Header().Set("Content-Language", tag.String())
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), localeContextKey, tag)))
		})
	}
}

// LocaleFromContext はリクエストの応答言語を返す。未設定の場合はスペイン語を返す。
func LocaleFromContext(ctx context.Context) language.Tag {
	if tag, ok := ctx.Value(localeContextKey).(language.Tag); ok {
		return tag
	}
	return i18n.Supported()[0]
}

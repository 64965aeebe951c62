package middleware

import (
	"net/http"
	"strconv"
)

// ConfirmHeader は破壊的操作の確認済みを示すリクエストヘッダー。
const ConfirmHeader = "X-Confirm"

// Confirmed はリクエストが確認済みかを返す。
// X-Confirmヘッダーかconfirmクエリが真を表す値の場合にtrueとなる。
func Confirmed(r *http.Request) bool {
	for _, v := range []string{r.Header.Get(ConfirmHeader), r.URL.Query().Get("confirm")} {
		if ok, err := strconv.ParseBool(v); err == nil && ok {
			return true
		}
	}
	return false
}

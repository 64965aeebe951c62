package database

import (
	"strconv"
	"strings"
	"time"
)

// Dialect はSQL方言の差異を吸収する。
// クエリは"?"プレースホルダで記述し、Rebindで方言に合わせて変換する。
type Dialect int

const (
	DialectPostgres Dialect = iota
	DialectSQLite
)

// String は方言名を返す。
func (d Dialect) String() string {
	if d == DialectSQLite {
		return "sqlite"
	}
	return "postgres"
}

// Rebind は"?"プレースホルダをPostgreSQLの"$n"形式に変換する。
// SQLiteではそのまま返す。
func (d Dialect) Rebind(query string) string {
	if d != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// ForUpdate は行ロック句を返す。SQLiteはトランザクション単位で直列化されるため空文字列を返す。
func (d Dialect) ForUpdate() string {
	if d == DialectPostgres {
		return " FOR UPDATE"
	}
	return ""
}

// ToMillis は時刻をエポックミリ秒に変換する。
// 両方言で同じ比較・並び替えができるよう、時刻はBIGINTで保存する。
func ToMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

// FromMillis はエポックミリ秒を時刻に変換する。
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

package flow

import (
	"regexp"
	"strings"
	"unicode"
)

// minPasswordLength はサインアップで要求する最小パスワード長。
const minPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// normalizeEmail は前後の空白を除いて小文字化する。
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// isValidEmail はメールアドレスの形式を検証する。
func isValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// hasAllowedDomain はメールアドレスのドメインが許可リストに含まれるかを返す。
func hasAllowedDomain(email string, domains []string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	domain := email[at+1:]
	for _, d := range domains {
		if strings.EqualFold(domain, d) {
			return true
		}
	}
	return false
}

// isStrongPassword は6文字以上で大文字と小文字を1文字ずつ含むかを返す。
func isStrongPassword(password string) bool {
	if len([]rune(password)) < minPasswordLength {
		return false
	}
	var upper, lower bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		}
	}
	return upper && lower
}

// anyBlank は空白のみの値が1つでもあればtrueを返す。
func anyBlank(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}

func trim(s string) string {
	return strings.TrimSpace(s)
}

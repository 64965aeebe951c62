package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/campus/internal/model"
)

// resetTokenPurpose はパスワード再設定トークンの用途識別子。
const resetTokenPurpose = "password_reset"

// ResetClaims はパスワード再設定トークンのクレーム。
// PasswordFingerprintにより、パスワード変更後は同じトークンが使えなくなる。
type ResetClaims struct {
	UserID              string `json:"uid"`
	Purpose             string `json:"purpose"`
	PasswordFingerprint string `json:"pwf"`
	jwt.RegisteredClaims
}

// ResetTokens はHS256署名のパスワード再設定トークンを発行・検証する。
type ResetTokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewResetTokens はResetTokensを生成する。
func NewResetTokens(secret string, ttl time.Duration) *ResetTokens {
	return &ResetTokens{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue はアカウントのパスワード再設定トークンを発行する。
func (t *ResetTokens) Issue(account *model.Account) (string, error) {
	now := t.now()
	claims := &ResetClaims{
		UserID:              account.ID,
		Purpose:             resetTokenPurpose,
		PasswordFingerprint: passwordFingerprint(account.PasswordHash),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign reset token: %w", err)
	}
	return signed, nil
}

// Parse はトークンを検証してクレームを返す。
// 署名不正、期限切れ、用途違いの場合はErrInvalidResetTokenを返す。
func (t *ResetTokens) Parse(tokenStr string) (*ResetClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &ResetClaims{}, func(tok *jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, errors.Join(ErrInvalidResetToken, err)
	}
	claims, ok := token.Claims.(*ResetClaims)
	if !ok || !token.Valid || claims.Purpose != resetTokenPurpose || claims.UserID == "" {
		return nil, ErrInvalidResetToken
	}
	return claims, nil
}

// Matches はトークン発行時のパスワードハッシュが現在のものと一致するかを返す。
func (c *ResetClaims) Matches(account *model.Account) bool {
	return c.PasswordFingerprint == passwordFingerprint(account.PasswordHash)
}

func passwordFingerprint(hash string) string {
	sum := sha256.Sum256([]byte(hash))
	return hex.EncodeToString(sum[:8])
}

// Package profile はusersコレクションに保存される利用者プロフィールの読み書きを提供する。
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/campus/internal/docstore"
	"github.com/hitoshi/campus/internal/model"
)

// Collection はプロフィールを保存するコレクション名。
const Collection = "users"

const photoPrefix = "data:image"

// DisplayNamer はIDプロバイダーの表示名を更新する。*auth.DeviceProviderが実装する。
type DisplayNamer interface {
	UpdateDisplayName(ctx context.Context, identity *model.Identity, displayName string) error
}

// TextSanitizer は入力テキストを無害化する。
type TextSanitizer interface {
	SanitizeText(s string) string
}

// Service はプロフィールのビジネスロジックを提供する。
type Service struct {
	store         docstore.Store
	sanitizer     TextSanitizer
	photoMaxBytes int
}

// NewService はServiceを生成する。photoMaxBytesが0以下の場合は写真のサイズを制限しない。
func NewService(store docstore.Store, sanitizer TextSanitizer, photoMaxBytes int) *Service {
	return &Service{
		store:         store,
		sanitizer:     sanitizer,
		photoMaxBytes: photoMaxBytes,
	}
}

// Load はプロフィールを取得する。レコードがない場合は空のプロフィールを作成して返す。
// メールアドレスは常にIdentityの値を返す。
func (s *Service) Load(ctx context.Context, identity *model.Identity) (*model.Profile, error) {
	rec, err := s.store.Get(ctx, Collection, identity.ID)
	if errors.Is(err, docstore.ErrNotFound) {
		return s.createEmpty(ctx, identity)
	}
	if err != nil {
		slog.Error("failed to load profile",
			slog.String("user_id", identity.ID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewProfileLoadFailedError()
	}
	return decodeProfile(rec, identity)
}

func decodeProfile(rec *docstore.Record, identity *model.Identity) (*model.Profile, error) {
	var p model.Profile
	if err := rec.Decode(&p); err != nil {
		slog.Error("failed to decode profile",
			slog.String("user_id", identity.ID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewProfileLoadFailedError()
	}
	p.Email = identity.Email
	return &p, nil
}

// SaveInput はプロフィール保存の入力。PhotoBase64がdata:image形式でない場合は写真を削除する。
type SaveInput struct {
	FirstName   string  `json:"nombre"`
	LastName    string  `json:"apellido"`
	Phone       string  `json:"telefono"`
	DNI         string  `json:"dni"`
	Address     string  `json:"direccion"`
	PhotoBase64 *string `json:"photoBase64"`
}

// Save はプロフィールをマージ保存し、表示名を「nombre apellido」に更新する。
func (s *Service) Save(ctx context.Context, provider DisplayNamer, identity *model.Identity, in SaveInput) (*model.Profile, *model.Dialog, error) {
	// 1. 入力の無害化と写真の検証
	p := &model.Profile{
		FirstName: s.sanitizer.SanitizeText(in.FirstName),
		LastName:  s.sanitizer.SanitizeText(in.LastName),
		Phone:     s.sanitizer.SanitizeText(in.Phone),
		DNI:       s.sanitizer.SanitizeText(in.DNI),
		Address:   s.sanitizer.SanitizeText(in.Address),
		Email:     identity.Email,
	}
	photo, err := s.normalizePhoto(in.PhotoBase64)
	if err != nil {
		return nil, nil, err
	}
	p.PhotoBase64 = photo

	// 2. レコードのマージ保存
	fields, err := docstore.FromStruct(p)
	if err != nil {
		return nil, nil, err
	}
	if err := s.store.Set(ctx, Collection, identity.ID, fields, true); err != nil {
		return nil, nil, fmt.Errorf("failed to save profile: %w", err)
	}

	// 3. 表示名の更新
	if err := provider.UpdateDisplayName(ctx, identity, p.DisplayName()); err != nil {
		return nil, nil, fmt.Errorf("failed to update display name: %w", err)
	}

	slog.Info("profile saved", slog.String("user_id", identity.ID))
	return p, model.NewSuccessDialog("Listo", "Datos actualizados correctamente."), nil
}

// createEmpty は空のプロフィールを作成する。
// 先に別の書き込みが作成していた場合はそのレコードを返す。
func (s *Service) createEmpty(ctx context.Context, identity *model.Identity) (*model.Profile, error) {
	p := &model.Profile{Email: identity.Email}
	fields, err := docstore.FromStruct(p)
	if err != nil {
		return nil, err
	}
	created, err := s.store.Insert(ctx, Collection, identity.ID, fields)
	if err != nil {
		slog.Error("failed to create profile",
			slog.String("user_id", identity.ID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewProfileLoadFailedError()
	}
	if created {
		return p, nil
	}

	rec, err := s.store.Get(ctx, Collection, identity.ID)
	if err != nil {
		slog.Error("failed to load profile",
			slog.String("user_id", identity.ID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewProfileLoadFailedError()
	}
	return decodeProfile(rec, identity)
}

// normalizePhoto は写真をdata:image形式のみに絞り、サイズ上限を検証する。
func (s *Service) normalizePhoto(photo *string) (*string, error) {
	if photo == nil || !strings.HasPrefix(*photo, photoPrefix) {
		return nil, nil
	}
	if s.photoMaxBytes > 0 && len(*photo) > s.photoMaxBytes {
		return nil, model.NewInvalidPhotoError(s.photoMaxBytes)
	}
	v := *photo
	return &v, nil
}

// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示するダイアログのタイトル、原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Title    string // ダイアログタイトル
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, store, navigation, confirmation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Dialog はエラーをユーザー向けダイアログに変換する。
// 確認待ちのエラーは警告ダイアログとしてキャンセルボタン付きで返す。
func (e *APIError) Dialog() *Dialog {
	if e.Code == ErrCodeConfirmationRequired {
		return &Dialog{
			Type:        DialogWarning,
			Title:       e.Title,
			Message:     e.Message,
			ConfirmText: e.Action,
			CancelText:  "Cancelar",
			Code:        e.Code,
		}
	}
	return &Dialog{
		Type:        DialogError,
		Title:       e.Title,
		Message:     e.Message,
		ConfirmText: DefaultConfirmText,
		Code:        e.Code,
	}
}

// 定義済みエラーコード
const (
	ErrCodeRequiredFields       = "REQUIRED_FIELDS"
	ErrCodeInvalidEmail         = "INVALID_EMAIL"
	ErrCodeEmailDomain          = "EMAIL_DOMAIN_NOT_ALLOWED"
	ErrCodeWeakPassword         = "WEAK_PASSWORD"
	ErrCodePasswordMismatch     = "PASSWORD_MISMATCH"
	ErrCodeInvalidCredentials   = "INVALID_CREDENTIALS"
	ErrCodeEmailAlreadyInUse    = "EMAIL_ALREADY_IN_USE"
	ErrCodeSignupFailed         = "SIGNUP_FAILED"
	ErrCodeSignupInProgress     = "SIGNUP_IN_PROGRESS"
	ErrCodeInvalidResetToken    = "INVALID_RESET_TOKEN"
	ErrCodeProgramNotFound      = "PROGRAM_NOT_FOUND"
	ErrCodeInvalidImage         = "INVALID_IMAGE"
	ErrCodeInvalidPhoto         = "INVALID_PHOTO"
	ErrCodeProfileLoadFailed    = "PROFILE_LOAD_FAILED"
	ErrCodeDeviceNotFound       = "DEVICE_NOT_FOUND"
	ErrCodeScreenNotMounted     = "SCREEN_NOT_MOUNTED"
	ErrCodeConfirmationRequired = "CONFIRMATION_REQUIRED"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
	ErrCodeRateLimitExceeded    = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal             = "INTERNAL_ERROR"
)

// NewRequiredFieldsError は必須項目未入力エラーを生成する。
func NewRequiredFieldsError() *APIError {
	return &APIError{
		Code:     ErrCodeRequiredFields,
		Title:    "Error",
		Message:  "Todos los campos son obligatorios",
		Category: "validation",
		Action:   "Completá todos los campos y volvé a intentar.",
	}
}

// NewMissingProgramFieldsError はカリキュラム登録時の必須項目未入力エラーを生成する。
func NewMissingProgramFieldsError() *APIError {
	return &APIError{
		Code:     ErrCodeRequiredFields,
		Title:    "Error",
		Message:  "Completá todos los campos.",
		Category: "validation",
		Action:   "El título y la duración son obligatorios.",
	}
}

// NewInvalidEmailError はメールアドレス形式エラーを生成する。
func NewInvalidEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEmail,
		Title:    "Correo inválido",
		Message:  "Ingresá un correo electrónico válido.",
		Category: "validation",
		Action:   "Revisá el formato del correo.",
	}
}

// NewEmailDomainError はログインで許可されていないドメインのメールアドレスのエラーを生成する。
func NewEmailDomainError(domains []string) *APIError {
	return &APIError{
		Code:     ErrCodeEmailDomain,
		Title:    "Correo inválido",
		Message:  "Usá un correo @gmail.com o @hotmail.com.",
		Category: "validation",
		Action:   fmt.Sprintf("Dominios permitidos: %v", domains),
	}
}

// NewWeakPasswordError はパスワードポリシー違反エラーを生成する。
func NewWeakPasswordError() *APIError {
	return &APIError{
		Code:     ErrCodeWeakPassword,
		Title:    "Contraseña débil",
		Message:  "La contraseña debe tener mínimo 6 caracteres, una mayúscula y una minúscula",
		Category: "validation",
		Action:   "Elegí una contraseña más segura.",
	}
}

// NewPasswordMismatchError はパスワード確認不一致エラーを生成する。
func NewPasswordMismatchError() *APIError {
	return &APIError{
		Code:     ErrCodePasswordMismatch,
		Title:    "Error",
		Message:  "Las contraseñas no coinciden",
		Category: "validation",
		Action:   "Escribí la misma contraseña en ambos campos.",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// アカウントの有無を推測されないよう、原因を区別しない文言を返す。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Title:    "Error",
		Message:  "Correo o contraseña incorrectos.",
		Category: "auth",
		Action:   "Verificá tus datos e intentá nuevamente.",
	}
}

// NewEmailAlreadyInUseError は登録済みメールアドレスのエラーを生成する。
func NewEmailAlreadyInUseError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailAlreadyInUse,
		Title:    "Error",
		Message:  "El correo ya está registrado",
		Category: "auth",
		Action:   "Iniciá sesión o recuperá tu contraseña.",
	}
}

// NewSignupFailedError は登録処理の途中失敗エラーを生成する。
func NewSignupFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeSignupFailed,
		Title:    "Error",
		Message:  fmt.Sprintf("No se pudo completar el registro: %s", reason),
		Category: "auth",
		Action:   "Intentá nuevamente en unos minutos.",
	}
}

// NewSignupInProgressError は同一端末で登録処理が実行中の場合のエラーを生成する。
func NewSignupInProgressError() *APIError {
	return &APIError{
		Code:     ErrCodeSignupInProgress,
		Title:    "Aviso",
		Message:  "Ya hay un registro en curso.",
		Category: "auth",
		Action:   "Esperá a que termine el registro actual.",
	}
}

// NewInvalidResetTokenError はパスワード再設定トークンが無効な場合のエラーを生成する。
func NewInvalidResetTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidResetToken,
		Title:    "Error",
		Message:  "El enlace para restablecer la contraseña no es válido o expiró.",
		Category: "auth",
		Action:   "Solicitá un nuevo correo de recuperación.",
	}
}

// NewProgramNotFoundError はカリキュラム未検出エラーを生成する。
func NewProgramNotFoundError(programID string) *APIError {
	return &APIError{
		Code:     ErrCodeProgramNotFound,
		Title:    "Error",
		Message:  "No se encontró la carrera.",
		Category: "store",
		Action:   fmt.Sprintf("Verificá el identificador: %s", programID),
	}
}

// NewInvalidImageError は画像URLが許可されない場合のエラーを生成する。
func NewInvalidImageError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidImage,
		Title:    "Imagen inválida",
		Message:  fmt.Sprintf("La imagen no es válida: %s", reason),
		Category: "validation",
		Action:   "Usá una URL https pública o una imagen embebida.",
	}
}

// NewInvalidPhotoError はプロフィール写真が上限を超える場合のエラーを生成する。
func NewInvalidPhotoError(maxBytes int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPhoto,
		Title:    "Foto inválida",
		Message:  "La foto es demasiado grande.",
		Category: "validation",
		Action:   fmt.Sprintf("Elegí una imagen de menos de %d bytes.", maxBytes),
	}
}

// NewProfileLoadFailedError はプロフィール読み込み失敗エラーを生成する。
func NewProfileLoadFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeProfileLoadFailed,
		Title:    "Error",
		Message:  "No se pudieron cargar los datos.",
		Category: "store",
		Action:   "Intentá nuevamente más tarde.",
	}
}

// NewDeviceNotFoundError は端末IDが未登録の場合のエラーを生成する。
func NewDeviceNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeDeviceNotFound,
		Title:    "Error",
		Message:  "Dispositivo no registrado.",
		Category: "navigation",
		Action:   "Reiniciá la aplicación.",
	}
}

// NewScreenNotMountedError は表示中の画面セット外の操作を要求された場合のエラーを生成する。
func NewScreenNotMountedError(screen string) *APIError {
	return &APIError{
		Code:     ErrCodeScreenNotMounted,
		Title:    "Aviso",
		Message:  "Esta pantalla no está disponible.",
		Category: "navigation",
		Action:   fmt.Sprintf("La pantalla %s no pertenece al conjunto activo.", screen),
	}
}

// NewConfirmationRequiredError は破壊的操作の確認待ちを表すエラーを生成する。
// confirmTextは確定ボタンの文言になる。
func NewConfirmationRequiredError(title, prompt, confirmText string) *APIError {
	return &APIError{
		Code:     ErrCodeConfirmationRequired,
		Title:    title,
		Message:  prompt,
		Category: "confirmation",
		Action:   confirmText,
	}
}

// NewInvalidRequestError はリクエストボディが不正な場合のエラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Title:    "Error",
		Message:  "Solicitud inválida.",
		Category: "validation",
		Action:   "Revisá los datos enviados.",
	}
}

// NewRateLimitError はレート制限超過エラーを生成する。
func NewRateLimitError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimitExceeded,
		Title:    "Aviso",
		Message:  "Demasiados intentos.",
		Category: "system",
		Action:   "Esperá un momento y volvé a intentar.",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Title:    "Error",
		Message:  "Ocurrió un error inesperado.",
		Category: "system",
		Action:   "Intentá nuevamente más tarde.",
	}
}

package model

// DialogType はダイアログの種別を表す。種別ごとにクライアントがアイコンを切り替える。
type DialogType string

const (
	DialogInfo    DialogType = "info"
	DialogSuccess DialogType = "success"
	DialogError   DialogType = "error"
	DialogWarning DialogType = "warning"
)

// DefaultConfirmText はダイアログの確定ボタンの既定文言。
const DefaultConfirmText = "Aceptar"

// Dialog はユーザーに提示するモーダルダイアログを表す。
// CancelTextが空の場合は確定ボタンのみを表示する。
type Dialog struct {
	Type        DialogType `json:"type"`
	Title       string     `json:"title"`
	Message     string     `json:"message"`
	ConfirmText string     `json:"confirm_text"`
	CancelText  string     `json:"cancel_text,omitempty"`
	Code        string     `json:"code,omitempty"`
}

// NewSuccessDialog は成功ダイアログを生成する。
func NewSuccessDialog(title, message string) *Dialog {
	return &Dialog{
		Type:        DialogSuccess,
		Title:       title,
		Message:     message,
		ConfirmText: DefaultConfirmText,
	}
}

// NewInfoDialog は情報ダイアログを生成する。
func NewInfoDialog(title, message string) *Dialog {
	return &Dialog{
		Type:        DialogInfo,
		Title:       title,
		Message:     message,
		ConfirmText: DefaultConfirmText,
	}
}
